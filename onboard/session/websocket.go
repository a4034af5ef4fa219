package session

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/CodedInternet/matthieu/internal/log"
	"github.com/gorilla/websocket"
)

const wsReadLimit = 4096

// WSListener turns websocket upgrades into connections for the session loop.
// Every text or binary message is treated as one line. The HTTP handler stays
// open until the session owning its connection ends.
type WSListener struct {
	upgrader websocket.Upgrader
	conns    chan *WSConn
	done     chan struct{}
	once     sync.Once
}

func NewWSListener() *WSListener {
	return &WSListener{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(chan *WSConn),
		done:  make(chan struct{}),
	}
}

func (l *WSListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.done:
		http.Error(w, "control listener closed", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	ws.SetReadLimit(wsReadLimit)

	conn := newWSConn(ws)
	select {
	case l.conns <- conn:
	case <-l.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	<-conn.closed
}

func (l *WSListener) Accept() (Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *WSListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *WSListener) Addr() net.Addr {
	return wsAddr{}
}

type wsAddr struct{}

func (wsAddr) Network() string { return "websocket" }
func (wsAddr) String() string  { return "/ws/control" }

// WSConn reads websocket messages as a newline separated stream.
type WSConn struct {
	ws      *websocket.Conn
	current io.Reader
	closed  chan struct{}
	once    sync.Once
}

func newWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{
		ws:     ws,
		closed: make(chan struct{}),
	}
}

func (c *WSConn) Read(p []byte) (int, error) {
	for {
		if c.current == nil {
			kind, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
				continue
			}
			c.current = io.MultiReader(r, strings.NewReader("\n"))
		}

		n, err := c.current.Read(p)
		if errors.Is(err, io.EOF) {
			c.current = nil
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (c *WSConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ws.Close()
		close(c.closed)
	})
	return err
}

func (c *WSConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}
