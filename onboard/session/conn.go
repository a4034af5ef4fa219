package session

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/CodedInternet/matthieu/internal/log"
)

// Conn is one client connection as seen by the session loop. Only the read
// side is used; the protocol never answers.
type Conn interface {
	io.Reader
	io.Closer
	RemoteAddr() net.Addr
}

type Listener interface {
	Accept() (Conn, error)
	Close() error
	Addr() net.Addr
}

// TCPListener adapts a net.Listener.
type TCPListener struct {
	net.Listener
}

func ListenTCP(addr string) (*TCPListener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPListener{l}, nil
}

func (l *TCPListener) Accept() (Conn, error) {
	return l.Listener.Accept()
}

const acceptBackoff = 100 * time.Millisecond

type accepted struct {
	conn     Conn
	listener Listener
	err      error
}

// merge accepts from every listener into one channel. Each listener holds at
// most one accepted connection until the session loop takes it. Only the
// error that stops a listener is delivered.
func merge(listeners []Listener, done <-chan struct{}) (<-chan accepted, *sync.WaitGroup) {
	out := make(chan accepted)
	wg := &sync.WaitGroup{}

	for _, l := range listeners {
		wg.Add(1)
		go func(l Listener) {
			defer wg.Done()
			for {
				conn, err := l.Accept()
				if err != nil && !errors.Is(err, net.ErrClosed) {
					log.Warn("accept failed", "addr", l.Addr(), "err", err)
					select {
					case <-time.After(acceptBackoff):
						continue
					case <-done:
						return
					}
				}

				select {
				case out <- accepted{conn, l, err}:
				case <-done:
					if conn != nil {
						conn.Close()
					}
					return
				}
				if err != nil {
					return
				}
			}
		}(l)
	}

	return out, wg
}
