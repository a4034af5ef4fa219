package hardware

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/CodedInternet/matthieu/internal/log"
	deviceErrors "github.com/CodedInternet/matthieu/onboard/errors"
	"github.com/Masterminds/semver"
	"github.com/goburrow/serial"
)

const (
	FIRMWARE_VERSION = "~0.2.0"

	CMD_MAX_RETRIES = 3
	CMD_TIMEOUT     = 50 * time.Millisecond

	// Channels and pins exposed by the co-processor
	BOARD_CHANNELS = 16
	BOARD_PINS     = 32
)

var (
	ERR_MAX_RETRIES = errors.New("CMD_MAX_RETRIES reached while waiting for the board")
	ERR_CLOSED      = errors.New("board is closed")
)

// Board is the platform PWM/GPIO layer the actuators are wired to.
type Board interface {
	SetPulse(channel uint8, us uint16) error
	SetPin(pin uint8, high bool) error
	Close() error
}

type BoardConfig struct {
	Driver   string        `yaml:"driver"` // serial or sim
	Port     string        `yaml:"port"`
	Baud     int           `yaml:"baud"`
	Timeout  time.Duration `yaml:"timeout"`
	Firmware string        `yaml:"firmware"` // semver constraint
}

func (c BoardConfig) withDefaults() BoardConfig {
	if c.Driver == "" {
		c.Driver = "serial"
	}
	if c.Port == "" {
		c.Port = "/dev/ttyS0"
	}
	if c.Baud <= 0 {
		c.Baud = 115200
	}
	if c.Timeout <= 0 {
		c.Timeout = CMD_TIMEOUT
	}
	if c.Firmware == "" {
		c.Firmware = FIRMWARE_VERSION
	}
	return c
}

// OpenBoard opens the board described by config.
func OpenBoard(config BoardConfig) (Board, error) {
	config = config.withDefaults()

	switch config.Driver {
	case "sim":
		return NewSimBoard(), nil

	case "serial":
		port, err := serial.Open(&serial.Config{
			Address:  config.Port,
			BaudRate: config.Baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  config.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to open %s: %w", config.Port, err)
		}

		board, err := NewSerialBoard(port, config.Firmware)
		if err != nil {
			port.Close()
			return nil, err
		}
		return board, nil

	default:
		return nil, fmt.Errorf("unknown board driver %q", config.Driver)
	}
}

// SerialBoard talks to the PWM co-processor with one text command per line:
//
//	P<channel> <microseconds>   set a pulse width
//	D<pin> <0|1>                set a digital output
//	V                           report the firmware version
//
// Every command is answered with "OK [payload]" or "ERR <message>".
type SerialBoard struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	lock   sync.Mutex
	closed bool
}

// NewSerialBoard wraps an open port and checks the firmware version against
// constraint.
func NewSerialBoard(port io.ReadWriteCloser, constraint string) (b *SerialBoard, err error) {
	b = &SerialBoard{
		port:   port,
		reader: bufio.NewReader(port),
	}

	version, err := b.send("V")
	if err != nil {
		return nil, err
	}

	if err = checkFirmware(version, constraint); err != nil {
		return nil, err
	}

	return b, nil
}

func checkFirmware(version, constraint string) error {
	semVer, err := semver.NewVersion(version)
	if err != nil {
		// development builds of the firmware report DEV instead of a version
		if version == "DEV" {
			log.Warn("board is running development firmware")
			return nil
		}
		return deviceErrors.FirmwareError{Version: version, Constraint: constraint}
	}

	semVerConstraint, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid firmware constraint %q: %w", constraint, err)
	}

	if !semVerConstraint.Check(semVer) {
		return deviceErrors.FirmwareError{Version: version, Constraint: constraint}
	}

	return nil
}

func (b *SerialBoard) SetPulse(channel uint8, us uint16) error {
	if channel >= BOARD_CHANNELS {
		return deviceErrors.ChannelError{Actuator: "pulse", Channel: channel}
	}
	_, err := b.send(fmt.Sprintf("P%d %d", channel, us))
	return err
}

func (b *SerialBoard) SetPin(pin uint8, high bool) error {
	if pin >= BOARD_PINS {
		return deviceErrors.ChannelError{Actuator: "pin", Channel: pin}
	}
	level := 0
	if high {
		level = 1
	}
	_, err := b.send(fmt.Sprintf("D%d %d", pin, level))
	return err
}

func (b *SerialBoard) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.port.Close()
}

// send writes cmd and waits for the reply, resending when the board stays
// silent. Returns the reply payload.
func (b *SerialBoard) send(cmd string) (payload string, err error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.closed {
		return "", ERR_CLOSED
	}

	for i := 0; i < CMD_MAX_RETRIES; i++ {
		if _, err = io.WriteString(b.port, cmd+"\n"); err != nil {
			return "", err
		}

		var reply string
		reply, err = b.reader.ReadString('\n')
		if err != nil {
			// a timeout leaves a partial reply behind, drop it before resending
			b.reader.Reset(b.port)
			continue
		}

		reply = strings.TrimSpace(reply)
		switch {
		case reply == "OK":
			return "", nil
		case strings.HasPrefix(reply, "OK "):
			return strings.TrimPrefix(reply, "OK "), nil
		default:
			return "", deviceErrors.ReplyError{Command: cmd, Reply: reply}
		}
	}

	log.Debug("board did not answer", "cmd", cmd, "err", err)
	return "", ERR_MAX_RETRIES
}
