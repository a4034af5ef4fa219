package hardware

import (
	"sync"

	"github.com/CodedInternet/matthieu/internal/log"
	deviceErrors "github.com/CodedInternet/matthieu/onboard/errors"
)

// SimBoard is an in-memory Board used when running without hardware.
type SimBoard struct {
	lock   sync.Mutex
	pulses map[uint8]uint16
	pins   map[uint8]bool
	writes int
}

func NewSimBoard() *SimBoard {
	return &SimBoard{
		pulses: make(map[uint8]uint16),
		pins:   make(map[uint8]bool),
	}
}

func (s *SimBoard) SetPulse(channel uint8, us uint16) error {
	if channel >= BOARD_CHANNELS {
		return deviceErrors.ChannelError{Actuator: "pulse", Channel: channel}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.pulses[channel] = us
	s.writes++
	log.Debug("sim pulse", "channel", channel, "us", us)
	return nil
}

func (s *SimBoard) SetPin(pin uint8, high bool) error {
	if pin >= BOARD_PINS {
		return deviceErrors.ChannelError{Actuator: "pin", Channel: pin}
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.pins[pin] = high
	s.writes++
	log.Debug("sim pin", "pin", pin, "high", high)
	return nil
}

func (s *SimBoard) Pulse(channel uint8) uint16 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pulses[channel]
}

func (s *SimBoard) Pin(pin uint8) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.pins[pin]
}

// Writes counts every output change since the board was created.
func (s *SimBoard) Writes() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.writes
}

func (s *SimBoard) Close() error {
	return nil
}
