package onboard

import (
	"errors"
	"sync"
	"time"

	"github.com/CodedInternet/matthieu/internal/log"
	"github.com/CodedInternet/matthieu/onboard/actuation"
	"github.com/CodedInternet/matthieu/onboard/hardware"
	"github.com/CodedInternet/matthieu/onboard/protocol"
)

// Device ties the board, the actuators and the protocol vocabulary of one
// boat together.
type Device struct {
	Config  DeviceConfig
	Board   hardware.Board
	Machine *actuation.Machine
	Decoder *protocol.Decoder
	Started time.Time

	closeOnce sync.Once
	closeErr  error
}

type Info struct {
	Board       string             `json:"board"`
	AccessPoint string             `json:"accesspoint"`
	Listen      string             `json:"listen"`
	Tokens      protocol.Tokens    `json:"tokens"`
	Limits      protocol.Limits    `json:"limits"`
	State       actuation.Snapshot `json:"state"`
	Uptime      string             `json:"uptime"`
}

func NewDevice(config DeviceConfig) (d *Device, err error) {
	d = &Device{
		Config:  config,
		Started: time.Now(),
	}

	d.Decoder, err = protocol.NewDecoder(config.Tokens, config.Limits())
	if err != nil {
		return nil, err
	}

	d.Board, err = hardware.OpenBoard(config.Board)
	if err != nil {
		return nil, err
	}

	d.Machine = actuation.NewMachine(hardware.NewActuators(d.Board, config.Servo, config.Motor))

	// whatever the outputs were doing before we started, bring them to rest
	if err = d.Machine.Reset(); err != nil {
		d.Board.Close()
		return nil, err
	}

	log.Info("device ready",
		"board", config.Board.Driver,
		"servo_max", config.Servo.MaxGrade,
		"motor_max", config.Motor.MaxGrade)
	return d, nil
}

func (d *Device) Info() Info {
	driver := d.Config.Board.Driver
	if driver == "" {
		driver = "serial"
	}
	return Info{
		Board:       driver,
		AccessPoint: d.Config.AccessPoint.SSID,
		Listen:      d.Config.Control.Listen,
		Tokens:      d.Decoder.Tokens(),
		Limits:      d.Decoder.Limits(),
		State:       d.Machine.Snapshot(),
		Uptime:      time.Since(d.Started).Round(time.Second).String(),
	}
}

// Close rests the actuators and releases the board. Safe to call more than
// once, which happens when a restart hook runs before a deferred Close.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = errors.Join(d.Machine.Reset(), d.Board.Close())
	})
	return d.closeErr
}
