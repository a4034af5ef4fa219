package hardware

import (
	"fmt"

	"github.com/CodedInternet/matthieu/onboard/actuation"
	"github.com/go-gl/mathgl/mgl64"
)

type ServoConfig struct {
	MaxGrade   uint    `yaml:"max_grade"`
	Channel    uint8   `yaml:"channel"`
	CenterUs   uint16  `yaml:"center_us"`
	UsPerGrade float64 `yaml:"us_per_grade"`
	MinUs      uint16  `yaml:"min_us"`
	MaxUs      uint16  `yaml:"max_us"`
	Reverse    bool    `yaml:"reverse"` // servo mounted so that a higher pulse steers left
}

func (c ServoConfig) WithDefaults() ServoConfig {
	if c.MaxGrade == 0 {
		c.MaxGrade = 90
	}
	if c.CenterUs == 0 {
		c.CenterUs = 1500
	}
	if c.UsPerGrade == 0 {
		c.UsPerGrade = 5
	}
	if c.MinUs == 0 {
		c.MinUs = 1000
	}
	if c.MaxUs == 0 {
		c.MaxUs = 2000
	}
	return c
}

// Servo is the steering servo. Grades are offsets from the centre pulse.
type Servo struct {
	board  Board
	config ServoConfig
}

func NewServo(board Board, config ServoConfig) *Servo {
	return &Servo{board, config.WithDefaults()}
}

// pulse converts an action into a pulse width, kept inside the mechanical
// limits of the linkage.
func (s *Servo) pulse(action actuation.ServoAction, grade uint) (uint16, error) {
	offset := float64(grade) * s.config.UsPerGrade
	if s.config.Reverse {
		offset = -offset
	}

	var us float64
	switch action {
	case actuation.ServoInit:
		us = float64(s.config.CenterUs)
	case actuation.ServoLeft:
		us = float64(s.config.CenterUs) - offset
	case actuation.ServoRight:
		us = float64(s.config.CenterUs) + offset
	default:
		return 0, fmt.Errorf("unknown servo action %v", action)
	}

	return uint16(mgl64.Clamp(us, float64(s.config.MinUs), float64(s.config.MaxUs))), nil
}

func (s *Servo) Drive(action actuation.ServoAction, grade uint) error {
	us, err := s.pulse(action, grade)
	if err != nil {
		return err
	}
	return s.board.SetPulse(s.config.Channel, us)
}

type MotorConfig struct {
	MaxGrade uint   `yaml:"max_grade"`
	Channel  uint8  `yaml:"channel"` // enable/PWM input of the H-bridge
	In1      uint8  `yaml:"in1"`
	In2      uint8  `yaml:"in2"`
	PeriodUs uint16 `yaml:"period_us"`
}

func (c MotorConfig) WithDefaults() MotorConfig {
	if c.MaxGrade == 0 {
		c.MaxGrade = 100
	}
	if c.Channel == 0 && c.In1 == 0 && c.In2 == 0 {
		c.Channel = 1
		c.In1 = 4
		c.In2 = 5
	}
	if c.PeriodUs == 0 {
		c.PeriodUs = 1000
	}
	return c
}

// DCMotor is the propulsion motor behind an H-bridge.
//
//	action    IN1 IN2 enable
//	init       0   0   0          coast
//	forward    1   0   grade
//	backward   0   1   grade
//	brake      1   1   grade      grade 0 brakes at full strength
type DCMotor struct {
	board  Board
	config MotorConfig
}

func NewDCMotor(board Board, config MotorConfig) *DCMotor {
	return &DCMotor{board, config.WithDefaults()}
}

func (m *DCMotor) duty(grade uint) uint16 {
	if grade > m.config.MaxGrade {
		grade = m.config.MaxGrade
	}
	return uint16(uint(m.config.PeriodUs) * grade / m.config.MaxGrade)
}

func (m *DCMotor) Drive(action actuation.MotorAction, grade uint) error {
	var in1, in2 bool
	var duty uint16

	switch action {
	case actuation.MotorInit:
		duty = 0
	case actuation.MotorForward:
		in1 = true
		duty = m.duty(grade)
	case actuation.MotorBackward:
		in2 = true
		duty = m.duty(grade)
	case actuation.MotorBrake:
		in1, in2 = true, true
		duty = m.config.PeriodUs
		if grade > 0 {
			duty = m.duty(grade)
		}
	default:
		return fmt.Errorf("unknown motor action %v", action)
	}

	// drop the enable first so the bridge never sees a shoot-through while
	// the direction pins change
	if err := m.board.SetPulse(m.config.Channel, 0); err != nil {
		return err
	}
	if err := m.board.SetPin(m.config.In1, in1); err != nil {
		return err
	}
	if err := m.board.SetPin(m.config.In2, in2); err != nil {
		return err
	}
	return m.board.SetPulse(m.config.Channel, duty)
}

// Actuators adapts the servo and motor to actuation.Driver.
type Actuators struct {
	Servo *Servo
	Motor *DCMotor
}

func NewActuators(board Board, servo ServoConfig, motor MotorConfig) *Actuators {
	return &Actuators{
		Servo: NewServo(board, servo),
		Motor: NewDCMotor(board, motor),
	}
}

func (a *Actuators) DriveServo(action actuation.ServoAction, grade uint) error {
	return a.Servo.Drive(action, grade)
}

func (a *Actuators) DriveMotor(action actuation.MotorAction, grade uint) error {
	return a.Motor.Drive(action, grade)
}
