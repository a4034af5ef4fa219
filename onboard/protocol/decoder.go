// Package protocol decodes the line-oriented control protocol:
//
//	<actuator> <action> <magnitude>\n
//
// plus a reserved token on its own line that requests a restart.
package protocol

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/CodedInternet/matthieu/onboard/actuation"
)

// Result is the outcome of decoding one line: either a command or a reset
// request.
type Result struct {
	Command actuation.Command
	Reset   bool
}

type Decoder struct {
	tokens    Tokens
	limits    Limits
	actuators map[string]actuation.ActuatorKind
	servo     map[string]actuation.ServoAction
	motor     map[string]actuation.MotorAction
}

func NewDecoder(tokens Tokens, limits Limits) (*Decoder, error) {
	tokens, err := tokens.Normalize()
	if err != nil {
		return nil, err
	}

	return &Decoder{
		tokens: tokens,
		limits: limits,
		actuators: map[string]actuation.ActuatorKind{
			tokens.Servo: actuation.Servo,
			tokens.Motor: actuation.DcMotor,
		},
		servo: map[string]actuation.ServoAction{
			tokens.ServoActions.Init:  actuation.ServoInit,
			tokens.ServoActions.Left:  actuation.ServoLeft,
			tokens.ServoActions.Right: actuation.ServoRight,
		},
		motor: map[string]actuation.MotorAction{
			tokens.MotorActions.Init:     actuation.MotorInit,
			tokens.MotorActions.Forward:  actuation.MotorForward,
			tokens.MotorActions.Backward: actuation.MotorBackward,
			tokens.MotorActions.Brake:    actuation.MotorBrake,
		},
	}, nil
}

func (d *Decoder) Tokens() Tokens { return d.tokens }

func (d *Decoder) Limits() Limits { return d.limits }

// MaxGrade returns the inclusive magnitude bound for kind.
func (d *Decoder) MaxGrade(kind actuation.ActuatorKind) uint {
	if kind == actuation.Servo {
		return d.limits.Servo
	}
	return d.limits.Motor
}

// Decode parses a single line without its terminator. Checks run in order
// actuator, action, magnitude and stop at the first failure.
func (d *Decoder) Decode(line []byte) (Result, error) {
	fields := strings.Fields(string(bytes.TrimRight(line, "\r\n")))
	if len(fields) == 0 {
		return Result{}, ErrUnknownActuator
	}

	head := strings.ToUpper(fields[0])
	if head == d.tokens.Reset {
		if len(fields) > 1 {
			return Result{}, &DecodeError{Reason: UnknownActuator, Token: strings.Join(fields, " ")}
		}
		return Result{Reset: true}, nil
	}

	kind, ok := d.actuators[head]
	if !ok {
		return Result{}, &DecodeError{Reason: UnknownActuator, Token: fields[0]}
	}

	if len(fields) < 2 {
		return Result{}, ErrUnknownAction
	}
	action, ok := d.action(kind, strings.ToUpper(fields[1]))
	if !ok {
		return Result{}, &DecodeError{Reason: UnknownAction, Token: fields[1]}
	}

	if len(fields) < 3 {
		return Result{}, ErrInvalidMagnitude
	}
	magnitude, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil || magnitude > uint64(d.MaxGrade(kind)) {
		return Result{}, &DecodeError{Reason: InvalidMagnitude, Token: fields[2]}
	}

	if len(fields) > 3 {
		return Result{}, &DecodeError{Reason: TrailingInput, Token: strings.Join(fields[3:], " ")}
	}

	return Result{
		Command: actuation.Command{
			Action:    action,
			Magnitude: uint(magnitude),
		},
	}, nil
}

func (d *Decoder) action(kind actuation.ActuatorKind, token string) (actuation.Action, bool) {
	switch kind {
	case actuation.Servo:
		a, ok := d.servo[token]
		return a, ok
	case actuation.DcMotor:
		a, ok := d.motor[token]
		return a, ok
	}
	return nil, false
}
