package actuation

import (
	"encoding/json"
	"fmt"
)

// ActuatorKind identifies which physical output a command targets.
type ActuatorKind uint8

const (
	Servo ActuatorKind = iota
	DcMotor
)

func (k ActuatorKind) String() string {
	switch k {
	case Servo:
		return "servo"
	case DcMotor:
		return "motor"
	default:
		return fmt.Sprintf("ActuatorKind(%d)", uint8(k))
	}
}

// Action is implemented only by ServoAction and MotorAction so an action
// always carries the kind of actuator it belongs to.
type Action interface {
	Kind() ActuatorKind
	String() string
}

// ServoAction positions the steering servo. ServoInit is the centre.
type ServoAction uint8

const (
	ServoInit ServoAction = iota
	ServoLeft
	ServoRight
)

func (ServoAction) Kind() ActuatorKind { return Servo }

func (a ServoAction) String() string {
	switch a {
	case ServoInit:
		return "init"
	case ServoLeft:
		return "left"
	case ServoRight:
		return "right"
	default:
		return fmt.Sprintf("ServoAction(%d)", uint8(a))
	}
}

// MotorAction drives the propulsion motor. MotorInit lets the motor coast,
// MotorBrake shorts it for an active stop.
type MotorAction uint8

const (
	MotorInit MotorAction = iota
	MotorForward
	MotorBackward
	MotorBrake
)

func (MotorAction) Kind() ActuatorKind { return DcMotor }

func (a MotorAction) String() string {
	switch a {
	case MotorInit:
		return "init"
	case MotorForward:
		return "forward"
	case MotorBackward:
		return "backward"
	case MotorBrake:
		return "brake"
	default:
		return fmt.Sprintf("MotorAction(%d)", uint8(a))
	}
}

// Command is a single decoded instruction. It is built per received line
// and never stored.
type Command struct {
	Action    Action
	Magnitude uint
}

// Kind reports the actuator targeted by the command.
func (c Command) Kind() ActuatorKind {
	return c.Action.Kind()
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s %d", c.Kind(), c.Action, c.Magnitude)
}

// ActuatorState is the last applied action and magnitude of one actuator.
type ActuatorState struct {
	Action    Action
	Magnitude uint
}

func (s ActuatorState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    string `json:"action"`
		Magnitude uint   `json:"magnitude"`
	}{s.Action.String(), s.Magnitude})
}

// initialState is the rest position of an actuator.
func initialState(kind ActuatorKind) ActuatorState {
	switch kind {
	case Servo:
		return ActuatorState{Action: ServoInit}
	default:
		return ActuatorState{Action: MotorInit}
	}
}

// Snapshot is a copy of both actuator states.
type Snapshot struct {
	Servo ActuatorState `json:"servo"`
	Motor ActuatorState `json:"motor"`
}

// Driver performs the physical output for a resolved command.
type Driver interface {
	DriveServo(action ServoAction, magnitude uint) error
	DriveMotor(action MotorAction, magnitude uint) error
}
