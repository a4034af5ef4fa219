// Package actuation holds the last commanded state of the steering servo and
// the propulsion motor and forwards every applied command to a Driver.
package actuation

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoAction = errors.New("command has no action")
)

// Machine is the single source of truth for what was last commanded.
// Apply, Reset and Reapply are expected to be called from one goroutine;
// the lock only protects readers such as the admin API.
type Machine struct {
	driver Driver
	lock   sync.RWMutex
	states [2]ActuatorState
}

func NewMachine(driver Driver) *Machine {
	m := &Machine{driver: driver}
	m.states[Servo] = initialState(Servo)
	m.states[DcMotor] = initialState(DcMotor)
	return m
}

// Apply records the command as the new state of its actuator and drives the
// output. The previous state never blocks a transition. A driver failure is
// returned but the state still records the command.
func (m *Machine) Apply(cmd Command) error {
	if cmd.Action == nil {
		return ErrNoAction
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.states[cmd.Kind()] = ActuatorState{
		Action:    cmd.Action,
		Magnitude: cmd.Magnitude,
	}

	return m.drive(cmd.Action, cmd.Magnitude)
}

// Reset returns both actuators to their rest state and drives them there.
func (m *Machine) Reset() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs []error
	for _, kind := range []ActuatorKind{Servo, DcMotor} {
		s := initialState(kind)
		m.states[kind] = s
		if err := m.drive(s.Action, s.Magnitude); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Reapply issues the current state of both actuators to the driver again.
func (m *Machine) Reapply() error {
	m.lock.Lock()
	defer m.lock.Unlock()

	var errs []error
	for _, s := range m.states {
		if err := m.drive(s.Action, s.Magnitude); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// State returns the last applied state for kind.
func (m *Machine) State(kind ActuatorKind) ActuatorState {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.states[kind]
}

func (m *Machine) Snapshot() Snapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return Snapshot{
		Servo: m.states[Servo],
		Motor: m.states[DcMotor],
	}
}

// drive must be called with the lock held.
func (m *Machine) drive(action Action, magnitude uint) (err error) {
	switch a := action.(type) {
	case ServoAction:
		err = m.driver.DriveServo(a, magnitude)
	case MotorAction:
		err = m.driver.DriveMotor(a, magnitude)
	default:
		return fmt.Errorf("unknown action type %T", action)
	}

	if err != nil {
		return fmt.Errorf("unable to drive %s %s %d: %w", action.Kind(), action, magnitude, err)
	}
	return nil
}
