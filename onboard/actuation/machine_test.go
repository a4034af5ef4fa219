package actuation

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type driveCall struct {
	action    Action
	magnitude uint
}

type recordingDriver struct {
	calls []driveCall
	err   error
}

func (d *recordingDriver) DriveServo(action ServoAction, magnitude uint) error {
	d.calls = append(d.calls, driveCall{action, magnitude})
	return d.err
}

func (d *recordingDriver) DriveMotor(action MotorAction, magnitude uint) error {
	d.calls = append(d.calls, driveCall{action, magnitude})
	return d.err
}

func (d *recordingDriver) last() driveCall {
	return d.calls[len(d.calls)-1]
}

func TestMachine(t *testing.T) {
	Convey("a new machine starts at rest", t, func() {
		driver := new(recordingDriver)
		m := NewMachine(driver)

		So(m.State(Servo), ShouldResemble, ActuatorState{Action: ServoInit})
		So(m.State(DcMotor), ShouldResemble, ActuatorState{Action: MotorInit})
		So(driver.calls, ShouldBeEmpty)

		Convey("applying a command updates only its actuator", func() {
			err := m.Apply(Command{Action: ServoRight, Magnitude: 45})
			So(err, ShouldBeNil)
			So(m.State(Servo), ShouldResemble, ActuatorState{Action: ServoRight, Magnitude: 45})
			So(m.State(DcMotor), ShouldResemble, ActuatorState{Action: MotorInit})
			So(driver.last(), ShouldResemble, driveCall{ServoRight, 45})
		})

		Convey("the latest command wins regardless of the previous state", func() {
			So(m.Apply(Command{Action: MotorForward, Magnitude: 80}), ShouldBeNil)
			So(m.Apply(Command{Action: MotorBackward, Magnitude: 10}), ShouldBeNil)
			So(m.State(DcMotor), ShouldResemble, ActuatorState{Action: MotorBackward, Magnitude: 10})

			So(m.Apply(Command{Action: MotorBrake}), ShouldBeNil)
			So(m.State(DcMotor), ShouldResemble, ActuatorState{Action: MotorBrake})
		})

		Convey("applying the same command twice is idempotent", func() {
			cmd := Command{Action: ServoLeft, Magnitude: 30}
			So(m.Apply(cmd), ShouldBeNil)
			first := m.Snapshot()
			So(m.Apply(cmd), ShouldBeNil)
			So(m.Snapshot(), ShouldResemble, first)
			So(driver.calls, ShouldHaveLength, 2)
			So(driver.calls[0], ShouldResemble, driver.calls[1])
		})

		Convey("reset drives both actuators back to rest", func() {
			m.Apply(Command{Action: ServoLeft, Magnitude: 20})
			m.Apply(Command{Action: MotorForward, Magnitude: 50})
			driver.calls = nil

			So(m.Reset(), ShouldBeNil)
			So(m.Snapshot(), ShouldResemble, Snapshot{
				Servo: ActuatorState{Action: ServoInit},
				Motor: ActuatorState{Action: MotorInit},
			})
			So(driver.calls, ShouldResemble, []driveCall{{ServoInit, 0}, {MotorInit, 0}})
		})

		Convey("reapply re-issues the current state", func() {
			m.Apply(Command{Action: MotorForward, Magnitude: 50})
			driver.calls = nil

			So(m.Reapply(), ShouldBeNil)
			So(driver.calls, ShouldResemble, []driveCall{{ServoInit, 0}, {MotorForward, 50}})
		})

		Convey("a command without an action is rejected", func() {
			So(m.Apply(Command{}), ShouldEqual, ErrNoAction)
			So(driver.calls, ShouldBeEmpty)
		})
	})

	Convey("driver failures are reported but the intent is recorded", t, func() {
		fail := errors.New("link down")
		driver := &recordingDriver{err: fail}
		m := NewMachine(driver)

		err := m.Apply(Command{Action: MotorForward, Magnitude: 20})
		So(errors.Is(err, fail), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "motor forward 20")
		So(m.State(DcMotor), ShouldResemble, ActuatorState{Action: MotorForward, Magnitude: 20})

		Convey("reset reports every failure", func() {
			err := m.Reset()
			So(errors.Is(err, fail), ShouldBeTrue)
			So(driver.calls, ShouldHaveLength, 3)
		})
	})
}

func TestActuatorStateJSON(t *testing.T) {
	Convey("states marshal with readable action names", t, func() {
		b, err := ActuatorState{Action: MotorBrake, Magnitude: 3}.MarshalJSON()
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, `{"action":"brake","magnitude":3}`)
	})
}
