package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/CodedInternet/matthieu/onboard/actuation"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestDecoder() *Decoder {
	d, err := NewDecoder(DefaultTokens(), DefaultLimits())
	if err != nil {
		panic(err)
	}
	return d
}

func TestDecode(t *testing.T) {
	d := newTestDecoder()

	Convey("well formed commands decode", t, func() {
		Convey("servo right 45", func() {
			res, err := d.Decode([]byte("SERVO RIGHT 45"))
			So(err, ShouldBeNil)
			So(res.Reset, ShouldBeFalse)
			So(res.Command, ShouldResemble, actuation.Command{Action: actuation.ServoRight, Magnitude: 45})
		})

		Convey("every motor action", func() {
			for token, action := range map[string]actuation.MotorAction{
				"INIT": actuation.MotorInit,
				"FWD":  actuation.MotorForward,
				"BWD":  actuation.MotorBackward,
				"BRK":  actuation.MotorBrake,
			} {
				res, err := d.Decode([]byte("MOTOR " + token + " 7"))
				So(err, ShouldBeNil)
				So(res.Command.Action, ShouldEqual, action)
				So(res.Command.Kind(), ShouldEqual, actuation.DcMotor)
			}
		})

		Convey("tokens are case insensitive and whitespace tolerant", func() {
			res, err := d.Decode([]byte("  servo\tLeft   12 \r"))
			So(err, ShouldBeNil)
			So(res.Command, ShouldResemble, actuation.Command{Action: actuation.ServoLeft, Magnitude: 12})
		})

		Convey("magnitude bounds are inclusive", func() {
			_, err := d.Decode([]byte("SERVO LEFT 0"))
			So(err, ShouldBeNil)
			_, err = d.Decode([]byte(fmt.Sprintf("SERVO LEFT %d", DefaultServoMaxGrade)))
			So(err, ShouldBeNil)
			_, err = d.Decode([]byte(fmt.Sprintf("MOTOR FWD %d", DefaultMotorMaxGrade)))
			So(err, ShouldBeNil)
		})
	})

	Convey("the reset token is recognised", t, func() {
		res, err := d.Decode([]byte("RESET"))
		So(err, ShouldBeNil)
		So(res.Reset, ShouldBeTrue)

		Convey("but only on its own", func() {
			_, err := d.Decode([]byte("RESET now"))
			So(errors.Is(err, ErrUnknownActuator), ShouldBeTrue)
		})
	})

	Convey("malformed lines are rejected in validation order", t, func() {
		cases := []struct {
			line   string
			expect error
		}{
			{"", ErrUnknownActuator},
			{"RUDDER LEFT 10", ErrUnknownActuator},
			{"RUDDER UP 999", ErrUnknownActuator},
			{"SERVO", ErrUnknownAction},
			{"SERVO UP 10", ErrUnknownAction},
			{"SERVO FWD 10", ErrUnknownAction},
			{"MOTOR LEFT 10", ErrUnknownAction},
			{"MOTOR UP -1", ErrUnknownAction},
			{"MOTOR FWD", ErrInvalidMagnitude},
			{"MOTOR FWD -1", ErrInvalidMagnitude},
			{"MOTOR FWD +1", ErrInvalidMagnitude},
			{"MOTOR FWD ten", ErrInvalidMagnitude},
			{"MOTOR FWD 1.5", ErrInvalidMagnitude},
			{"MOTOR FWD 101", ErrInvalidMagnitude},
			{"SERVO RIGHT 91", ErrInvalidMagnitude},
			{"MOTOR FWD 99999999999999999999999", ErrInvalidMagnitude},
			{"MOTOR FWD 10 20", ErrTrailingInput},
		}

		for _, c := range cases {
			_, err := d.Decode([]byte(c.line))
			So(err, ShouldNotBeNil)
			So(errors.Is(err, c.expect), ShouldBeTrue)
		}
	})

	Convey("errors carry the offending token", t, func() {
		_, err := d.Decode([]byte("SERVO UP 10"))
		var de *DecodeError
		So(errors.As(err, &de), ShouldBeTrue)
		So(de.Reason, ShouldEqual, UnknownAction)
		So(de.Token, ShouldEqual, "UP")
		So(err.Error(), ShouldEqual, `unknown action "UP"`)
	})

	Convey("every magnitude above the bound is rejected", t, func() {
		for m := DefaultServoMaxGrade + 1; m < DefaultServoMaxGrade+50; m++ {
			_, err := d.Decode([]byte(fmt.Sprintf("SERVO RIGHT %d", m)))
			So(errors.Is(err, ErrInvalidMagnitude), ShouldBeTrue)
		}
	})
}

func TestDecodeThenApply(t *testing.T) {
	d := newTestDecoder()

	Convey("every valid command is reflected exactly by the machine", t, func() {
		m := actuation.NewMachine(nopDriver{})
		for _, action := range []string{"INIT", "LEFT", "RIGHT"} {
			for grade := uint(0); grade <= DefaultServoMaxGrade; grade += 15 {
				res, err := d.Decode([]byte(fmt.Sprintf("SERVO %s %d", action, grade)))
				So(err, ShouldBeNil)
				So(m.Apply(res.Command), ShouldBeNil)

				state := m.State(actuation.Servo)
				So(state.Action, ShouldEqual, res.Command.Action)
				So(state.Magnitude, ShouldEqual, grade)
			}
		}
	})
}

type nopDriver struct{}

func (nopDriver) DriveServo(actuation.ServoAction, uint) error { return nil }
func (nopDriver) DriveMotor(actuation.MotorAction, uint) error { return nil }

func TestCustomVocabulary(t *testing.T) {
	Convey("a deployment can respell the protocol", t, func() {
		tokens := Tokens{
			Servo: "s",
			Motor: "m",
			Reset: "!",
			MotorActions: MotorTokens{
				Forward: "f",
			},
		}
		d, err := NewDecoder(tokens, Limits{Servo: 30, Motor: 255})
		So(err, ShouldBeNil)

		res, err := d.Decode([]byte("m f 255"))
		So(err, ShouldBeNil)
		So(res.Command, ShouldResemble, actuation.Command{Action: actuation.MotorForward, Magnitude: 255})

		Convey("unset tokens fall back to the defaults", func() {
			res, err := d.Decode([]byte("M BRK 0"))
			So(err, ShouldBeNil)
			So(res.Command.Action, ShouldEqual, actuation.MotorBrake)
		})

		Convey("bounds follow the configured limits", func() {
			_, err := d.Decode([]byte("s left 31"))
			So(errors.Is(err, ErrInvalidMagnitude), ShouldBeTrue)
		})

		Convey("the default spellings are no longer understood", func() {
			_, err := d.Decode([]byte("MOTOR FWD 1"))
			So(errors.Is(err, ErrUnknownActuator), ShouldBeTrue)
		})
	})

	Convey("ambiguous vocabularies are refused", t, func() {
		_, err := NewDecoder(Tokens{Servo: "GO", Reset: "go"}, DefaultLimits())
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "more than once")

		_, err = NewDecoder(Tokens{MotorActions: MotorTokens{Brake: "FULL STOP"}}, DefaultLimits())
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "whitespace")
	})
}
