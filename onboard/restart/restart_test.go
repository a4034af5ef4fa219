package restart

import (
	"errors"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRestarter(t *testing.T) {
	Convey("Given a restarter with stubbed exec", t, func() {
		var calls []string
		var execPath string
		var execArgs []string
		exitCode := -1

		r := New()
		r.exec = func(argv0 string, argv []string, envv []string) error {
			calls = append(calls, "exec")
			execPath, execArgs = argv0, argv
			return errors.New("exec format error")
		}
		r.exit = func(code int) {
			calls = append(calls, "exit")
			exitCode = code
		}

		r.OnRestart(func() error {
			calls = append(calls, "close board")
			return nil
		})
		r.OnRestart(func() error {
			calls = append(calls, "close db")
			return errors.New("already closed")
		})

		r.Restart()

		Convey("hooks run newest first, even after a failure", func() {
			So(calls[:2], ShouldResemble, []string{"close db", "close board"})
		})

		Convey("the same binary is executed with the same arguments", func() {
			self, err := os.Executable()
			So(err, ShouldBeNil)
			So(execPath, ShouldEqual, self)
			So(execArgs, ShouldResemble, os.Args)
		})

		Convey("a failed exec exits non-zero", func() {
			So(calls[2:], ShouldResemble, []string{"exec", "exit"})
			So(exitCode, ShouldEqual, 1)
		})

		Convey("hooks only run once", func() {
			calls = nil
			r.Restart()
			So(calls, ShouldResemble, []string{"exec", "exit"})
		})
	})
}
