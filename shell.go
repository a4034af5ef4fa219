package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/CodedInternet/matthieu/onboard"
	"github.com/CodedInternet/matthieu/onboard/journal"
	"github.com/abiosoft/ishell"
)

type Restarter interface {
	Restart()
}

// sendLine decodes a line exactly as a control client would send it and
// applies the result. RESET is refused here; use the restart command.
func sendLine(device *onboard.Device, line string) (string, error) {
	res, err := device.Decoder.Decode([]byte(line))
	if err != nil {
		return "", err
	}
	if res.Reset {
		return "", fmt.Errorf("use the restart command to restart")
	}

	if err := device.Machine.Apply(res.Command); err != nil {
		return "", err
	}
	return res.Command.String(), nil
}

func formatState(device *onboard.Device) string {
	snap := device.Machine.Snapshot()
	return fmt.Sprintf("servo: %s %d\nmotor: %s %d",
		snap.Servo.Action, snap.Servo.Magnitude,
		snap.Motor.Action, snap.Motor.Magnitude)
}

func formatSessions(records []journal.Record) string {
	if len(records) == 0 {
		return "no sessions yet"
	}

	var b strings.Builder
	for _, rec := range records {
		ended := "running"
		if !rec.Ended.IsZero() {
			ended = fmt.Sprintf("%s after %s", rec.EndReason, rec.Duration().Round(time.Second))
		}
		fmt.Fprintf(&b, "%s %-9s %-21s applied %-5d rejected %-5d %s\n",
			rec.Started.Format(time.RFC3339), rec.Transport, rec.Remote, rec.Applied, rec.Rejected, ended)
	}
	return strings.TrimRight(b.String(), "\n")
}

// countArg reads an optional count from the first argument, falling back to
// def, and refuses anything below min.
func countArg(args []string, def, min int) (int, error) {
	if len(args) == 0 {
		return def, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", args[0])
	}
	if n < min {
		return 0, fmt.Errorf("count must be at least %d", min)
	}
	return n, nil
}

func newShell(device *onboard.Device, sessions *journal.Journal, restarter Restarter) *ishell.Shell {
	shell := ishell.New()
	shell.Println("Matthieu development shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "createsuperuser",
		Help: "createsuperuser <email> <password>",
		Func: func(c *ishell.Context) {
			// disable the '>>>' for cleaner same line input.
			c.ShowPrompt(false)
			defer c.ShowPrompt(true) // yes, revert when done.

			var email string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}

			var password string
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}

			if _, err := createUser(ENV.DB, email, password, true); err != nil {
				c.Err(err)
				return
			}
			c.Println("Superuser created")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "send <line>, e.g. send SERVO LEFT 20",
		Func: func(c *ishell.Context) {
			applied, err := sendLine(device, strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("applied", applied)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "show the last commanded state",
		Func: func(c *ishell.Context) {
			c.Println(formatState(device))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "sessions",
		Help: "sessions [n]",
		Func: func(c *ishell.Context) {
			n, err := countArg(c.Args, 10, 1)
			if err != nil {
				c.Err(err)
				return
			}

			records, err := sessions.Recent(n)
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(formatSessions(records))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "prune",
		Help: "prune <keep>",
		Func: func(c *ishell.Context) {
			keep, err := countArg(c.Args, device.Config.Journal.Keep, 0)
			if err != nil {
				c.Err(err)
				return
			}

			removed, err := sessions.Prune(keep)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("removed %d sessions\n", removed)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "restart",
		Help: "rest the actuators and restart the process",
		Func: func(c *ishell.Context) {
			c.Println("Restarting")
			restarter.Restart()
		},
	})

	return shell
}
