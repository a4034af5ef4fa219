package errors

import "fmt"

type ChannelError struct {
	Actuator string
	Channel  uint8
}

func (err ChannelError) Error() string {
	if len(err.Actuator) == 0 {
		err.Actuator = "UNKNOWN"
	}
	return fmt.Sprintf("channel %d is not available for %s", err.Channel, err.Actuator)
}

// FirmwareError is returned when the PWM co-processor reports a version the
// node is not built to talk to.
type FirmwareError struct {
	Version    string
	Constraint string
}

func (err FirmwareError) Error() string {
	return fmt.Sprintf("unable to use board firmware %s - require %s", err.Version, err.Constraint)
}

type ReplyError struct {
	Command string
	Reply   string
}

func (err ReplyError) Error() string {
	if len(err.Reply) == 0 {
		err.Reply = "no reply"
	}
	return fmt.Sprintf("board rejected %q: %s", err.Command, err.Reply)
}
