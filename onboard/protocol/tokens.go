package protocol

import (
	"fmt"
	"strings"
)

const (
	DefaultServoMaxGrade = 90
	DefaultMotorMaxGrade = 100
)

type ServoTokens struct {
	Init  string `yaml:"init" json:"init"`
	Left  string `yaml:"left" json:"left"`
	Right string `yaml:"right" json:"right"`
}

type MotorTokens struct {
	Init     string `yaml:"init" json:"init"`
	Forward  string `yaml:"forward" json:"forward"`
	Backward string `yaml:"backward" json:"backward"`
	Brake    string `yaml:"brake" json:"brake"`
}

// Tokens is the spelling of the wire protocol for one deployment.
// Matching is case-insensitive.
type Tokens struct {
	Servo        string      `yaml:"servo" json:"servo"`
	Motor        string      `yaml:"motor" json:"motor"`
	Reset        string      `yaml:"reset" json:"reset"`
	ServoActions ServoTokens `yaml:"servo_actions" json:"servo_actions"`
	MotorActions MotorTokens `yaml:"motor_actions" json:"motor_actions"`
}

func DefaultTokens() Tokens {
	return Tokens{
		Servo: "SERVO",
		Motor: "MOTOR",
		Reset: "RESET",
		ServoActions: ServoTokens{
			Init:  "INIT",
			Left:  "LEFT",
			Right: "RIGHT",
		},
		MotorActions: MotorTokens{
			Init:     "INIT",
			Forward:  "FWD",
			Backward: "BWD",
			Brake:    "BRK",
		},
	}
}

// Limits holds the inclusive maximum magnitude per actuator.
type Limits struct {
	Servo uint `json:"servo"`
	Motor uint `json:"motor"`
}

func DefaultLimits() Limits {
	return Limits{
		Servo: DefaultServoMaxGrade,
		Motor: DefaultMotorMaxGrade,
	}
}

// Normalize fills unset tokens with the defaults, upper-cases everything and
// checks that the vocabulary is unambiguous.
func (t Tokens) Normalize() (Tokens, error) {
	def := DefaultTokens()
	fill := func(v *string, d string) {
		*v = strings.ToUpper(strings.TrimSpace(*v))
		if *v == "" {
			*v = d
		}
	}

	fill(&t.Servo, def.Servo)
	fill(&t.Motor, def.Motor)
	fill(&t.Reset, def.Reset)
	fill(&t.ServoActions.Init, def.ServoActions.Init)
	fill(&t.ServoActions.Left, def.ServoActions.Left)
	fill(&t.ServoActions.Right, def.ServoActions.Right)
	fill(&t.MotorActions.Init, def.MotorActions.Init)
	fill(&t.MotorActions.Forward, def.MotorActions.Forward)
	fill(&t.MotorActions.Backward, def.MotorActions.Backward)
	fill(&t.MotorActions.Brake, def.MotorActions.Brake)

	groups := map[string][]string{
		"actuator":     {t.Servo, t.Motor, t.Reset},
		"servo action": {t.ServoActions.Init, t.ServoActions.Left, t.ServoActions.Right},
		"motor action": {t.MotorActions.Init, t.MotorActions.Forward, t.MotorActions.Backward, t.MotorActions.Brake},
	}
	for group, tokens := range groups {
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if strings.ContainsAny(tok, " \t\r\n") {
				return t, fmt.Errorf("%s token %q contains whitespace", group, tok)
			}
			if seen[tok] {
				return t, fmt.Errorf("%s token %q is used more than once", group, tok)
			}
			seen[tok] = true
		}
	}

	return t, nil
}
