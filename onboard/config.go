package onboard

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/CodedInternet/matthieu/onboard/hardware"
	"github.com/CodedInternet/matthieu/onboard/protocol"
	"github.com/CodedInternet/matthieu/onboard/session"
	"gopkg.in/yaml.v2"
)

const CONFIG_VERSION = 1

type DeviceConfig struct {
	Version     int
	AccessPoint AccessPointConfig `yaml:"accesspoint"`
	Control     session.Config
	Journal     JournalConfig
	Tokens      protocol.Tokens
	Servo       hardware.ServoConfig
	Motor       hardware.MotorConfig
	Board       hardware.BoardConfig
}

// AccessPointConfig is handed to the hotspot service on the boat. The node
// itself only validates it and reports it through the info endpoint.
type AccessPointConfig struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
}

// LogValue keeps the passphrase out of the logs.
func (ap AccessPointConfig) LogValue() slog.Value {
	return slog.GroupValue(slog.String("ssid", ap.SSID))
}

type yamlAccessPoint AccessPointConfig

func (ap *AccessPointConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	ya := yamlAccessPoint{
		SSID:       "Matthieu",
		Passphrase: "letssail",
	}
	if err := unmarshal(&ya); err != nil {
		return err
	}

	// WPA2 passphrase rules
	if n := len(ya.Passphrase); n < 8 || n > 63 {
		return fmt.Errorf("accesspoint passphrase must be 8 to 63 characters, got %d", n)
	}
	if ya.SSID == "" || len(ya.SSID) > 32 {
		return fmt.Errorf("accesspoint ssid must be 1 to 32 characters")
	}

	*ap = AccessPointConfig(ya)
	return nil
}

type JournalConfig struct {
	Keep int `yaml:"keep"` // sessions kept when pruning
}

func DefaultConfig() DeviceConfig {
	return DeviceConfig{
		Version: CONFIG_VERSION,
		AccessPoint: AccessPointConfig{
			SSID:       "Matthieu",
			Passphrase: "letssail",
		},
		Journal: JournalConfig{Keep: 100},
		Tokens:  protocol.DefaultTokens(),
	}.withDefaults()
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	c.Control = c.Control.WithDefaults()
	c.Servo = c.Servo.WithDefaults()
	c.Motor = c.Motor.WithDefaults()
	if c.AccessPoint.SSID == "" {
		c.AccessPoint = AccessPointConfig{SSID: "Matthieu", Passphrase: "letssail"}
	}
	if c.Journal.Keep <= 0 {
		c.Journal.Keep = 100
	}
	return c
}

// Limits derives the decoder bounds from the actuator configuration.
func (c DeviceConfig) Limits() protocol.Limits {
	return protocol.Limits{
		Servo: c.Servo.MaxGrade,
		Motor: c.Motor.MaxGrade,
	}
}

// ParseConfig reads a YAML device configuration and fills in defaults.
func ParseConfig(data []byte) (config DeviceConfig, err error) {
	if err = yaml.Unmarshal(data, &config); err != nil {
		return
	}

	switch config.Version {
	case CONFIG_VERSION:
		config = config.withDefaults()
		config.Tokens, err = config.Tokens.Normalize()

	default:
		err = fmt.Errorf("unable to work with version %d", config.Version)
	}

	return
}

func LoadConfig(filename string) (DeviceConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return DeviceConfig{}, fmt.Errorf("unable to read config: %w", err)
	}
	return ParseConfig(data)
}
