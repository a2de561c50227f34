// Package command decodes remote commands from the control topic and applies
// them to the actuators.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/sweeney/smarthome-node/internal/actuator"
)

var (
	ErrMalformedCommand = errors.New("malformed command")
	ErrUnknownDevice    = errors.New("unknown device")
	ErrUnknownAction    = errors.New("unknown action")
)

// Device is the actuator a command targets.
type Device string

const (
	DeviceRelay     Device = "relay"
	DeviceIndicator Device = "indicator"
	DeviceAlarm     Device = "alarm"
	DeviceUnknown   Device = "unknown"
)

// Action is what to do with the device.
type Action string

const (
	ActionOn     Action = "on"
	ActionOff    Action = "off"
	ActionToggle Action = "toggle"
)

// Command is a decoded remote command. Action holds the raw value when it
// does not map to a known action.
type Command struct {
	Device Device
	Action Action
	Color  actuator.Color
	Raw    map[string]any
}

// wire is the payload as dashboards send it.
type wire struct {
	Device string  `mapstructure:"dispositivo"`
	Action string  `mapstructure:"accion"`
	R      float64 `mapstructure:"r"`
	G      float64 `mapstructure:"g"`
	B      float64 `mapstructure:"b"`
}

var devices = map[string]Device{
	"relay":     DeviceRelay,
	"led":       DeviceIndicator,
	"indicator": DeviceIndicator,
	"buzzer":    DeviceAlarm,
	"alarm":     DeviceAlarm,
}

var actions = map[string]Action{
	"encender": ActionOn,
	"on":       ActionOn,
	"apagar":   ActionOff,
	"off":      ActionOff,
	"alternar": ActionToggle,
	"toggle":   ActionToggle,
}

// Decode parses a command payload. The payload must be a JSON object;
// individual fields that cannot be decoded take their zero value and are
// reported in fieldErrs.
func Decode(payload []byte) (cmd Command, fieldErrs []string, err error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Command{}, nil, fmt.Errorf("%w: %w", ErrMalformedCommand, err)
	}
	if raw == nil {
		return Command{}, nil, fmt.Errorf("%w: not an object", ErrMalformedCommand)
	}

	var w wire
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &w,
	})
	if err != nil {
		return Command{}, nil, err
	}
	if err := dec.Decode(raw); err != nil {
		var merr *mapstructure.Error
		if errors.As(err, &merr) {
			fieldErrs = merr.Errors
		} else {
			fieldErrs = []string{err.Error()}
		}
	}

	cmd = Command{
		Device: DeviceUnknown,
		Action: Action(w.Action),
		Color:  actuator.NewColor(flag(w.R), flag(w.G), flag(w.B)),
		Raw:    raw,
	}
	if d, ok := devices[strings.ToLower(w.Device)]; ok {
		cmd.Device = d
	}
	if a, ok := actions[strings.ToLower(w.Action)]; ok {
		cmd.Action = a
	}
	return cmd, fieldErrs, nil
}

func flag(v float64) int {
	if v != 0 {
		return 1
	}
	return 0
}
