package command

import (
	"fmt"
	"time"

	"github.com/sweeney/smarthome-node/internal/actuator"
	"github.com/sweeney/smarthome-node/internal/log"
)

// Actuators is the subset of actuator.State commands can drive.
type Actuators interface {
	SetRelay(on bool) error
	ToggleRelay() error
	SetColor(c actuator.Color) error
	Beep(d time.Duration) error
}

// Result describes what Apply did.
type Result struct {
	Command  Command
	Executed bool
}

// Router applies decoded commands to the actuators.
type Router struct {
	act       Actuators
	alarmBeep time.Duration
	log       log.Logger
}

// NewRouter creates a Router. alarmBeep is the buzzer duration for
// "alarm on"; zero selects actuator.DefaultAlarm.
func NewRouter(act Actuators, alarmBeep time.Duration, logger log.Logger) *Router {
	if alarmBeep <= 0 {
		alarmBeep = actuator.DefaultAlarm
	}
	return &Router{act: act, alarmBeep: alarmBeep, log: logger.WithName("command")}
}

// Apply decodes payload and executes it. Errors are logged and returned;
// none of them are fatal to the caller.
func (r *Router) Apply(payload []byte) (Result, error) {
	cmd, fieldErrs, err := Decode(payload)
	if err != nil {
		r.log.Warn("command rejected", "error", err.Error(), "payload", string(payload))
		return Result{}, err
	}
	for _, fe := range fieldErrs {
		r.log.Warn("command field ignored", "problem", fe)
	}

	res := Result{Command: cmd}
	if err := r.execute(cmd); err != nil {
		r.log.Error(err, "command failed", "device", cmd.Device, "action", cmd.Action)
		return res, err
	}
	res.Executed = true
	r.log.Info("command applied", "device", cmd.Device, "action", cmd.Action, "color", cmd.Color.String())
	return res, nil
}

func (r *Router) execute(cmd Command) error {
	switch cmd.Device {
	case DeviceRelay:
		switch cmd.Action {
		case ActionOn:
			return r.act.SetRelay(true)
		case ActionOff:
			return r.act.SetRelay(false)
		case ActionToggle:
			return r.act.ToggleRelay()
		}
		return fmt.Errorf("%w: relay %q", ErrUnknownAction, cmd.Action)

	case DeviceIndicator:
		return r.act.SetColor(cmd.Color)

	case DeviceAlarm:
		if cmd.Action == ActionOn {
			return r.act.Beep(r.alarmBeep)
		}
		return fmt.Errorf("%w: alarm %q", ErrUnknownAction, cmd.Action)
	}

	if d, ok := cmd.Raw["dispositivo"]; ok {
		return fmt.Errorf("%w: %v", ErrUnknownDevice, d)
	}
	return ErrUnknownDevice
}
