package logic

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidParams is returned when control parameters are inconsistent.
var ErrInvalidParams = errors.New("invalid control parameters")

// Params is the immutable control configuration.
type Params struct {
	TempHigh       float64       // relay turns on above this
	TempLow        float64       // relay turns off below this
	AlertCooldown  time.Duration // minimum spacing between motion alerts
	ReadInterval   time.Duration // time between ticks
	TelemetryEvery int           // publish telemetry every N ticks
}

// Validate checks the parameters. TempLow must be strictly below TempHigh,
// otherwise the relay would oscillate around a single setpoint.
func (p Params) Validate() error {
	if !(p.TempLow < p.TempHigh) {
		return fmt.Errorf("%w: temp low %.2f must be below temp high %.2f", ErrInvalidParams, p.TempLow, p.TempHigh)
	}
	if p.ReadInterval <= 0 {
		return fmt.Errorf("%w: read interval must be positive, got %v", ErrInvalidParams, p.ReadInterval)
	}
	if p.TelemetryEvery < 1 {
		return fmt.Errorf("%w: telemetry interval must be at least 1 cycle, got %d", ErrInvalidParams, p.TelemetryEvery)
	}
	if p.AlertCooldown < 0 {
		return fmt.Errorf("%w: alert cooldown must not be negative, got %v", ErrInvalidParams, p.AlertCooldown)
	}
	return nil
}
