package logic

import "fmt"

// ClimateMode is the controller state derived from the relay.
type ClimateMode string

const (
	ModeIdle    ClimateMode = "idle"    // relay off
	ModeCooling ClimateMode = "cooling" // relay on
)

// ClimateController drives the relay from temperature with hysteresis.
// The confirmed relay state is the controller state, so a remote command that
// flips the relay is respected by the next evaluation.
type ClimateController struct {
	low   float64
	high  float64
	relay RelaySwitch
}

// NewClimateController creates a controller. low must be strictly below high.
func NewClimateController(low, high float64, relay RelaySwitch) (*ClimateController, error) {
	if !(low < high) {
		return nil, fmt.Errorf("%w: temp low %.2f must be below temp high %.2f", ErrInvalidParams, low, high)
	}
	return &ClimateController{low: low, high: high, relay: relay}, nil
}

// Update evaluates one reading and reports whether the relay was switched.
// Readings without temperature and readings inside [low, high] never switch.
// A hardware fault is returned as is and the relay state is left unchanged.
func (c *ClimateController) Update(r Reading) (bool, error) {
	if r.Temperature == nil {
		return false, nil
	}
	t := *r.Temperature
	on := c.relay.RelayOn()

	switch {
	case !on && t > c.high:
		if err := c.relay.SetRelay(true); err != nil {
			return false, err
		}
		return true, nil
	case on && t < c.low:
		if err := c.relay.SetRelay(false); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Mode returns the current controller state.
func (c *ClimateController) Mode() ClimateMode {
	if c.relay.RelayOn() {
		return ModeCooling
	}
	return ModeIdle
}
