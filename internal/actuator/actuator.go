// Package actuator owns the node's actuator state. Every relay, indicator and
// buzzer change goes through State so that the in-memory flags only ever
// reflect confirmed pin writes.
package actuator

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/smarthome-node/internal/gpio"
)

// ErrHardwareFault matches every HardwareFault via errors.Is.
var ErrHardwareFault = errors.New("hardware fault")

// HardwareFault reports a failed pin write.
type HardwareFault struct {
	Output gpio.Output
	Err    error
}

func (e *HardwareFault) Error() string {
	return fmt.Sprintf("hardware fault on %s: %v", e.Output, e.Err)
}

func (e *HardwareFault) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrHardwareFault) true for any HardwareFault.
func (e *HardwareFault) Is(target error) bool { return target == ErrHardwareFault }

// Color is an RGB indicator color. Each channel is 0 or 1.
type Color struct {
	R, G, B uint8
}

// Named indicator colors.
var (
	ColorOff   = Color{0, 0, 0}
	ColorOK    = Color{0, 1, 0} // system running
	ColorAlert = Color{1, 0, 1} // motion alert
	ColorFault = Color{1, 0, 0} // error
	ColorInit  = Color{0, 0, 1} // starting up
	ColorWarn  = Color{1, 1, 0} // running without network
)

// NewColor builds a color, mapping any non-zero channel to 1.
func NewColor(r, g, b int) Color {
	return Color{R: bit(r), G: bit(g), B: bit(b)}
}

func bit(v int) uint8 {
	if v != 0 {
		return 1
	}
	return 0
}

func (c Color) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// Snapshot is a point-in-time copy of the actuator state.
type Snapshot struct {
	RelayOn     bool
	Color       Color
	AlarmActive bool
}

// Signal pattern timings.
const (
	AlertBeep    = 200 * time.Millisecond
	AlertGap     = 100 * time.Millisecond
	AlertFlash   = 300 * time.Millisecond
	ConfirmBeep  = 100 * time.Millisecond
	DefaultAlarm = 500 * time.Millisecond
)
