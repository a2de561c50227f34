package actuator

import (
	"time"

	"github.com/sweeney/smarthome-node/internal/gpio"
)

// State is the single owner of relay, indicator and alarm state.
// It is not safe for concurrent use; the control loop serializes access.
type State struct {
	out   gpio.Writer
	snap  Snapshot
	sleep func(d time.Duration)
}

// Option configures a State.
type Option func(*State)

// WithSleep replaces time.Sleep in signal patterns (tests).
func WithSleep(sleep func(d time.Duration)) Option {
	return func(s *State) { s.sleep = sleep }
}

// New creates a State over out. The initial state is all off; call SafeState
// to force the pins to match.
func New(out gpio.Writer, opts ...Option) *State {
	s := &State{out: out, sleep: time.Sleep}
	for _, o := range opts {
		o(s)
	}
	return s
}

// RelayOn returns the confirmed relay state.
func (s *State) RelayOn() bool {
	return s.snap.RelayOn
}

// Snapshot returns the current state by value.
func (s *State) Snapshot() Snapshot {
	return s.snap
}

// SetRelay switches the relay. Setting the current value is a no-op.
func (s *State) SetRelay(on bool) error {
	if s.snap.RelayOn == on {
		return nil
	}
	if err := s.write(gpio.Relay, on); err != nil {
		return err
	}
	s.snap.RelayOn = on
	return nil
}

// ToggleRelay flips the relay.
func (s *State) ToggleRelay() error {
	return s.SetRelay(!s.snap.RelayOn)
}

// SetAlarm switches the buzzer. Setting the current value is a no-op.
func (s *State) SetAlarm(on bool) error {
	if s.snap.AlarmActive == on {
		return nil
	}
	if err := s.write(gpio.Buzzer, on); err != nil {
		return err
	}
	s.snap.AlarmActive = on
	return nil
}

// SetColor sets the indicator. Only channels that differ are written. If a
// channel write fails, channels already changed by this call are restored
// and the recorded color is left as it was.
func (s *State) SetColor(c Color) error {
	prev := s.snap.Color
	channels := []struct {
		out      gpio.Output
		from, to uint8
	}{
		{gpio.LEDRed, prev.R, c.R},
		{gpio.LEDGreen, prev.G, c.G},
		{gpio.LEDBlue, prev.B, c.B},
	}

	for i, ch := range channels {
		if ch.from == ch.to {
			continue
		}
		if err := s.write(ch.out, ch.to == 1); err != nil {
			for _, done := range channels[:i] {
				if done.from != done.to {
					_ = s.out.Write(done.out, done.from == 1)
				}
			}
			return err
		}
	}
	s.snap.Color = c
	return nil
}

// SafeState writes relay off, indicator off and buzzer off to every pin
// regardless of the recorded state. All pins are attempted; the first fault
// is returned.
func (s *State) SafeState() error {
	var first error
	for _, out := range []gpio.Output{gpio.Relay, gpio.LEDRed, gpio.LEDGreen, gpio.LEDBlue, gpio.Buzzer} {
		if err := s.write(out, false); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		switch out {
		case gpio.Relay:
			s.snap.RelayOn = false
		case gpio.LEDRed:
			s.snap.Color.R = 0
		case gpio.LEDGreen:
			s.snap.Color.G = 0
		case gpio.LEDBlue:
			s.snap.Color.B = 0
		case gpio.Buzzer:
			s.snap.AlarmActive = false
		}
	}
	return first
}

func (s *State) write(out gpio.Output, on bool) error {
	if err := s.out.Write(out, on); err != nil {
		return &HardwareFault{Output: out, Err: err}
	}
	return nil
}
