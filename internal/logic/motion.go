package logic

import "time"

// MotionDebouncer rate-limits motion alerts: while motion stays detected, at
// most one alert fires per cooldown window.
type MotionDebouncer struct {
	cooldown  time.Duration
	signal    AlertSignaler
	lastFired time.Time
	fired     bool
}

// NewMotionDebouncer creates a debouncer. signal may be nil when no local
// alert pattern should be played.
func NewMotionDebouncer(cooldown time.Duration, signal AlertSignaler) *MotionDebouncer {
	return &MotionDebouncer{cooldown: cooldown, signal: signal}
}

// Observe processes one reading taken at now. It returns the fired event, or
// nil when no alert is due. If the local alert pattern fails, the event is
// still returned together with the error; the cooldown starts either way.
func (d *MotionDebouncer) Observe(r Reading, now time.Time) (*AlertEvent, error) {
	if !r.Motion {
		return nil, nil
	}
	if d.fired && now.Sub(d.lastFired) < d.cooldown {
		return nil, nil
	}

	d.lastFired = now
	d.fired = true

	event := &AlertEvent{
		Kind:        AlertKindMotion,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		FiredAt:     now,
	}

	if d.signal != nil {
		if err := d.signal.SignalAlert(); err != nil {
			return event, err
		}
	}
	return event, nil
}

// LastFired returns the time of the last alert and whether one ever fired.
func (d *MotionDebouncer) LastFired() (time.Time, bool) {
	return d.lastFired, d.fired
}
