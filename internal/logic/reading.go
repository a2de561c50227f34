// Package logic contains the pure control policies of the node: the sensor
// cache, hysteresis climate control and motion alert debouncing.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters; hardware is reached only
// through the small interfaces declared here.
package logic

import "time"

// Reading is a single sample from the sensor source.
// A nil Temperature or Humidity means the physical read failed; Motion is
// still valid in that case.
type Reading struct {
	Temperature *float64
	Humidity    *float64
	Motion      bool
	CapturedAt  time.Time
}

// HasClimate reports whether the reading carries a temperature.
func (r Reading) HasClimate() bool {
	return r.Temperature != nil
}

// Float returns a pointer to v, for building readings.
func Float(v float64) *float64 {
	return &v
}

// AlertKindMotion is the only alert kind produced by the node.
const AlertKindMotion = "motion"

// AlertEvent is produced by MotionDebouncer when an alert fires.
// It is handed off for publication and never retried.
type AlertEvent struct {
	Kind        string
	Temperature *float64
	Humidity    *float64
	FiredAt     time.Time
}

// RelaySwitch is the part of the actuator state the climate controller drives.
type RelaySwitch interface {
	RelayOn() bool
	SetRelay(on bool) error
}

// AlertSignaler plays the local alert pattern (buzzer and indicator).
type AlertSignaler interface {
	SignalAlert() error
}
