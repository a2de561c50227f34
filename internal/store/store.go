// Package store persists readings, events and commands. Persistence is best
// effort: recorders never block the control loop and never fail it.
package store

import (
	"time"

	"github.com/sweeney/smarthome-node/internal/logic"
)

// EventKind classifies a recorded event.
type EventKind string

const (
	EventMotionAlert   EventKind = "motion_alert"
	EventClimateOn     EventKind = "climate_on"
	EventClimateOff    EventKind = "climate_off"
	EventSensorFault   EventKind = "sensor_fault"
	EventHardwareFault EventKind = "hardware_fault"
	EventConnectivity  EventKind = "connectivity"
)

// Event is a notable occurrence on the node.
type Event struct {
	Kind        EventKind
	Detail      string
	Temperature *float64
	Humidity    *float64
	At          time.Time
}

// CommandRecord is one remote command and its outcome.
type CommandRecord struct {
	Device   string
	Action   string
	Payload  string
	Executed bool
	Error    string
	At       time.Time
}

// Recorder persists node history.
type Recorder interface {
	RecordReading(r logic.Reading, relayOn bool)
	RecordEvent(ev Event)
	RecordCommand(c CommandRecord)
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordReading(logic.Reading, bool) {}
func (Nop) RecordEvent(Event)                 {}
func (Nop) RecordCommand(CommandRecord)       {}
func (Nop) Close() error                      { return nil }
