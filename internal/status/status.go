// Package status provides a thread-safe status tracker for the node.
// The control loop writes it; HTTP handlers and status publications read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/smarthome-node/internal/actuator"
	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/logic"
	"github.com/sweeney/smarthome-node/internal/network"
)

// Config contains node configuration for display.
type Config struct {
	ReadIntervalMs  int64
	AlertCooldownMs int64
	TelemetryEvery  int
	TempHigh        float64
	TempLow         float64
	Broker          string
	HTTPAddr        string
	Topics          map[string]string
}

// Counts are running totals since start.
type Counts struct {
	Cycles         int
	Telemetry      int
	Alerts         int
	Commands       int
	CommandErrors  int
	SensorFaults   int
	HardwareFaults int
}

// Cycle is what the control loop reports after each tick.
type Cycle struct {
	Reading    logic.Reading
	HasReading bool
	Actuators  actuator.Snapshot
	Mode       logic.ClimateMode
	Counts     Counts
	LastAlert  time.Time
	LastError  string
}

// Snapshot is a point-in-time view of node state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Cycle
	Connectivity connectivity.State
	StartTime    time.Time
	Now          time.Time
	Network      *network.Info
	Config       Config
}

// Uptime returns the duration since the node started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// State summarizes the node as STARTING, READY or FAULT.
func (s Snapshot) State() string {
	switch {
	case s.LastError != "":
		return "FAULT"
	case !s.HasReading:
		return "STARTING"
	default:
		return "READY"
	}
}

// Tracker holds mutable node state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:    startTime,
			Config:       cfg,
			Connectivity: connectivity.Disconnected,
		},
		now: time.Now,
	}
}

// Update records the outcome of a control cycle.
func (t *Tracker) Update(c Cycle) {
	t.mu.Lock()
	t.snap.Cycle = c
	t.mu.Unlock()
}

// SetConnectivity records the connectivity state.
func (t *Tracker) SetConnectivity(s connectivity.State) {
	t.mu.Lock()
	t.snap.Connectivity = s
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *network.Info) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the node state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
