// Package mqtt provides the broker session and the wire payloads the node
// exchanges over it.
package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/smarthome-node/internal/logic"
)

// Topics names the four topics the node uses.
type Topics struct {
	Telemetry string `mapstructure:"telemetry"`
	Control   string `mapstructure:"control"`
	Alerts    string `mapstructure:"alerts"`
	Status    string `mapstructure:"status"`
}

// DefaultTopics are the topics the deployed dashboards listen on.
var DefaultTopics = Topics{
	Telemetry: "smarthome/sensores",
	Control:   "smarthome/control",
	Alerts:    "smarthome/alertas",
	Status:    "smarthome/estado",
}

// TelemetryPayload is the periodic sensor report.
type TelemetryPayload struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Motion      bool     `json:"motion"`
	Relay       bool     `json:"relay"`
	Timestamp   float64  `json:"timestamp"`
}

// AlertPayload is published when the motion debouncer fires.
type AlertPayload struct {
	Type        string   `json:"type"`
	Timestamp   float64  `json:"timestamp"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// FormatTelemetry creates the telemetry payload for a reading. at is the
// publication time.
func FormatTelemetry(r logic.Reading, relayOn bool, at time.Time) ([]byte, error) {
	return json.Marshal(TelemetryPayload{
		Temperature: round2(r.Temperature),
		Humidity:    round2(r.Humidity),
		Motion:      r.Motion,
		Relay:       relayOn,
		Timestamp:   unixSeconds(at),
	})
}

// FormatAlert creates the alert payload for a fired event.
func FormatAlert(ev logic.AlertEvent) ([]byte, error) {
	return json.Marshal(AlertPayload{
		Type:        ev.Kind,
		Timestamp:   unixSeconds(ev.FiredAt),
		Temperature: round2(ev.Temperature),
		Humidity:    round2(ev.Humidity),
	})
}

// WillPayload is what the broker publishes on the status topic when the
// session dies uncleanly.
type WillPayload struct {
	Status WillInner `json:"status"`
}

// WillInner contains the will details.
type WillInner struct {
	Event  string `json:"event"`
	Reason string `json:"reason,omitempty"`
}

// FormatWill creates the last-will payload.
func FormatWill() []byte {
	data, _ := json.Marshal(WillPayload{Status: WillInner{Event: "OFFLINE", Reason: "CONNECTION_LOST"}})
	return data
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
