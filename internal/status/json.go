package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	State         string       `json:"state"`
	LastError     string       `json:"last_error,omitempty"`
	Relay         bool         `json:"relay"`
	Color         [3]uint8     `json:"color"`
	Alarm         bool         `json:"alarm"`
	Mode          string       `json:"mode"`
	Connectivity  string       `json:"connectivity"`
	Climate       ClimateJSON  `json:"climate"`
	LastAlert     string       `json:"last_alert,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        *ConfigJSON  `json:"config,omitempty"`
}

// ClimateJSON is the last cached reading.
type ClimateJSON struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Motion      bool     `json:"motion"`
	CapturedAt  string   `json:"captured_at,omitempty"`
}

// MQTTStatus reports session state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of running totals.
type CountsJSON struct {
	Cycles         int `json:"cycles"`
	Telemetry      int `json:"telemetry"`
	Alerts         int `json:"alerts"`
	Commands       int `json:"commands"`
	CommandErrors  int `json:"command_errors"`
	SensorFaults   int `json:"sensor_faults"`
	HardwareFaults int `json:"hardware_faults"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of node config.
type ConfigJSON struct {
	ReadIntervalMs  int64             `json:"read_interval_ms"`
	AlertCooldownMs int64             `json:"alert_cooldown_ms"`
	TelemetryEvery  int               `json:"telemetry_every"`
	TempHigh        float64           `json:"temp_high"`
	TempLow         float64           `json:"temp_low"`
	Broker          string            `json:"broker"`
	HTTPAddr        string            `json:"http_addr"`
	Topics          map[string]string `json:"topics,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}
	c := snap.Actuators.Color

	inner := StatusInner{
		State:         snap.State(),
		LastError:     snap.LastError,
		Relay:         snap.Actuators.RelayOn,
		Color:         [3]uint8{c.R, c.G, c.B},
		Alarm:         snap.Actuators.AlarmActive,
		Mode:          mode,
		Connectivity:  string(snap.Connectivity),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.Connectivity.Level() == 2, Broker: snap.Config.Broker},
		Climate: ClimateJSON{
			Temperature: round2(snap.Reading.Temperature),
			Humidity:    round2(snap.Reading.Humidity),
			Motion:      snap.Reading.Motion,
		},
		Counts: CountsJSON{
			Cycles:         snap.Counts.Cycles,
			Telemetry:      snap.Counts.Telemetry,
			Alerts:         snap.Counts.Alerts,
			Commands:       snap.Counts.Commands,
			CommandErrors:  snap.Counts.CommandErrors,
			SensorFaults:   snap.Counts.SensorFaults,
			HardwareFaults: snap.Counts.HardwareFaults,
		},
	}
	if !snap.Reading.CapturedAt.IsZero() {
		inner.Climate.CapturedAt = snap.Reading.CapturedAt.UTC().Format(time.RFC3339)
	}
	if !snap.LastAlert.IsZero() {
		inner.LastAlert = snap.LastAlert.UTC().Format(time.RFC3339)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

func buildConfig(snap Snapshot) *ConfigJSON {
	return &ConfigJSON{
		ReadIntervalMs:  snap.Config.ReadIntervalMs,
		AlertCooldownMs: snap.Config.AlertCooldownMs,
		TelemetryEvery:  snap.Config.TelemetryEvery,
		TempHigh:        snap.Config.TempHigh,
		TempLow:         snap.Config.TempLow,
		Broker:          snap.Config.Broker,
		HTTPAddr:        snap.Config.HTTPAddr,
		Topics:          snap.Config.Topics,
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	inner.Config = buildConfig(snap)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for a status-topic publication.
// Config is only included at STARTUP.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	if event == "STARTUP" {
		inner.Config = buildConfig(snap)
	}

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}
