package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/smarthome-node/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"reading": func(v *float64, unit string) string {
		if v == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.1f%s", *v, unit)
	},
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Smart Home Node</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.fault { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.swatch { display: inline-block; width: 10px; height: 10px; border: 1px solid #444; vertical-align: middle; }
</style>
</head>
<body>
<h1>Smart Home Node <span class="{{if eq .State "FAULT"}}fault{{end}}">{{.State}}</span></h1>

<h2>Climate</h2>
<table>
<tr><th>Temperature</th><td id="temperature">{{reading .Reading.Temperature " °C"}}</td></tr>
<tr><th>Humidity</th><td id="humidity">{{reading .Reading.Humidity " %"}}</td></tr>
<tr><th>Motion</th><td>{{if .Reading.Motion}}detected{{else}}none{{end}}</td></tr>
<tr><th>Mode</th><td>{{.Mode}}</td></tr>
<tr><th>Thresholds</th><td>off below {{.Config.TempLow}} °C, on above {{.Config.TempHigh}} °C</td></tr>
</table>

<h2>Actuators</h2>
<table>
<tr><th>Relay</th><td id="relay" class="{{if .Actuators.RelayOn}}on{{else}}off{{end}}">{{onOff .Actuators.RelayOn}}</td></tr>
<tr><th>Indicator</th><td><span class="swatch" style="background: rgb({{.Red}},{{.Green}},{{.Blue}})"></span> {{.Actuators.Color}}</td></tr>
<tr><th>Alarm</th><td>{{onOff .Actuators.AlarmActive}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>State</th><td class="{{if eq (printf "%s" .Connectivity) "session_up"}}connected{{else}}disconnected{{end}}">{{.Connectivity}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Telemetry</th><td>{{.Counts.Telemetry}}</td></tr>
<tr><th>Alerts</th><td>{{.Counts.Alerts}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}} ({{.Counts.CommandErrors}} failed)</td></tr>
<tr><th>Faults</th><td>{{.Counts.SensorFaults}} sensor, {{.Counts.HardwareFaults}} hardware</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="fault">{{.LastError}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Read interval</th><td>{{.Config.ReadIntervalMs}}ms</td></tr>
<tr><th>Telemetry every</th><td>{{.Config.TelemetryEvery}} cycles</td></tr>
<tr><th>Alert cooldown</th><td>{{.Config.AlertCooldownMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and State() methods but the template reads
	// fields more comfortably.
	c := snap.Actuators.Color
	data := struct {
		status.Snapshot
		Uptime           time.Duration
		State            string
		Red, Green, Blue int
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		State:    snap.State(),
		Red:      int(c.R) * 255,
		Green:    int(c.G) * 255,
		Blue:     int(c.B) * 255,
	}
	indexTmpl.Execute(w, data)
}
