package store

import (
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sweeney/smarthome-node/internal/logic"
)

var (
	_ Recorder = (*InfluxRecorder)(nil)
	_ Recorder = (*FakeRecorder)(nil)
	_ Recorder = Nop{}
)

func fields(p *write.Point) map[string]any {
	out := make(map[string]any)
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := make(map[string]string)
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestReadingPoint(t *testing.T) {
	at := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)
	r := logic.Reading{Temperature: logic.Float(27.5), Humidity: logic.Float(40), Motion: true, CapturedAt: at}

	p := readingPoint("node-1", r, true)

	if p.Name() != "readings" {
		t.Errorf("measurement: got %s", p.Name())
	}
	if tags(p)["node"] != "node-1" {
		t.Errorf("tags: got %v", tags(p))
	}
	f := fields(p)
	if f["temperature"] != 27.5 || f["humidity"] != 40.0 || f["motion"] != true || f["relay"] != true {
		t.Errorf("fields: got %v", f)
	}
	if !p.Time().Equal(at) {
		t.Errorf("time: got %v", p.Time())
	}
}

func TestReadingPointAbsentClimate(t *testing.T) {
	p := readingPoint("node-1", logic.Reading{CapturedAt: time.Unix(1, 0)}, false)

	f := fields(p)
	if _, ok := f["temperature"]; ok {
		t.Error("absent temperature must not be written")
	}
	if _, ok := f["humidity"]; ok {
		t.Error("absent humidity must not be written")
	}
	if len(f) != 2 {
		t.Errorf("fields: got %v", f)
	}
}

func TestEventPoint(t *testing.T) {
	ev := Event{Kind: EventMotionAlert, Detail: "motion", Temperature: logic.Float(22), At: time.Unix(100, 0)}

	p := eventPoint("node-1", "abc", ev)

	if p.Name() != "events" {
		t.Errorf("measurement: got %s", p.Name())
	}
	tg := tags(p)
	if tg["kind"] != "motion_alert" || tg["node"] != "node-1" {
		t.Errorf("tags: got %v", tg)
	}
	f := fields(p)
	if f["id"] != "abc" || f["detail"] != "motion" || f["temperature"] != 22.0 {
		t.Errorf("fields: got %v", f)
	}
}

func TestCommandPoint(t *testing.T) {
	c := CommandRecord{Device: "relay", Action: "on", Payload: `{"dispositivo":"relay"}`, Executed: false, Error: "boom", At: time.Unix(100, 0)}

	p := commandPoint("node-1", c)

	if p.Name() != "commands" {
		t.Errorf("measurement: got %s", p.Name())
	}
	if tags(p)["device"] != "relay" {
		t.Errorf("tags: got %v", tags(p))
	}
	f := fields(p)
	if f["executed"] != false || f["error"] != "boom" || f["action"] != "on" {
		t.Errorf("fields: got %v", f)
	}

	line := write.PointToLineProtocol(p, time.Second)
	if !strings.HasPrefix(line, "commands,device=relay,node=node-1 ") {
		t.Errorf("line protocol: got %s", line)
	}
}

func TestTimestampDefaultsToNow(t *testing.T) {
	before := time.Now()
	got := timestamp(time.Time{})
	if got.Before(before) {
		t.Errorf("zero time should become now, got %v", got)
	}
}

func TestInfluxOptionsEnabled(t *testing.T) {
	if (InfluxOptions{}).Enabled() {
		t.Error("empty options should be disabled")
	}
	if !(InfluxOptions{URL: "http://localhost:8086", Bucket: "home"}).Enabled() {
		t.Error("url+bucket should be enabled")
	}
}

func TestFakeRecorder(t *testing.T) {
	f := NewFakeRecorder()
	f.RecordReading(logic.Reading{Motion: true}, true)
	f.RecordEvent(Event{Kind: EventClimateOn})
	f.RecordEvent(Event{Kind: EventMotionAlert})
	f.RecordCommand(CommandRecord{Device: "relay", Executed: true})
	_ = f.Close()

	if len(f.Readings) != 1 || !f.Readings[0].RelayOn {
		t.Errorf("readings: %+v", f.Readings)
	}
	if len(f.EventsOf(EventMotionAlert)) != 1 {
		t.Errorf("events: %+v", f.Events)
	}
	if len(f.Commands) != 1 || !f.Closed {
		t.Error("commands/close not recorded")
	}
}
