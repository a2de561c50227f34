package store

import "github.com/sweeney/smarthome-node/internal/logic"

// RecordedReading is one RecordReading call.
type RecordedReading struct {
	Reading logic.Reading
	RelayOn bool
}

// FakeRecorder keeps everything in memory for test assertions.
type FakeRecorder struct {
	Readings []RecordedReading
	Events   []Event
	Commands []CommandRecord
	Closed   bool
}

// NewFakeRecorder creates an empty FakeRecorder.
func NewFakeRecorder() *FakeRecorder {
	return &FakeRecorder{}
}

func (f *FakeRecorder) RecordReading(r logic.Reading, relayOn bool) {
	f.Readings = append(f.Readings, RecordedReading{Reading: r, RelayOn: relayOn})
}

func (f *FakeRecorder) RecordEvent(ev Event) {
	f.Events = append(f.Events, ev)
}

func (f *FakeRecorder) RecordCommand(c CommandRecord) {
	f.Commands = append(f.Commands, c)
}

func (f *FakeRecorder) Close() error {
	f.Closed = true
	return nil
}

// EventsOf returns the recorded events of kind k.
func (f *FakeRecorder) EventsOf(k EventKind) []Event {
	var out []Event
	for _, ev := range f.Events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}
