package sensor

import (
	"errors"

	"github.com/sweeney/smarthome-node/internal/logic"
)

// FakeSource is a test double that returns scripted readings.
type FakeSource struct {
	// Readings are returned by successive Read calls.
	// Once exhausted, the last reading repeats.
	Readings []logic.Reading

	// Errors, if non-nil at the current index, are returned instead of the
	// reading at that index.
	Errors []error

	index int

	// Calls counts Read invocations.
	Calls int
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings ...logic.Reading) *FakeSource {
	return &FakeSource{Readings: readings}
}

// Read returns the next scripted reading.
func (f *FakeSource) Read() (logic.Reading, error) {
	f.Calls++
	if len(f.Readings) == 0 {
		return logic.Reading{}, errors.New("no readings configured")
	}

	i := f.index
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	if i < len(f.Errors) && f.Errors[i] != nil {
		return logic.Reading{}, f.Errors[i]
	}
	return f.Readings[i], nil
}

// FakeClimate returns a fixed climate reading or error.
type FakeClimate struct {
	Temperature float64
	Humidity    float64
	Err         error
}

// ReadClimate returns the configured values.
func (f *FakeClimate) ReadClimate() (float64, float64, error) {
	if f.Err != nil {
		return 0, 0, f.Err
	}
	return f.Temperature, f.Humidity, nil
}
