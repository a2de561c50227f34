package gpio

import "errors"

// PinWrite records one call to Write.
type PinWrite struct {
	Output Output
	On     bool
}

// FakeBoard is a test double for Board. It records writes and returns
// scripted motion samples.
type FakeBoard struct {
	// Values holds the current level of every written output.
	Values map[Output]bool

	// Writes records successful writes in order.
	Writes []PinWrite

	// WriteErrors makes Write fail for the given outputs.
	WriteErrors map[Output]error

	// MotionSamples are returned by successive Motion calls.
	// Once exhausted, the last sample repeats.
	MotionSamples []bool

	// MotionError, if set, will be returned by Motion.
	MotionError error

	index int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBoard creates a FakeBoard with the given motion samples.
func NewFakeBoard(motion ...bool) *FakeBoard {
	return &FakeBoard{
		Values:        make(map[Output]bool),
		WriteErrors:   make(map[Output]error),
		MotionSamples: motion,
	}
}

// Write records the level unless an error is scripted for out.
func (f *FakeBoard) Write(out Output, on bool) error {
	if err := f.WriteErrors[out]; err != nil {
		return err
	}
	f.Values[out] = on
	f.Writes = append(f.Writes, PinWrite{Output: out, On: on})
	return nil
}

// Motion returns the next scripted sample.
func (f *FakeBoard) Motion() (bool, error) {
	if f.MotionError != nil {
		return false, f.MotionError
	}
	if len(f.MotionSamples) == 0 {
		return false, errors.New("no motion samples configured")
	}

	sample := f.MotionSamples[f.index]
	if f.index < len(f.MotionSamples)-1 {
		f.index++
	}
	return sample, nil
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.Closed = true
	return nil
}

// WritesTo returns the recorded levels written to out, in order.
func (f *FakeBoard) WritesTo(out Output) []bool {
	var levels []bool
	for _, w := range f.Writes {
		if w.Output == out {
			levels = append(levels, w.On)
		}
	}
	return levels
}

// Reset clears recorded writes and rewinds motion samples.
func (f *FakeBoard) Reset() {
	f.Values = make(map[Output]bool)
	f.Writes = nil
	f.index = 0
	f.Closed = false
}
