package logic

import "errors"

// fakeRelay records relay writes and can be told to fail.
type fakeRelay struct {
	on     bool
	writes []bool
	err    error
}

func (f *fakeRelay) RelayOn() bool { return f.on }

func (f *fakeRelay) SetRelay(on bool) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, on)
	f.on = on
	return nil
}

// fakeSignaler counts alert patterns.
type fakeSignaler struct {
	calls int
	err   error
}

func (f *fakeSignaler) SignalAlert() error {
	f.calls++
	return f.err
}

var errPin = errors.New("pin write failed")
