package network

import (
	"context"

	"github.com/sweeney/smarthome-node/internal/connectivity"
)

// FakeLink is a test double for connectivity.Link.
type FakeLink struct {
	// IsUp is returned by Up.
	IsUp bool

	// ConnectError and UpError, if set, are returned by Connect and Up.
	ConnectError error
	UpError      error

	// Connects records the credentials passed to Connect.
	Connects []connectivity.Credentials

	// Closed counts Close calls.
	Closed int
}

// NewFakeLink creates a FakeLink that reports up.
func NewFakeLink() *FakeLink {
	return &FakeLink{IsUp: true}
}

// Connect records the call.
func (f *FakeLink) Connect(_ context.Context, creds connectivity.Credentials) error {
	f.Connects = append(f.Connects, creds)
	return f.ConnectError
}

// Up returns IsUp.
func (f *FakeLink) Up() (bool, error) {
	if f.UpError != nil {
		return false, f.UpError
	}
	return f.IsUp, nil
}

// Close counts the call.
func (f *FakeLink) Close() error {
	f.Closed++
	return nil
}
