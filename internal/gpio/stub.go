//go:build !linux

package gpio

import "errors"

// RealBoard is not available on non-Linux platforms.
type RealBoard struct{}

// NewRealBoard returns an error on non-Linux platforms.
func NewRealBoard(chipName string, pins Pins) (*RealBoard, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Write is not implemented on non-Linux platforms.
func (b *RealBoard) Write(out Output, on bool) error {
	return errors.New("gpio: not supported")
}

// Motion is not implemented on non-Linux platforms.
func (b *RealBoard) Motion() (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *RealBoard) Close() error {
	return nil
}
