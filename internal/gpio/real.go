//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealBoard drives actual hardware using the Linux GPIO character device.
type RealBoard struct {
	chip    *gpiocdev.Chip
	outputs map[Output]*gpiocdev.Line
	pir     *gpiocdev.Line
}

// NewRealBoard requests all output lines (driven low) and the PIR input.
// On error every line already requested is released.
func NewRealBoard(chipName string, pins Pins) (*RealBoard, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("smarthome-node"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	b := &RealBoard{chip: chip, outputs: make(map[Output]*gpiocdev.Line)}

	offsets := map[Output]int{
		Relay:    pins.Relay,
		LEDRed:   pins.LEDRed,
		LEDGreen: pins.LEDGreen,
		LEDBlue:  pins.LEDBlue,
		Buzzer:   pins.Buzzer,
	}
	for out, offset := range offsets {
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", out, offset, err)
		}
		b.outputs[out] = line
	}

	// PIR modules drive the line actively; pull-down keeps it low when unplugged.
	pir, err := chip.RequestLine(pins.PIR, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("request PIR pin %d: %w", pins.PIR, err)
	}
	b.pir = pir

	return b, nil
}

// Write drives the output line.
func (b *RealBoard) Write(out Output, on bool) error {
	line, ok := b.outputs[out]
	if !ok {
		return fmt.Errorf("write %s: line not requested", out)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}

// Motion reads the PIR input.
func (b *RealBoard) Motion() (bool, error) {
	v, err := b.pir.Value()
	if err != nil {
		return false, fmt.Errorf("read PIR pin: %w", err)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// Outputs are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so relays and the buzzer are not left energised.
func (b *RealBoard) Close() error {
	var errs []error

	for out, line := range b.outputs {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", out, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", out, err))
		}
	}
	if b.pir != nil {
		if err := b.pir.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close PIR pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
