// Package gpio provides pin-level access to the node's board with hardware
// abstraction. The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "fmt"

// Output identifies a driven pin.
type Output int

const (
	Relay Output = iota
	LEDRed
	LEDGreen
	LEDBlue
	Buzzer
)

func (o Output) String() string {
	switch o {
	case Relay:
		return "relay"
	case LEDRed:
		return "led-red"
	case LEDGreen:
		return "led-green"
	case LEDBlue:
		return "led-blue"
	case Buzzer:
		return "buzzer"
	}
	return fmt.Sprintf("output(%d)", int(o))
}

// Writer drives output pins. on=true drives the line active.
type Writer interface {
	Write(out Output, on bool) error
}

// MotionReader reads the PIR motion input.
type MotionReader interface {
	// Motion returns true while the PIR output is high.
	Motion() (bool, error)
}

// Board is a full board: outputs, motion input and resource release.
type Board interface {
	Writer
	MotionReader
	Close() error
}

// Pins maps board functions to BCM line offsets.
type Pins struct {
	Relay    int `mapstructure:"relay"`
	LEDRed   int `mapstructure:"led-red"`
	LEDGreen int `mapstructure:"led-green"`
	LEDBlue  int `mapstructure:"led-blue"`
	Buzzer   int `mapstructure:"buzzer"`
	PIR      int `mapstructure:"pir"`
}

// DefaultPins is the wiring of the reference build.
var DefaultPins = Pins{
	Relay:    12,
	LEDRed:   16,
	LEDGreen: 17,
	LEDBlue:  18,
	Buzzer:   13,
	PIR:      14,
}

// DefaultChip is the GPIO character device used on Raspberry Pi boards.
const DefaultChip = "gpiochip0"
