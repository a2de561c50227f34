package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultIIODevice is where the kernel dht11 driver (which also handles the
// DHT22) exposes its channels.
const DefaultIIODevice = "/sys/bus/iio/devices/iio:device0"

const (
	iioTemperature = "in_temp_input"
	iioHumidity    = "in_humidityrelative_input"
)

// IIOClimate reads a DHT22 through the Linux IIO sysfs interface. Values are
// reported by the kernel in milli-units.
type IIOClimate struct {
	dir string
}

// NewIIOClimate creates a reader for the IIO device directory dir.
func NewIIOClimate(dir string) *IIOClimate {
	return &IIOClimate{dir: dir}
}

// ReadClimate reads both channels. The driver returns EIO when the sensor
// misses a handshake; that surfaces here as an error.
func (s *IIOClimate) ReadClimate() (float64, float64, error) {
	temp, err := s.readMilli(iioTemperature)
	if err != nil {
		return 0, 0, err
	}
	hum, err := s.readMilli(iioHumidity)
	if err != nil {
		return 0, 0, err
	}
	return temp, hum, nil
}

func (s *IIOClimate) readMilli(name string) (float64, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return float64(v) / 1000, nil
}
