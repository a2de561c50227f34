// Package sensor provides the node's sensor source: temperature and humidity
// from a DHT22 and motion from a PIR input.
package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/smarthome-node/internal/gpio"
	"github.com/sweeney/smarthome-node/internal/log"
	"github.com/sweeney/smarthome-node/internal/logic"
)

// ErrSensorFault is returned when no reading could be produced at all.
var ErrSensorFault = errors.New("sensor fault")

// Source yields one reading per call.
type Source interface {
	Read() (logic.Reading, error)
}

// Climate reads temperature (°C) and relative humidity (%).
type Climate interface {
	ReadClimate() (temperature, humidity float64, err error)
}

// Composite combines a climate sensor and the PIR input into a Source.
// A failed climate read yields a reading with absent temperature and
// humidity; only a failed motion read fails the whole reading.
type Composite struct {
	climate Climate
	motion  gpio.MotionReader
	now     func() time.Time
	log     log.Logger
}

// NewComposite creates a Composite source.
func NewComposite(climate Climate, motion gpio.MotionReader, logger log.Logger) *Composite {
	return &Composite{
		climate: climate,
		motion:  motion,
		now:     time.Now,
		log:     logger,
	}
}

// Read samples both sensors.
func (c *Composite) Read() (logic.Reading, error) {
	r := logic.Reading{CapturedAt: c.now()}

	temp, hum, err := c.climate.ReadClimate()
	if err != nil {
		c.log.Warn("climate read failed", "error", err.Error())
	} else {
		r.Temperature = logic.Float(temp)
		r.Humidity = logic.Float(hum)
	}

	motion, err := c.motion.Motion()
	if err != nil {
		return logic.Reading{}, fmt.Errorf("%w: %v", ErrSensorFault, err)
	}
	r.Motion = motion
	return r, nil
}
