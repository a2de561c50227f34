package logic

// SensorCache holds the most recent reading. The zero value is ready to use
// and reports absent temperature/humidity and no motion.
type SensorCache struct {
	latest Reading
	has    bool
}

// Update replaces the cached reading unconditionally, including readings
// with absent temperature or humidity.
func (c *SensorCache) Update(r Reading) {
	c.latest = r
	c.has = true
}

// Latest returns the cached reading.
func (c *SensorCache) Latest() Reading {
	return c.latest
}

// HasReading reports whether Update has been called at least once.
func (c *SensorCache) HasReading() bool {
	return c.has
}
