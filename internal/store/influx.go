package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/sweeney/smarthome-node/internal/log"
	"github.com/sweeney/smarthome-node/internal/logic"
)

const (
	measurementReadings = "readings"
	measurementEvents   = "events"
	measurementCommands = "commands"
)

// InfluxOptions locates the InfluxDB bucket.
type InfluxOptions struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// Enabled reports whether enough is configured to write.
func (o InfluxOptions) Enabled() bool {
	return o.URL != "" && o.Bucket != ""
}

// InfluxRecorder writes points through the non-blocking write API, which
// batches in the background. Write errors are logged.
type InfluxRecorder struct {
	client influxdb2.Client
	writer api.WriteAPI
	node   string
	log    log.Logger
	done   chan struct{}
}

// NewInfluxRecorder connects to InfluxDB. An unhealthy server is logged but
// not fatal; the client retries writes on its own.
func NewInfluxRecorder(ctx context.Context, opts InfluxOptions, node string, logger log.Logger) (*InfluxRecorder, error) {
	if !opts.Enabled() {
		return nil, fmt.Errorf("influx: url and bucket are required")
	}
	logger = logger.WithName("store")

	client := influxdb2.NewClientWithOptions(opts.URL, opts.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(50).
			SetFlushInterval(5000).
			SetPrecision(time.Millisecond))

	health, err := client.Health(ctx)
	switch {
	case err != nil:
		logger.Warn("influxdb health check failed", "url", opts.URL, "error", err.Error())
	case health.Status != "pass":
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		logger.Warn("influxdb not healthy", "url", opts.URL, "status", health.Status, "message", msg)
	default:
		logger.Info("connected to influxdb", "url", opts.URL, "bucket", opts.Bucket)
	}

	r := &InfluxRecorder{
		client: client,
		writer: client.WriteAPI(opts.Org, opts.Bucket),
		node:   node,
		log:    logger,
		done:   make(chan struct{}),
	}
	go r.drainErrors(r.writer.Errors())
	return r, nil
}

func (r *InfluxRecorder) drainErrors(errs <-chan error) {
	defer close(r.done)
	for err := range errs {
		r.log.Error(err, "influxdb write failed")
	}
}

// RecordReading writes a sensor reading.
func (r *InfluxRecorder) RecordReading(reading logic.Reading, relayOn bool) {
	r.writer.WritePoint(readingPoint(r.node, reading, relayOn))
}

// RecordEvent writes an event with a fresh id.
func (r *InfluxRecorder) RecordEvent(ev Event) {
	r.writer.WritePoint(eventPoint(r.node, uuid.NewString(), ev))
}

// RecordCommand writes a command outcome.
func (r *InfluxRecorder) RecordCommand(c CommandRecord) {
	r.writer.WritePoint(commandPoint(r.node, c))
}

// Close flushes pending points and closes the client.
func (r *InfluxRecorder) Close() error {
	r.writer.Flush()
	r.client.Close()
	<-r.done
	return nil
}

func readingPoint(node string, reading logic.Reading, relayOn bool) *write.Point {
	fields := map[string]any{
		"motion": reading.Motion,
		"relay":  relayOn,
	}
	if reading.Temperature != nil {
		fields["temperature"] = *reading.Temperature
	}
	if reading.Humidity != nil {
		fields["humidity"] = *reading.Humidity
	}
	return influxdb2.NewPoint(measurementReadings,
		map[string]string{"node": node},
		fields,
		timestamp(reading.CapturedAt))
}

func eventPoint(node, id string, ev Event) *write.Point {
	fields := map[string]any{
		"id":     id,
		"detail": ev.Detail,
	}
	if ev.Temperature != nil {
		fields["temperature"] = *ev.Temperature
	}
	if ev.Humidity != nil {
		fields["humidity"] = *ev.Humidity
	}
	return influxdb2.NewPoint(measurementEvents,
		map[string]string{"node": node, "kind": string(ev.Kind)},
		fields,
		timestamp(ev.At))
}

func commandPoint(node string, c CommandRecord) *write.Point {
	fields := map[string]any{
		"action":   c.Action,
		"payload":  c.Payload,
		"executed": c.Executed,
	}
	if c.Error != "" {
		fields["error"] = c.Error
	}
	return influxdb2.NewPoint(measurementCommands,
		map[string]string{"node": node, "device": c.Device},
		fields,
		timestamp(c.At))
}

func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
