// Package automation runs the control cycle: sensor read, climate control,
// motion alerts, telemetry and inbound command dispatch, once per tick.
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/smarthome-node/internal/actuator"
	"github.com/sweeney/smarthome-node/internal/command"
	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/log"
	"github.com/sweeney/smarthome-node/internal/logic"
	"github.com/sweeney/smarthome-node/internal/metrics"
	"github.com/sweeney/smarthome-node/internal/mqtt"
	"github.com/sweeney/smarthome-node/internal/sensor"
	"github.com/sweeney/smarthome-node/internal/status"
	"github.com/sweeney/smarthome-node/internal/store"
)

// Status events published retained on the status topic.
const (
	EventStartup  = "STARTUP"
	EventShutdown = "SHUTDOWN"
)

// Config holds the cycle parameters.
type Config struct {
	Params         logic.Params
	Topics         mqtt.Topics
	Credentials    connectivity.Credentials
	Session        connectivity.SessionConfig
	LinkTimeout    time.Duration
	FaultBackoff   time.Duration
	ReconnectEvery int // retry connectivity every N ticks; 0 disables
	AlarmBeep      time.Duration
}

// Deps are the collaborators the cycle drives. Recorder, Metrics and Tracker
// are optional.
type Deps struct {
	Source    sensor.Source
	Actuators *actuator.State
	Conn      *connectivity.Manager
	Recorder  store.Recorder
	Metrics   *metrics.Metrics
	Tracker   *status.Tracker
	Logger    log.Logger
	Now       func() time.Time
}

// Cycle is the automation orchestrator. It is not safe for concurrent use;
// Tick and Run must be called from one goroutine.
type Cycle struct {
	cfg Config

	source   sensor.Source
	act      *actuator.State
	conn     *connectivity.Manager
	router   *command.Router
	recorder store.Recorder
	metrics  *metrics.Metrics
	tracker  *status.Tracker
	log      log.Logger
	now      func() time.Time

	cache    logic.SensorCache
	climate  *logic.ClimateController
	debounce *logic.MotionDebouncer

	counter   int
	counts    status.Counts
	lastError string
}

// New builds a Cycle. It fails with logic.ErrInvalidParams on inconsistent
// parameters.
func New(cfg Config, d Deps) (*Cycle, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if d.Source == nil || d.Actuators == nil || d.Conn == nil {
		return nil, errors.New("automation: source, actuators and connectivity are required")
	}
	if d.Logger == nil {
		d.Logger = log.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Recorder == nil {
		d.Recorder = store.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Tracker == nil {
		d.Tracker = status.NewTracker(d.Now(), status.Config{})
	}
	if cfg.AlarmBeep <= 0 {
		cfg.AlarmBeep = actuator.DefaultAlarm
	}

	climate, err := logic.NewClimateController(cfg.Params.TempLow, cfg.Params.TempHigh, d.Actuators)
	if err != nil {
		return nil, err
	}

	logger := d.Logger.WithName("automation")
	c := &Cycle{
		cfg:      cfg,
		source:   d.Source,
		act:      d.Actuators,
		conn:     d.Conn,
		router:   command.NewRouter(d.Actuators, cfg.AlarmBeep, d.Logger),
		recorder: d.Recorder,
		metrics:  d.Metrics,
		tracker:  d.Tracker,
		log:      logger,
		now:      d.Now,
		climate:  climate,
		debounce: logic.NewMotionDebouncer(cfg.Params.AlertCooldown, d.Actuators),
	}
	d.Conn.OnMessage(c.handleMessage)
	return c, nil
}

// Counter returns the number of ticks run so far.
func (c *Cycle) Counter() int {
	return c.counter
}

// Latest returns the cached reading.
func (c *Cycle) Latest() logic.Reading {
	return c.cache.Latest()
}

// Start runs the startup sequence: init color, link and session, retained
// STARTUP status, then the ready color and a confirm beep. Connectivity
// failures are logged and the node keeps running offline.
func (c *Cycle) Start(ctx context.Context) {
	c.indicate(actuator.ColorInit)
	c.update()

	if err := c.connect(ctx); err != nil {
		c.log.Warn("continuing without network", "error", err.Error())
		c.indicate(actuator.ColorWarn)
	}

	c.publishStatus(EventStartup, "")

	if c.conn.State() == connectivity.SessionUp {
		c.indicate(actuator.ColorOK)
	}
	if err := c.act.SignalConfirm(); err != nil {
		c.hardwareFault(err)
	}
	c.log.Info("started",
		"read_interval", c.cfg.Params.ReadInterval,
		"telemetry_every", c.cfg.Params.TelemetryEvery,
		"temp_low", c.cfg.Params.TempLow,
		"temp_high", c.cfg.Params.TempHigh,
		"connectivity", c.conn.State(),
	)
}

// connect advances connectivity as far as it can: link, then session with
// the control topic subscribed. A session that came up with a failed
// subscription still counts as connected; commands are lost until the next
// session.
func (c *Cycle) connect(ctx context.Context) error {
	if c.conn.State() == connectivity.Disconnected {
		if err := c.conn.ConnectLink(ctx, c.cfg.Credentials, c.cfg.LinkTimeout); err != nil {
			return err
		}
	}
	if c.conn.State() == connectivity.LinkUp {
		err := c.conn.ConnectSession(ctx, c.cfg.Session, c.cfg.Topics.Control)
		if errors.Is(err, connectivity.ErrSubscribe) {
			c.log.Warn("subscription incomplete", "error", err.Error())
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Tick runs one control cycle. A sensor fault is handled inside the tick; a
// hardware fault aborts it and is returned.
func (c *Cycle) Tick(ctx context.Context) (err error) {
	n := c.counter
	c.counter++
	c.counts.Cycles++
	c.metrics.Cycles.Inc()

	defer func() {
		if err != nil {
			c.lastError = err.Error()
		} else {
			c.lastError = ""
		}
		c.update()
	}()

	c.conn.Sync()
	if c.cfg.ReconnectEvery > 0 && n > 0 && n%c.cfg.ReconnectEvery == 0 && c.conn.State() != connectivity.SessionUp {
		c.reconnect(ctx)
	}

	reading, readErr := c.source.Read()
	switch {
	case readErr != nil:
		c.sensorFault(readErr)
	case reading.Temperature == nil:
		c.cache.Update(reading)
		c.recorder.RecordReading(reading, c.act.RelayOn())
		c.sensorFault(fmt.Errorf("%w: no climate data", sensor.ErrSensorFault))
	default:
		c.cache.Update(reading)
		c.recorder.RecordReading(reading, c.act.RelayOn())
		c.observeReading(reading)
		if err := c.evaluate(reading); err != nil {
			return err
		}
	}

	if n%c.cfg.Params.TelemetryEvery == 0 {
		c.publishTelemetry()
	}

	if c.conn.State() == connectivity.SessionUp {
		if count := c.conn.DrainInbound(); count > 0 {
			c.log.Debug("inbound drained", "messages", count)
		}
	}
	return nil
}

// evaluate runs the climate controller and the motion debouncer on one
// reading. Both always run; a hardware fault from either is returned.
func (c *Cycle) evaluate(r logic.Reading) error {
	var errs []error

	switched, err := c.climate.Update(r)
	if err != nil {
		errs = append(errs, c.hardwareFault(err))
	} else if switched {
		c.relaySwitched(r)
	}

	event, err := c.debounce.Observe(r, c.now())
	if event != nil {
		c.alert(*event)
	}
	if err != nil {
		errs = append(errs, c.hardwareFault(err))
	}
	return errors.Join(errs...)
}

func (c *Cycle) relaySwitched(r logic.Reading) {
	on := c.act.RelayOn()
	kind, to := store.EventClimateOff, "off"
	if on {
		kind, to = store.EventClimateOn, "on"
	}
	c.log.Info("relay switched", "relay", to, "temperature", *r.Temperature, "mode", c.climate.Mode())
	c.metrics.Transitions.WithLabelValues(to).Inc()
	c.metrics.Relay.Set(metrics.Bool(on))
	c.recorder.RecordEvent(store.Event{
		Kind:        kind,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		At:          c.now(),
	})
}

func (c *Cycle) alert(ev logic.AlertEvent) {
	c.counts.Alerts++
	c.metrics.Alerts.Inc()
	c.log.Info("motion alert", "fired_at", ev.FiredAt)
	c.recorder.RecordEvent(store.Event{
		Kind:        store.EventMotionAlert,
		Temperature: ev.Temperature,
		Humidity:    ev.Humidity,
		At:          ev.FiredAt,
	})

	payload, err := mqtt.FormatAlert(ev)
	if err != nil {
		c.log.Error(err, "format alert")
		return
	}
	c.publish("alert", c.cfg.Topics.Alerts, payload)
}

func (c *Cycle) publishTelemetry() {
	if c.conn.State() != connectivity.SessionUp {
		c.metrics.Dropped.Inc()
		return
	}
	payload, err := mqtt.FormatTelemetry(c.cache.Latest(), c.act.RelayOn(), c.now())
	if err != nil {
		c.log.Error(err, "format telemetry")
		return
	}
	if c.publish("telemetry", c.cfg.Topics.Telemetry, payload) {
		c.counts.Telemetry++
	}
}

// publish sends best effort and reports whether the message went out.
func (c *Cycle) publish(kind, topic string, payload []byte) bool {
	if c.conn.State() != connectivity.SessionUp {
		c.metrics.Dropped.Inc()
		c.log.Debug("publish skipped", "kind", kind, "connectivity", c.conn.State())
		return false
	}
	err := c.conn.Publish(topic, payload)
	c.metrics.Publishes.WithLabelValues(kind, metrics.Result(err)).Inc()
	if err != nil {
		c.log.Error(err, "publish failed", "kind", kind, "topic", topic)
		return false
	}
	return true
}

func (c *Cycle) publishStatus(event, reason string) {
	if c.conn.State() != connectivity.SessionUp {
		return
	}
	c.update()
	payload := status.FormatStatusEvent(c.tracker.Snapshot(), event, reason)
	err := c.conn.PublishRetained(c.cfg.Topics.Status, payload)
	c.metrics.Publishes.WithLabelValues("status", metrics.Result(err)).Inc()
	if err != nil {
		c.log.Error(err, "publish status failed", "event", event)
		return
	}
	c.log.Info("published status", "event", event)
}

// handleMessage routes one inbound message. Only the control topic carries
// commands; anything else is ignored.
func (c *Cycle) handleMessage(msg connectivity.Message) {
	if msg.Topic != c.cfg.Topics.Control {
		c.log.Debug("ignoring message", "topic", msg.Topic)
		return
	}

	res, err := c.router.Apply(msg.Payload)
	c.counts.Commands++
	if err != nil {
		c.counts.CommandErrors++
	}
	if errors.Is(err, actuator.ErrHardwareFault) {
		c.hardwareFault(err)
	}

	device := string(res.Command.Device)
	if device == "" {
		device = string(command.DeviceUnknown)
	}
	c.metrics.Commands.WithLabelValues(device, metrics.Result(err)).Inc()
	c.metrics.Relay.Set(metrics.Bool(c.act.RelayOn()))

	rec := store.CommandRecord{
		Device:   device,
		Action:   string(res.Command.Action),
		Payload:  string(msg.Payload),
		Executed: res.Executed,
		At:       c.now(),
	}
	if err != nil {
		rec.Error = err.Error()
	}
	c.recorder.RecordCommand(rec)
}

// reconnect retries connectivity from whatever state Sync left. The attempt
// is capped at reconnectBudget so a dead broker cannot stall the tick.
func (c *Cycle) reconnect(ctx context.Context) {
	c.log.Info("reconnecting", "connectivity", c.conn.State())
	ctx, cancel := context.WithTimeout(ctx, c.reconnectBudget())
	defer cancel()
	if err := c.connect(ctx); err != nil {
		c.log.Warn("reconnect failed", "error", err.Error())
		return
	}
	c.indicate(actuator.ColorOK)
}

// reconnectBudget is the smaller of the link timeout and the read interval.
func (c *Cycle) reconnectBudget() time.Duration {
	budget := c.cfg.LinkTimeout
	if budget <= 0 || (c.cfg.Params.ReadInterval > 0 && c.cfg.Params.ReadInterval < budget) {
		budget = c.cfg.Params.ReadInterval
	}
	return budget
}

func (c *Cycle) observeReading(r logic.Reading) {
	c.metrics.Temperature.Set(*r.Temperature)
	if r.Humidity != nil {
		c.metrics.Humidity.Set(*r.Humidity)
	}
	c.metrics.LastReadingTS.Set(float64(r.CapturedAt.Unix()))
	c.log.Debug("reading",
		"temperature", *r.Temperature,
		"humidity", r.Humidity,
		"motion", r.Motion,
	)
}

func (c *Cycle) sensorFault(err error) {
	c.counts.SensorFaults++
	c.metrics.Faults.WithLabelValues("sensor").Inc()
	c.log.Warn("sensor fault", "error", err.Error())
	c.recorder.RecordEvent(store.Event{
		Kind:   store.EventSensorFault,
		Detail: err.Error(),
		At:     c.now(),
	})
}

// hardwareFault counts and records err, and returns it.
func (c *Cycle) hardwareFault(err error) error {
	c.counts.HardwareFaults++
	c.metrics.Faults.WithLabelValues("hardware").Inc()
	c.recorder.RecordEvent(store.Event{
		Kind:   store.EventHardwareFault,
		Detail: err.Error(),
		At:     c.now(),
	})
	return err
}

// indicate sets the indicator color. A failure is logged only; the next
// successful write converges the LED.
func (c *Cycle) indicate(color actuator.Color) {
	if err := c.act.SetColor(color); err != nil {
		c.hardwareFault(err)
		c.log.Error(err, "set indicator", "color", color.String())
	}
}

// update pushes the cycle outcome to the status tracker.
func (c *Cycle) update() {
	last, _ := c.debounce.LastFired()
	c.tracker.Update(status.Cycle{
		Reading:    c.cache.Latest(),
		HasReading: c.cache.HasReading(),
		Actuators:  c.act.Snapshot(),
		Mode:       c.climate.Mode(),
		Counts:     c.counts,
		LastAlert:  last,
		LastError:  c.lastError,
	})
}
