package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/smarthome-node/internal/actuator"
	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/metrics"
	"github.com/sweeney/smarthome-node/internal/status"
	"github.com/sweeney/smarthome-node/internal/store"
)

// Run executes Tick for every value received on tick until ctx is done. A
// failed tick shows the fault color for FaultBackoff before the loop goes on.
// Stop is only observed between ticks. Teardown always runs before Run
// returns: retained SHUTDOWN status, connectivity teardown, then actuator
// safe state.
func (c *Cycle) Run(ctx context.Context, tick <-chan time.Time) error {
	defer c.teardown(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if ctx.Err() != nil {
				return nil
			}
			if err := c.Tick(ctx); err != nil {
				c.log.Error(err, "cycle failed", "cycle", c.counter)
				c.backoff(ctx)
			}
		}
	}
}

func (c *Cycle) backoff(ctx context.Context) {
	c.indicate(actuator.ColorFault)
	if c.cfg.FaultBackoff > 0 {
		t := time.NewTimer(c.cfg.FaultBackoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
	c.indicate(actuator.ColorOK)
}

func (c *Cycle) teardown(ctx context.Context) {
	reason := stopReason(ctx)
	c.log.Info("shutting down", "reason", reason, "cycles", c.counter)

	c.publishStatus(EventShutdown, reason)
	if err := c.conn.Teardown(); err != nil {
		c.log.Error(err, "connectivity teardown")
	}
	if err := c.act.SafeState(); err != nil {
		c.hardwareFault(err)
		c.log.Error(err, "actuator safe state")
	}
	c.update()
}

// stopReason is the cancel cause of ctx, or empty for a plain cancel.
func stopReason(ctx context.Context) string {
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, context.Canceled) {
		return ""
	}
	return cause.Error()
}

// ObserveConnectivity returns a connectivity state hook that keeps the
// metrics gauge, the status tracker and the event history current.
func ObserveConnectivity(m *metrics.Metrics, t *status.Tracker, rec store.Recorder, now func() time.Time) func(from, to connectivity.State) {
	return func(from, to connectivity.State) {
		m.Connectivity.Set(float64(to.Level()))
		t.SetConnectivity(to)
		rec.RecordEvent(store.Event{
			Kind:   store.EventConnectivity,
			Detail: fmt.Sprintf("%s -> %s", from, to),
			At:     now(),
		})
	}
}
