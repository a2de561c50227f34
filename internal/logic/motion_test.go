package logic

import (
	"errors"
	"testing"
	"time"
)

func TestMotionFirstDetectionFires(t *testing.T) {
	sig := &fakeSignaler{}
	d := NewMotionDebouncer(5*time.Second, sig)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ev, err := d.Observe(Reading{Motion: true, Temperature: Float(26.0), Humidity: Float(40.0)}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an alert")
	}
	if ev.Kind != AlertKindMotion {
		t.Errorf("kind: got %q, want motion", ev.Kind)
	}
	if *ev.Temperature != 26.0 || *ev.Humidity != 40.0 {
		t.Errorf("unexpected climate in event: %v %v", *ev.Temperature, *ev.Humidity)
	}
	if !ev.FiredAt.Equal(now) {
		t.Errorf("FiredAt: got %v, want %v", ev.FiredAt, now)
	}
	if sig.calls != 1 {
		t.Errorf("expected 1 alert pattern, got %d", sig.calls)
	}
}

func TestMotionNoMotionNoEvent(t *testing.T) {
	sig := &fakeSignaler{}
	d := NewMotionDebouncer(5*time.Second, sig)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		ev, err := d.Observe(Reading{}, now.Add(time.Duration(i)*time.Second))
		if ev != nil || err != nil {
			t.Fatalf("step %d: expected nothing, got %v %v", i, ev, err)
		}
	}
	if _, fired := d.LastFired(); fired {
		t.Error("lastFired must stay unset without motion")
	}
	if sig.calls != 0 {
		t.Errorf("expected no alert pattern, got %d", sig.calls)
	}
}

func TestMotionCooldownBoundary(t *testing.T) {
	d := NewMotionDebouncer(5*time.Second, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if ev, _ := d.Observe(Reading{Motion: true}, now); ev == nil {
		t.Fatal("first detection should fire")
	}
	if ev, _ := d.Observe(Reading{Motion: true}, now.Add(4999*time.Millisecond)); ev != nil {
		t.Error("should not fire inside cooldown")
	}
	if ev, _ := d.Observe(Reading{Motion: true}, now.Add(5*time.Second)); ev == nil {
		t.Error("should fire exactly at cooldown")
	}
}

// TestMotionContinuousCount checks that continuous motion over duration T
// yields floor(T/cooldown)+1 alerts.
func TestMotionContinuousCount(t *testing.T) {
	tests := []struct {
		name     string
		cooldown time.Duration
		step     time.Duration
		total    time.Duration
	}{
		{"1s ticks 5s cooldown", 5 * time.Second, time.Second, 23 * time.Second},
		{"3s ticks 6s cooldown", 6 * time.Second, 3 * time.Second, 60 * time.Second},
		{"1s ticks 1s cooldown", time.Second, time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewMotionDebouncer(tt.cooldown, nil)
			start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

			fired := 0
			for at := time.Duration(0); at <= tt.total; at += tt.step {
				if ev, _ := d.Observe(Reading{Motion: true}, start.Add(at)); ev != nil {
					fired++
				}
			}

			want := int(tt.total/tt.cooldown) + 1
			if fired != want {
				t.Errorf("fired %d alerts, want %d", fired, want)
			}
		})
	}
}

func TestMotionSignalErrorStillReturnsEvent(t *testing.T) {
	sig := &fakeSignaler{err: errPin}
	d := NewMotionDebouncer(5*time.Second, sig)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ev, err := d.Observe(Reading{Motion: true}, now)
	if !errors.Is(err, errPin) {
		t.Fatalf("expected pin error, got %v", err)
	}
	if ev == nil {
		t.Fatal("event should still be returned")
	}

	// Cooldown started despite the fault.
	if ev, _ := d.Observe(Reading{Motion: true}, now.Add(time.Second)); ev != nil {
		t.Error("should not fire inside cooldown after faulted alert")
	}
}

func TestSensorCache(t *testing.T) {
	var c SensorCache

	latest := c.Latest()
	if latest.Temperature != nil || latest.Humidity != nil || latest.Motion {
		t.Errorf("zero cache should report absent values, got %+v", latest)
	}
	if c.HasReading() {
		t.Error("zero cache should not have a reading")
	}

	c.Update(Reading{Temperature: Float(22.5), Humidity: Float(50), Motion: false})
	c.Update(Reading{Motion: true})

	latest = c.Latest()
	if latest.Temperature != nil {
		t.Error("update with absent temperature must replace the cached one")
	}
	if !latest.Motion {
		t.Error("motion should be updated")
	}
	if !c.HasReading() {
		t.Error("cache should have a reading")
	}
}
