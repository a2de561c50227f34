package actuator

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/smarthome-node/internal/gpio"
)

func newTestState(t *testing.T) (*State, *gpio.FakeBoard, *[]time.Duration) {
	t.Helper()
	board := gpio.NewFakeBoard()
	var slept []time.Duration
	s := New(board, WithSleep(func(d time.Duration) { slept = append(slept, d) }))
	return s, board, &slept
}

func TestSetRelayWritesAndIsIdempotent(t *testing.T) {
	s, board, _ := newTestState(t)

	if err := s.SetRelay(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.RelayOn() || !board.Values[gpio.Relay] {
		t.Error("relay should be on in memory and on the pin")
	}

	// Same value: legal, no hardware write.
	if err := s.SetRelay(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(board.WritesTo(gpio.Relay)); n != 1 {
		t.Errorf("expected 1 relay write, got %d", n)
	}
}

func TestToggleRelay(t *testing.T) {
	s, board, _ := newTestState(t)

	s.ToggleRelay()
	if !s.RelayOn() {
		t.Error("toggle from off should turn on")
	}
	s.ToggleRelay()
	if s.RelayOn() {
		t.Error("toggle from on should turn off")
	}
	if got := board.WritesTo(gpio.Relay); len(got) != 2 {
		t.Errorf("expected 2 relay writes, got %v", got)
	}
}

func TestHardwareFaultKeepsMemory(t *testing.T) {
	s, board, _ := newTestState(t)
	board.WriteErrors[gpio.Relay] = errors.New("line busy")

	err := s.SetRelay(true)
	if !errors.Is(err, ErrHardwareFault) {
		t.Fatalf("expected ErrHardwareFault, got %v", err)
	}
	var hf *HardwareFault
	if !errors.As(err, &hf) || hf.Output != gpio.Relay {
		t.Errorf("expected HardwareFault on relay, got %v", err)
	}
	if s.RelayOn() {
		t.Error("memory must only track confirmed writes")
	}
}

func TestSetColorOnlyWritesChangedChannels(t *testing.T) {
	s, board, _ := newTestState(t)

	if err := s.SetColor(ColorOK); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetColor(Color{1, 1, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []gpio.PinWrite{
		{Output: gpio.LEDGreen, On: true},
		{Output: gpio.LEDRed, On: true},
	}
	if len(board.Writes) != len(want) {
		t.Fatalf("writes: got %v, want %v", board.Writes, want)
	}
	for i := range want {
		if board.Writes[i] != want[i] {
			t.Errorf("write %d: got %v, want %v", i, board.Writes[i], want[i])
		}
	}
	if s.Snapshot().Color != (Color{1, 1, 0}) {
		t.Errorf("color: got %v", s.Snapshot().Color)
	}
}

func TestSetColorFaultRollsBack(t *testing.T) {
	s, board, _ := newTestState(t)
	board.WriteErrors[gpio.LEDBlue] = errors.New("line busy")

	err := s.SetColor(Color{1, 1, 1})
	if !errors.Is(err, ErrHardwareFault) {
		t.Fatalf("expected ErrHardwareFault, got %v", err)
	}
	if s.Snapshot().Color != ColorOff {
		t.Errorf("recorded color should be unchanged, got %v", s.Snapshot().Color)
	}
	if board.Values[gpio.LEDRed] || board.Values[gpio.LEDGreen] {
		t.Error("red and green should be restored to off")
	}
}

func TestNewColorClampsChannels(t *testing.T) {
	if c := NewColor(1, 0, 0); c != (Color{1, 0, 0}) {
		t.Errorf("got %v", c)
	}
	if c := NewColor(255, -1, 0); c != (Color{1, 1, 0}) {
		t.Errorf("non-zero channels should clamp to 1, got %v", c)
	}
	if s := (Color{1, 0, 1}).String(); s != "(1,0,1)" {
		t.Errorf("String: got %q", s)
	}
}

func TestSafeStateForcesAllPinsLow(t *testing.T) {
	s, board, _ := newTestState(t)
	s.SetRelay(true)
	s.SetColor(ColorAlert)
	board.Writes = nil

	if err := s.SafeState(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.Writes) != 5 {
		t.Errorf("expected a write to each of 5 pins, got %v", board.Writes)
	}
	if s.Snapshot() != (Snapshot{}) {
		t.Errorf("snapshot should be all off, got %+v", s.Snapshot())
	}
}

func TestSafeStateAttemptsAllPinsOnFault(t *testing.T) {
	s, board, _ := newTestState(t)
	board.WriteErrors[gpio.Relay] = errors.New("line busy")

	err := s.SafeState()
	if !errors.Is(err, ErrHardwareFault) {
		t.Fatalf("expected ErrHardwareFault, got %v", err)
	}
	if len(board.Writes) != 4 {
		t.Errorf("remaining pins should still be written, got %v", board.Writes)
	}
}

func TestSignalAlertPattern(t *testing.T) {
	s, board, slept := newTestState(t)

	if err := s.SignalAlert(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buzzer := board.WritesTo(gpio.Buzzer)
	wantBuzzer := []bool{true, false, true, false}
	if len(buzzer) != len(wantBuzzer) {
		t.Fatalf("buzzer writes: got %v, want %v", buzzer, wantBuzzer)
	}
	for i := range wantBuzzer {
		if buzzer[i] != wantBuzzer[i] {
			t.Errorf("buzzer write %d: got %v", i, buzzer[i])
		}
	}

	wantSleeps := []time.Duration{AlertBeep, AlertGap, AlertBeep, AlertFlash}
	if len(*slept) != len(wantSleeps) {
		t.Fatalf("sleeps: got %v, want %v", *slept, wantSleeps)
	}
	for i := range wantSleeps {
		if (*slept)[i] != wantSleeps[i] {
			t.Errorf("sleep %d: got %v, want %v", i, (*slept)[i], wantSleeps[i])
		}
	}

	snap := s.Snapshot()
	if snap.Color != ColorOK {
		t.Errorf("indicator should end on OK, got %v", snap.Color)
	}
	if snap.AlarmActive {
		t.Error("buzzer should end off")
	}
	if !board.Values[gpio.LEDGreen] || board.Values[gpio.LEDRed] || board.Values[gpio.LEDBlue] {
		t.Errorf("pins should show green, got %v", board.Values)
	}
}

func TestBeepFault(t *testing.T) {
	s, board, slept := newTestState(t)
	board.WriteErrors[gpio.Buzzer] = errors.New("line busy")

	if err := s.Beep(DefaultAlarm); !errors.Is(err, ErrHardwareFault) {
		t.Fatalf("expected ErrHardwareFault, got %v", err)
	}
	if len(*slept) != 0 {
		t.Error("should not wait when the buzzer could not be switched on")
	}
}

func TestSignalConfirmFaultReady(t *testing.T) {
	s, _, slept := newTestState(t)

	if err := s.SignalConfirm(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != ConfirmBeep {
		t.Errorf("confirm sleeps: got %v", *slept)
	}

	s.SignalFault()
	if s.Snapshot().Color != ColorFault {
		t.Errorf("got %v, want fault color", s.Snapshot().Color)
	}
	s.SignalReady()
	if s.Snapshot().Color != ColorOK {
		t.Errorf("got %v, want OK color", s.Snapshot().Color)
	}
}
