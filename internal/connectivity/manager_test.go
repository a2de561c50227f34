package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/smarthome-node/internal/log"
)

type stubLink struct {
	connectErr error
	up         bool
	upAfter    int
	upErr      error
	checks     int
	closed     int
}

func (l *stubLink) Connect(context.Context, Credentials) error { return l.connectErr }

func (l *stubLink) Up() (bool, error) {
	l.checks++
	if l.upErr != nil {
		return false, l.upErr
	}
	if l.upAfter > 0 && l.checks < l.upAfter {
		return false, nil
	}
	return l.up, nil
}

func (l *stubLink) Close() error { l.closed++; return nil }

type stubSession struct {
	connectErr   error
	subscribeErr map[string]error
	publishErr   error
	connected    bool
	subscribed   []string
	published    []string
	retained     []bool
	inbound      []Message
	closed       int
}

func (s *stubSession) Connect(context.Context, SessionConfig) error {
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *stubSession) Subscribe(topic string) error {
	if err := s.subscribeErr[topic]; err != nil {
		return err
	}
	s.subscribed = append(s.subscribed, topic)
	return nil
}

func (s *stubSession) Publish(topic string, _ []byte, retained bool) error {
	if s.publishErr != nil {
		return s.publishErr
	}
	s.published = append(s.published, topic)
	s.retained = append(s.retained, retained)
	return nil
}

func (s *stubSession) Drain() []Message {
	msgs := s.inbound
	s.inbound = nil
	return msgs
}

func (s *stubSession) Connected() bool { return s.connected }

func (s *stubSession) Close() error {
	s.closed++
	s.connected = false
	return nil
}

type transition struct{ from, to State }

func newTestManager(link *stubLink, session *stubSession) (*Manager, *[]transition) {
	var seen []transition
	m := NewManager(link, session, log.NewNop(),
		WithPollInterval(time.Millisecond),
		WithStateHook(func(from, to State) { seen = append(seen, transition{from, to}) }),
	)
	return m, &seen
}

func sessionUp(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	if err := m.ConnectLink(ctx, Credentials{}, time.Second); err != nil {
		t.Fatalf("ConnectLink: %v", err)
	}
	if err := m.ConnectSession(ctx, SessionConfig{}, "control"); err != nil {
		t.Fatalf("ConnectSession: %v", err)
	}
	if m.State() != SessionUp {
		t.Fatalf("state: got %s, want %s", m.State(), SessionUp)
	}
}

func TestInitialState(t *testing.T) {
	m, _ := newTestManager(&stubLink{}, &stubSession{})
	if m.State() != Disconnected {
		t.Errorf("got %s, want %s", m.State(), Disconnected)
	}
}

func TestConnectLinkPollsUntilUp(t *testing.T) {
	link := &stubLink{up: true, upAfter: 3}
	m, seen := newTestManager(link, &stubSession{})

	if err := m.ConnectLink(context.Background(), Credentials{SSID: "home"}, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.State() != LinkUp {
		t.Errorf("state: got %s", m.State())
	}
	if link.checks != 3 {
		t.Errorf("checks: got %d, want 3", link.checks)
	}
	if len(*seen) != 1 || (*seen)[0] != (transition{Disconnected, LinkUp}) {
		t.Errorf("transitions: got %v", *seen)
	}
}

func TestConnectLinkTimeout(t *testing.T) {
	m, seen := newTestManager(&stubLink{up: false}, &stubSession{})

	err := m.ConnectLink(context.Background(), Credentials{}, 10*time.Millisecond)
	if !errors.Is(err, ErrLinkFailure) {
		t.Fatalf("expected ErrLinkFailure, got %v", err)
	}
	if m.State() != Disconnected {
		t.Errorf("state: got %s", m.State())
	}
	if len(*seen) != 0 {
		t.Errorf("no transitions expected, got %v", *seen)
	}
}

func TestConnectLinkConnectError(t *testing.T) {
	boom := errors.New("no such ssid")
	m, _ := newTestManager(&stubLink{connectErr: boom}, &stubSession{})

	err := m.ConnectLink(context.Background(), Credentials{}, time.Second)
	if !errors.Is(err, ErrLinkFailure) || !errors.Is(err, boom) {
		t.Errorf("expected ErrLinkFailure wrapping cause, got %v", err)
	}
}

func TestConnectLinkCancelled(t *testing.T) {
	m, _ := newTestManager(&stubLink{up: false}, &stubSession{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.ConnectLink(ctx, Credentials{}, time.Minute)
	if !errors.Is(err, ErrLinkFailure) || !errors.Is(err, context.Canceled) {
		t.Errorf("got %v", err)
	}
}

func TestConnectLinkAlreadyUpIsNoop(t *testing.T) {
	link := &stubLink{up: true}
	m, _ := newTestManager(link, &stubSession{})
	ctx := context.Background()

	if err := m.ConnectLink(ctx, Credentials{}, time.Second); err != nil {
		t.Fatal(err)
	}
	checks := link.checks
	if err := m.ConnectLink(ctx, Credentials{}, time.Second); err != nil {
		t.Fatal(err)
	}
	if link.checks != checks {
		t.Error("second ConnectLink should not touch the link")
	}
}

func TestConnectSessionRequiresLink(t *testing.T) {
	session := &stubSession{}
	m, _ := newTestManager(&stubLink{up: true}, session)

	err := m.ConnectSession(context.Background(), SessionConfig{}, "control")
	if !errors.Is(err, ErrLinkDown) {
		t.Errorf("expected ErrLinkDown, got %v", err)
	}
	if session.connected {
		t.Error("session must not be attempted without a link")
	}
}

func TestConnectSessionFailureStaysLinkUp(t *testing.T) {
	m, _ := newTestManager(&stubLink{up: true}, &stubSession{connectErr: errors.New("refused")})
	ctx := context.Background()
	if err := m.ConnectLink(ctx, Credentials{}, time.Second); err != nil {
		t.Fatal(err)
	}

	err := m.ConnectSession(ctx, SessionConfig{}, "control")
	if !errors.Is(err, ErrSessionFailure) {
		t.Errorf("expected ErrSessionFailure, got %v", err)
	}
	if m.State() != LinkUp {
		t.Errorf("state: got %s, want %s", m.State(), LinkUp)
	}
}

func TestConnectSessionSubscribeFailure(t *testing.T) {
	session := &stubSession{subscribeErr: map[string]error{"b": errors.New("denied")}}
	m, _ := newTestManager(&stubLink{up: true}, session)
	ctx := context.Background()
	if err := m.ConnectLink(ctx, Credentials{}, time.Second); err != nil {
		t.Fatal(err)
	}

	err := m.ConnectSession(ctx, SessionConfig{}, "a", "b", "c")
	if !errors.Is(err, ErrSubscribe) {
		t.Errorf("expected ErrSubscribe, got %v", err)
	}
	if m.State() != SessionUp {
		t.Errorf("subscribe failure must not roll back the session, state %s", m.State())
	}
	if len(session.subscribed) != 2 {
		t.Errorf("subscribed: got %v, want [a c]", session.subscribed)
	}
}

func TestPublishRequiresSession(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Manager)
		want  State
	}{
		{"disconnected", func(*Manager) {}, Disconnected},
		{"link_up", func(m *Manager) {
			_ = m.ConnectLink(context.Background(), Credentials{}, time.Second)
		}, LinkUp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &stubSession{}
			m, _ := newTestManager(&stubLink{up: true}, session)
			tt.setup(m)

			if err := m.Publish("sensors", []byte("{}")); !errors.Is(err, ErrNotConnected) {
				t.Errorf("Publish: expected ErrNotConnected, got %v", err)
			}
			if err := m.PublishRetained("status", []byte("{}")); !errors.Is(err, ErrNotConnected) {
				t.Errorf("PublishRetained: expected ErrNotConnected, got %v", err)
			}
			if m.State() != tt.want {
				t.Errorf("state changed to %s", m.State())
			}
			if len(session.published) != 0 {
				t.Error("nothing should reach the session")
			}
		})
	}
}

func TestPublish(t *testing.T) {
	session := &stubSession{}
	m, _ := newTestManager(&stubLink{up: true}, session)
	sessionUp(t, m)

	if err := m.Publish("sensors", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := m.PublishRetained("status", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if len(session.published) != 2 || session.retained[0] || !session.retained[1] {
		t.Errorf("published %v retained %v", session.published, session.retained)
	}
}

func TestPublishFailureDropsDeadSession(t *testing.T) {
	session := &stubSession{}
	m, _ := newTestManager(&stubLink{up: true}, session)
	sessionUp(t, m)

	session.publishErr = errors.New("broken pipe")
	session.connected = false

	if err := m.Publish("sensors", nil); !errors.Is(err, ErrPublishFailure) {
		t.Errorf("expected ErrPublishFailure, got %v", err)
	}
	if m.State() != LinkUp {
		t.Errorf("state: got %s, want %s", m.State(), LinkUp)
	}
}

func TestPublishFailureKeepsLiveSession(t *testing.T) {
	session := &stubSession{}
	m, _ := newTestManager(&stubLink{up: true}, session)
	sessionUp(t, m)

	session.publishErr = errors.New("timeout")
	if err := m.Publish("sensors", nil); !errors.Is(err, ErrPublishFailure) {
		t.Errorf("expected ErrPublishFailure, got %v", err)
	}
	if m.State() != SessionUp {
		t.Errorf("state: got %s", m.State())
	}
}

func TestDrainInbound(t *testing.T) {
	session := &stubSession{}
	m, _ := newTestManager(&stubLink{up: true}, session)

	var got []string
	m.OnMessage(func(msg Message) { got = append(got, string(msg.Payload)) })

	if n := m.DrainInbound(); n != 0 {
		t.Errorf("empty drain: got %d", n)
	}

	session.inbound = []Message{{Payload: []byte("1")}, {Payload: []byte("2")}, {Payload: []byte("3")}}
	if n := m.DrainInbound(); n != 3 {
		t.Errorf("drain count: got %d, want 3", n)
	}
	if len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Errorf("arrival order not preserved: %v", got)
	}
	if n := m.DrainInbound(); n != 0 {
		t.Errorf("second drain: got %d", n)
	}
}

func TestSyncSessionLost(t *testing.T) {
	session := &stubSession{}
	m, seen := newTestManager(&stubLink{up: true}, session)
	sessionUp(t, m)

	session.connected = false
	m.Sync()

	if m.State() != LinkUp {
		t.Errorf("state: got %s, want %s", m.State(), LinkUp)
	}
	last := (*seen)[len(*seen)-1]
	if last != (transition{SessionUp, LinkUp}) {
		t.Errorf("last transition: got %v", last)
	}
}

func TestSyncLinkLost(t *testing.T) {
	link := &stubLink{up: true}
	session := &stubSession{}
	m, _ := newTestManager(link, session)
	sessionUp(t, m)

	link.up = false
	m.Sync()

	if m.State() != Disconnected {
		t.Errorf("state: got %s", m.State())
	}
	if session.closed != 1 || link.closed != 1 {
		t.Errorf("closed session=%d link=%d", session.closed, link.closed)
	}
}

func TestSyncHealthyIsNoop(t *testing.T) {
	m, seen := newTestManager(&stubLink{up: true}, &stubSession{})
	sessionUp(t, m)
	n := len(*seen)

	m.Sync()
	if m.State() != SessionUp || len(*seen) != n {
		t.Errorf("unexpected transition: %v", *seen)
	}
}

func TestTeardown(t *testing.T) {
	link := &stubLink{up: true}
	session := &stubSession{}
	m, _ := newTestManager(link, session)
	sessionUp(t, m)

	if err := m.Teardown(); err != nil {
		t.Fatal(err)
	}
	if m.State() != Disconnected {
		t.Errorf("state: got %s", m.State())
	}
	if session.closed != 1 || link.closed != 1 {
		t.Errorf("closed session=%d link=%d", session.closed, link.closed)
	}

	// Teardown from Disconnected is allowed.
	if err := m.Teardown(); err != nil {
		t.Errorf("second teardown: %v", err)
	}
}

func TestStateLevel(t *testing.T) {
	for state, want := range map[State]int{Disconnected: 0, LinkUp: 1, SessionUp: 2} {
		if got := state.Level(); got != want {
			t.Errorf("%s: got %d, want %d", state, got, want)
		}
	}
}
