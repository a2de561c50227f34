package connectivity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/sweeney/smarthome-node/internal/log"
)

const (
	eventLinkEstablished    = "link_established"
	eventSessionEstablished = "session_established"
	eventSessionLost        = "session_lost"
	eventTeardown           = "teardown"
)

// DefaultPollInterval is how often ConnectLink checks whether the link is up.
const DefaultPollInterval = time.Second

// Option configures a Manager.
type Option func(*Manager)

// WithStateHook registers fn to be called after every state change.
func WithStateHook(fn func(from, to State)) Option {
	return func(m *Manager) { m.hook = fn }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) { m.pollInterval = d }
}

// Manager owns the connectivity state machine. It is driven from the control
// loop and is not safe for concurrent use.
type Manager struct {
	link    Link
	session Session
	machine *fsm.FSM
	log     log.Logger

	handler      func(Message)
	hook         func(from, to State)
	pollInterval time.Duration
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(link Link, session Session, logger log.Logger, opts ...Option) *Manager {
	m := &Manager{
		link:         link,
		session:      session,
		log:          logger.WithName("connectivity"),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.machine = fsm.NewFSM(
		string(Disconnected),
		fsm.Events{
			{Name: eventLinkEstablished, Src: []string{string(Disconnected)}, Dst: string(LinkUp)},
			{Name: eventSessionEstablished, Src: []string{string(LinkUp)}, Dst: string(SessionUp)},
			{Name: eventSessionLost, Src: []string{string(SessionUp)}, Dst: string(LinkUp)},
			{Name: eventTeardown, Src: []string{string(LinkUp), string(SessionUp)}, Dst: string(Disconnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				from, to := State(e.Src), State(e.Dst)
				m.log.Info("state changed", "from", from, "to", to, "event", e.Event)
				if m.hook != nil {
					m.hook(from, to)
				}
			},
		},
	)
	return m
}

// State returns the current connectivity state.
func (m *Manager) State() State {
	return State(m.machine.Current())
}

// OnMessage registers the handler DrainInbound delivers messages to.
func (m *Manager) OnMessage(h func(Message)) {
	m.handler = h
}

func (m *Manager) fire(event string) {
	if !m.machine.Can(event) {
		return
	}
	if err := m.machine.Event(context.Background(), event); err != nil {
		m.log.Error(err, "state transition failed", "event", event)
	}
}

// ConnectLink brings the link up, polling until it reports up or timeout
// elapses. It is a no-op unless the manager is Disconnected.
func (m *Manager) ConnectLink(ctx context.Context, creds Credentials, timeout time.Duration) error {
	if m.State() != Disconnected {
		return nil
	}
	if err := m.link.Connect(ctx, creds); err != nil {
		return fmt.Errorf("%w: %w", ErrLinkFailure, err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(m.pollInterval)
	defer poll.Stop()

	for {
		up, err := m.link.Up()
		if err != nil {
			m.log.Debug("link check failed", "error", err.Error())
		}
		if up {
			m.fire(eventLinkEstablished)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrLinkFailure, ctx.Err())
		case <-deadline.C:
			return fmt.Errorf("%w: not up after %s", ErrLinkFailure, timeout)
		case <-poll.C:
		}
	}
}

// ConnectSession opens the broker session and subscribes to topics. It
// requires the link to be up. Subscription failures are reported but leave
// the session up.
func (m *Manager) ConnectSession(ctx context.Context, cfg SessionConfig, topics ...string) error {
	switch m.State() {
	case SessionUp:
		return nil
	case Disconnected:
		return ErrLinkDown
	}

	if err := m.session.Connect(ctx, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionFailure, err)
	}

	var errs []error
	for _, topic := range topics {
		if err := m.session.Subscribe(topic); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
		}
	}
	m.fire(eventSessionEstablished)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrSubscribe, errors.Join(errs...))
	}
	return nil
}

// Publish sends a non-retained message. It fails with ErrNotConnected
// unless the session is up.
func (m *Manager) Publish(topic string, payload []byte) error {
	return m.publish(topic, payload, false)
}

// PublishRetained sends a message the broker retains for late subscribers.
func (m *Manager) PublishRetained(topic string, payload []byte) error {
	return m.publish(topic, payload, true)
}

func (m *Manager) publish(topic string, payload []byte, retained bool) error {
	if m.State() != SessionUp {
		return ErrNotConnected
	}
	if err := m.session.Publish(topic, payload, retained); err != nil {
		if !m.session.Connected() {
			m.fire(eventSessionLost)
		}
		return fmt.Errorf("%w: %s: %w", ErrPublishFailure, topic, err)
	}
	return nil
}

// DrainInbound delivers every buffered inbound message to the handler in
// arrival order and returns how many there were. It never blocks.
func (m *Manager) DrainInbound() int {
	msgs := m.session.Drain()
	if m.handler != nil {
		for _, msg := range msgs {
			m.handler(msg)
		}
	}
	return len(msgs)
}

// Sync reconciles the state machine with the transports: a dead link tears
// everything down, a dead session drops back to LinkUp.
func (m *Manager) Sync() {
	state := m.State()
	if state == Disconnected {
		return
	}

	up, err := m.link.Up()
	if err != nil || !up {
		m.log.Warn("link lost", "up", up, "error", errString(err))
		if err := m.Teardown(); err != nil {
			m.log.Error(err, "teardown after link loss")
		}
		return
	}

	if state == SessionUp && !m.session.Connected() {
		m.log.Warn("session lost")
		m.fire(eventSessionLost)
	}
}

// Teardown closes the session and the link and returns to Disconnected.
func (m *Manager) Teardown() error {
	var errs []error
	if err := m.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	if err := m.link.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close link: %w", err))
	}
	m.fire(eventTeardown)
	return errors.Join(errs...)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
