package mqtt

import (
	"context"
	"time"

	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/log"
)

// Published is one message sent through a FakeSession.
type Published struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakeSession records session traffic for test assertions. Inbound messages
// injected with Deliver go through the same buffer the real session uses.
type FakeSession struct {
	// Messages contains everything published, in order.
	Messages []Published

	// Subscriptions contains every subscribed topic.
	Subscriptions []string

	// Configs records each Connect call.
	Configs []connectivity.SessionConfig

	// ConnectError, SubscribeErrors and PublishError inject failures.
	ConnectError    error
	SubscribeErrors map[string]error
	PublishError    error

	// BlockConnect makes Connect wait for its context, like a broker that
	// never answers.
	BlockConnect bool

	// IsConnected is returned by Connected. Connect sets it, Close clears it.
	IsConnected bool

	// Closed counts Close calls.
	Closed int

	inbound *inboundBuffer
}

// NewFakeSession creates a FakeSession with the default inbound capacity.
func NewFakeSession() *FakeSession {
	return &FakeSession{inbound: newInboundBuffer(DefaultInboundCapacity, log.NewNop())}
}

// Connect records cfg.
func (f *FakeSession) Connect(ctx context.Context, cfg connectivity.SessionConfig) error {
	f.Configs = append(f.Configs, cfg)
	if f.BlockConnect {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.ConnectError != nil {
		return f.ConnectError
	}
	f.IsConnected = true
	return nil
}

// Subscribe records topic.
func (f *FakeSession) Subscribe(topic string) error {
	if err := f.SubscribeErrors[topic]; err != nil {
		return err
	}
	f.Subscriptions = append(f.Subscriptions, topic)
	return nil
}

// Publish records the message.
func (f *FakeSession) Publish(topic string, payload []byte, retained bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Published{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

// Deliver simulates an inbound message from the broker.
func (f *FakeSession) Deliver(topic string, payload []byte) {
	f.inbound.push(connectivity.Message{Topic: topic, Payload: payload, ReceivedAt: time.Now()})
}

// Drain returns buffered inbound messages.
func (f *FakeSession) Drain() []connectivity.Message {
	return f.inbound.drain()
}

// Connected returns IsConnected.
func (f *FakeSession) Connected() bool {
	return f.IsConnected
}

// Close marks the session closed.
func (f *FakeSession) Close() error {
	f.Closed++
	f.IsConnected = false
	return nil
}

// On returns the messages published to topic.
func (f *FakeSession) On(topic string) []Published {
	var out []Published
	for _, m := range f.Messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded traffic and injected failures.
func (f *FakeSession) Reset() {
	f.Messages = nil
	f.Subscriptions = nil
	f.Configs = nil
	f.ConnectError = nil
	f.SubscribeErrors = nil
	f.PublishError = nil
	f.Closed = 0
	f.inbound.drain()
}
