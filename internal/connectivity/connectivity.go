// Package connectivity manages the node's two-layer connection: the network
// link and the broker session on top of it.
package connectivity

import (
	"context"
	"errors"
	"time"
)

// State is the connectivity level the node currently has.
type State string

const (
	Disconnected State = "disconnected"
	LinkUp       State = "link_up"
	SessionUp    State = "session_up"
)

// Level returns 0, 1 or 2 for Disconnected, LinkUp and SessionUp.
func (s State) Level() int {
	switch s {
	case LinkUp:
		return 1
	case SessionUp:
		return 2
	default:
		return 0
	}
}

var (
	ErrLinkFailure    = errors.New("link failure")
	ErrSessionFailure = errors.New("session failure")
	ErrLinkDown       = errors.New("link down")
	ErrSubscribe      = errors.New("subscribe failed")
	ErrNotConnected   = errors.New("not connected")
	ErrPublishFailure = errors.New("publish failed")
)

// Credentials identify the network the link is expected on. Joining the
// network is left to the OS.
type Credentials struct {
	Interface string
	SSID      string
}

// SessionConfig describes the broker session.
type SessionConfig struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration

	// TLS enables TLS with ServerName verification. CAFile, if set, replaces
	// the system roots.
	TLS        bool
	ServerName string
	CAFile     string

	// WillTopic and WillPayload are published retained by the broker when the
	// session dies without a clean disconnect.
	WillTopic   string
	WillPayload []byte
}

// Message is one inbound message from the session.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Link is the network layer.
type Link interface {
	Connect(ctx context.Context, creds Credentials) error
	Up() (bool, error)
	// Close releases the link. It must be safe to call when not connected.
	Close() error
}

// Session is the broker session. Implementations buffer inbound messages
// until Drain is called and must not block the caller.
type Session interface {
	Connect(ctx context.Context, cfg SessionConfig) error
	Subscribe(topic string) error
	Publish(topic string, payload []byte, retained bool) error
	Drain() []Message
	Connected() bool
	// Close ends the session. It must be safe to call when not connected.
	Close() error
}
