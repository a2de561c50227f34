package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/log"
)

const (
	defaultConnectTimeout = 10 * time.Second
	operationTimeout      = 5 * time.Second
)

var errTimeout = errors.New("timeout")

// Session is a connectivity.Session backed by paho. Automatic reconnection is
// disabled; the connectivity manager decides when to reconnect.
type Session struct {
	log     log.Logger
	inbound *inboundBuffer
	now     func() time.Time

	mu     sync.Mutex
	client paho.Client
}

// NewSession creates an unconnected session whose inbound buffer holds at
// most capacity messages.
func NewSession(logger log.Logger, capacity int) *Session {
	logger = logger.WithName("mqtt")
	return &Session{
		log:     logger,
		inbound: newInboundBuffer(capacity, logger),
		now:     time.Now,
	}
}

// Connect opens the session. Any previous client is disconnected first.
func (s *Session) Connect(ctx context.Context, cfg connectivity.SessionConfig) error {
	opts, err := clientOptions(cfg)
	if err != nil {
		return err
	}
	opts.SetDefaultPublishHandler(s.onMessage)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.log.Warn("connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		s.log.Info("connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	s.mu.Lock()
	old := s.client
	s.client = client
	s.mu.Unlock()
	if old != nil && old.IsConnected() {
		old.Disconnect(250)
	}
	return nil
}

func clientOptions(cfg connectivity.SessionConfig) (*paho.ClientOptions, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(false).
		SetConnectTimeout(timeout)

	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.WillTopic != "" {
		opts.SetBinaryWill(cfg.WillTopic, cfg.WillPayload, 1, true)
	}
	if cfg.TLS {
		tlsCfg, err := tlsConfig(cfg)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func tlsConfig(cfg connectivity.SessionConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ServerName: cfg.ServerName,
		MinVersion: tls.VersionTLS12,
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", cfg.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

func (s *Session) onMessage(_ paho.Client, msg paho.Message) {
	s.inbound.push(connectivity.Message{
		Topic:      msg.Topic(),
		Payload:    msg.Payload(),
		ReceivedAt: s.now(),
	})
}

func (s *Session) current() paho.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Subscribe subscribes at QoS 0 and routes messages into the inbound buffer.
func (s *Session) Subscribe(topic string) error {
	client := s.current()
	if client == nil {
		return connectivity.ErrNotConnected
	}
	return wait(client.Subscribe(topic, 0, s.onMessage))
}

// Publish sends payload. Retained messages use QoS 1 so the broker's copy is
// reliably updated; everything else is QoS 0.
func (s *Session) Publish(topic string, payload []byte, retained bool) error {
	client := s.current()
	if client == nil {
		return connectivity.ErrNotConnected
	}
	var qos byte
	if retained {
		qos = 1
	}
	return wait(client.Publish(topic, qos, retained, payload))
}

func wait(token paho.Token) error {
	if !token.WaitTimeout(operationTimeout) {
		return errTimeout
	}
	return token.Error()
}

// Drain returns and clears all buffered inbound messages.
func (s *Session) Drain() []connectivity.Message {
	return s.inbound.drain()
}

// Connected reports whether the underlying connection is open.
func (s *Session) Connected() bool {
	client := s.current()
	return client != nil && client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (s *Session) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(1000) // 1 second quiesce
	}
	return nil
}
