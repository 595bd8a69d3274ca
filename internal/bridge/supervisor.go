package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/SiegfriedK04/DS8-Proyecto/internal/config"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/metrics"
	"github.com/SiegfriedK04/DS8-Proyecto/internal/modules/telemetry/types"
)

// ConnState is the supervisor's position in its connection lifecycle.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateSubscribed:
		return "SUBSCRIBED"
	default:
		return "DISCONNECTED"
	}
}

// Supervisor owns the broker link: connect, subscribe, dispatch, reconnect.
// It resolves inbound topics through the route table and hands payloads to
// the callbacks verbatim; decoding and correlation live behind them.
type Supervisor struct {
	client mqtt.Client
	cfg    config.Config
	routes *Routes
	logger *slog.Logger

	mu            sync.RWMutex
	state         ConnState
	everConnected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	// OnFragment receives every telemetry payload with its resolved field.
	// Set before Connect.
	OnFragment func(field types.Field, payload string)
	// OnCommand receives remote command payloads. Set before Connect.
	OnCommand func(payload string)
	// OnStateChange fires on connect and on lost connections; detail carries
	// the transport error text when there is one.
	OnStateChange func(state ConnState, detail string)
}

func NewSupervisor(cfg config.Config, routes *Routes, logger *slog.Logger) *Supervisor {
	s := &Supervisor{
		cfg:    cfg,
		routes: routes,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	// Brokers drop the older session when two clients share an id, so every
	// process gets a unique suffix.
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.MQTTClientID, uuid.NewString()[:8]))
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Clean sessions lose their subscriptions across reconnects, so
	// subscribing happens inside the connect callback and runs again after
	// every automatic reconnect.
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.onConnected()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setState(StateDisconnected)
		s.logger.Warn("mqtt connection lost", "error", err)
		s.notify(StateDisconnected, err.Error())
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect establishes the broker session and blocks until the first attempt
// resolves or ctx expires. The client keeps retrying in the background after
// an interrupted or failed first attempt, so an error here is advisory for
// callers that want to report startup trouble.
func (s *Supervisor) Connect(ctx context.Context) error {
	// Fail fast if already stopped.
	select {
	case <-s.stopCh:
		return fmt.Errorf("supervisor stopped")
	default:
	}

	// Fast path.
	if s.State() == StateSubscribed {
		return nil
	}

	s.setState(StateConnecting)
	token := s.client.Connect()

	// Wait in a ctx/stop-aware loop.
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			// The connect callback performs the subscriptions.
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return fmt.Errorf("supervisor stopped")
		default:
		}
	}
}

func (s *Supervisor) onConnected() {
	s.logger.Info("mqtt connected", "broker", s.cfg.MQTTBroker, "port", s.cfg.MQTTPort)

	if err := s.subscribe(); err != nil {
		s.logger.Error("mqtt subscribe failed", "error", err)
		return
	}

	s.mu.Lock()
	reconnect := s.everConnected
	s.everConnected = true
	s.state = StateSubscribed
	s.mu.Unlock()

	if reconnect {
		metrics.BrokerReconnected()
	}
	s.notify(StateSubscribed, "")
}

func (s *Supervisor) subscribe() error {
	topics := s.routes.Topics()
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = 1 // At least once delivery
	}

	token := s.client.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg)
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout (%d topics)", len(filters))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.logger.Info("subscribed to feeds", "topics", len(filters), "prefix", s.cfg.TopicPrefix)
	return nil
}

func (s *Supervisor) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := string(msg.Payload())

	field, ok := s.routes.Field(topic)
	if !ok {
		s.logger.Warn("message on unrecognized topic", "topic", topic)
		return
	}

	s.logger.Debug("fragment received", "field", field, "topic", topic, "size", len(payload))

	switch field {
	case types.FieldCommand:
		if s.OnCommand != nil {
			s.OnCommand(payload)
		}
	default:
		if s.OnFragment != nil {
			s.OnFragment(field, payload)
		}
	}
}

// PublishCommand sends an actuator command token to the command topic. The
// bridge routes it verbatim; the station interprets it.
func (s *Supervisor) PublishCommand(command string) error {
	if !s.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := s.routes.Topic(types.FieldCommand)
	token := s.client.Publish(topic, 1, false, command)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	s.logger.Info("command published", "topic", topic, "command", command)
	return nil
}

// State returns the current lifecycle state.
func (s *Supervisor) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsConnected reports whether the supervisor holds a live, subscribed session.
func (s *Supervisor) IsConnected() bool {
	return s.State() == StateSubscribed && s.client.IsConnected()
}

// Disconnect stops the supervisor and closes the broker session.
// Idempotent and safe to call multiple times.
func (s *Supervisor) Disconnect() {
	// Signal shutdown once (unblocks any Connect loops).
	s.stopOnce.Do(func() { close(s.stopCh) })

	// Unsubscribe before disconnecting
	if s.client != nil && s.client.IsConnected() {
		token := s.client.Unsubscribe(s.routes.Topics()...)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setState(StateDisconnected)
	s.logger.Info("mqtt supervisor disconnected")
}

func (s *Supervisor) setState(st ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) notify(st ConnState, detail string) {
	if s.OnStateChange != nil {
		s.OnStateChange(st, detail)
	}
}
