/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/events"
)

// NATSBus fans events out to every node through core NATS subjects. Like
// the Redis backend it keeps local delivery on an in-process bus and only
// feeds remote messages into it. Reconnects are handled by the NATS client
// itself, which buffers publishes while the connection is down.
type NATSBus struct {
	conn     *nats.Conn
	logger   zerolog.Logger
	fallback *events.Bus
	nodeID   string

	mu     sync.Mutex
	counts map[events.EventType]int
	subs   map[events.EventType]*nats.Subscription

	useFallback bool
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL   string
	Token string

	// MaxReconnects < 0 keeps retrying forever.
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus creates a NATS-backed event bus. If the initial connection
// fails the bus stays in single-node fallback mode.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	nb := &NATSBus{
		logger:   logger,
		fallback: events.NewBus(),
		nodeID:   nodeID,
		counts:   make(map[events.EventType]int),
		subs:     make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("skuld-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Str("url", cfg.URL).Msg("NATS connection failed, using in-memory fallback")
		nb.useFallback = true
		return nb, nil
	}

	nb.conn = conn
	logger.Info().Str("url", cfg.URL).Msg("NATS event bus initialized")

	return nb, nil
}

// Subscribe registers a subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.fallback.Subscribe(eventType)

	nb.mu.Lock()
	defer nb.mu.Unlock()

	nb.counts[eventType]++

	if !nb.useFallback {
		nb.ensureSubscriptionLocked(eventType)
	}

	return sub
}

// ensureSubscriptionLocked opens the NATS subscription for an event type if
// it is not already running. Caller holds mu.
func (nb *NATSBus) ensureSubscriptionLocked(eventType events.EventType) {
	if _, exists := nb.subs[eventType]; exists {
		return
	}

	sub, err := nb.conn.Subscribe(subjectFor(eventType), func(msg *nats.Msg) {
		nb.handleMessage(eventType, msg)
	})
	if err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to subscribe to NATS subject")
		return
	}

	nb.subs[eventType] = sub
	nb.logger.Debug().Str("subject", subjectFor(eventType)).Msg("subscribed to NATS subject")
}

// handleMessage forwards a remote NATS message into the local bus.
func (nb *NATSBus) handleMessage(eventType events.EventType, msg *nats.Msg) {
	var nm natsMessage
	if err := json.Unmarshal(msg.Data, &nm); err != nil {
		nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
		return
	}

	// Skip our own messages; Publish already delivered them locally.
	if nm.NodeID == nb.nodeID {
		return
	}

	nb.fallback.Publish(eventType, nm.Payload)

	nb.logger.Debug().
		Str("event_type", string(eventType)).
		Str("source_node", nm.NodeID).
		Str("message_id", nm.MessageID).
		Msg("delivered NATS event to local subscribers")
}

// Publish sends an event payload to all subscribers, local and remote.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	// Local subscribers first; they must not depend on NATS health.
	nb.fallback.Publish(eventType, payload)

	if nb.useFallback {
		return
	}

	data, err := json.Marshal(natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nb.nodeID,
		MessageID: uuid.NewString(),
	})
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal NATS message")
		return
	}

	if err := nb.conn.Publish(subjectFor(eventType), data); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
		return
	}

	nb.logger.Debug().
		Str("event_type", string(eventType)).
		Str("node_id", nb.nodeID).
		Msg("published event to NATS")
}

// Unsubscribe removes a subscriber and closes its channel. The NATS
// subscription for an event type is torn down with its last subscriber.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.fallback.Unsubscribe(eventType, sub)

	nb.mu.Lock()
	defer nb.mu.Unlock()

	if nb.counts[eventType] > 0 {
		nb.counts[eventType]--
	}
	if nb.counts[eventType] > 0 {
		return
	}

	delete(nb.counts, eventType)
	if natsSub, exists := nb.subs[eventType]; exists {
		if err := natsSub.Unsubscribe(); err != nil {
			nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to unsubscribe from NATS subject")
		}
		delete(nb.subs, eventType)
		nb.logger.Debug().Str("event_type", string(eventType)).Msg("closed NATS subscription")
	}
}

// Healthy reports whether cross-node delivery through NATS is working.
func (nb *NATSBus) Healthy() bool {
	nb.mu.Lock()
	defer nb.mu.Unlock()
	return !nb.useFallback && nb.conn != nil && nb.conn.IsConnected()
}

// Close drains the NATS connection, flushing pending messages.
func (nb *NATSBus) Close() error {
	nb.logger.Info().Msg("closing NATS event bus")

	if nb.conn == nil {
		return nil
	}

	if err := nb.conn.Drain(); err != nil {
		nb.logger.Error().Err(err).Msg("failed to drain NATS connection")
		nb.conn.Close()
		return err
	}

	nb.logger.Info().Msg("NATS event bus closed")
	return nil
}

// subjectFor maps an event type to its NATS subject.
func subjectFor(eventType events.EventType) string {
	return "skuld.events." + string(eventType)
}

// natsMessage is the wire envelope published to NATS. MessageID identifies
// a publish for tracing across nodes.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}
