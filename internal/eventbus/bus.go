/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/events"
)

// Bus is the pub/sub surface shared by all backends. The in-process bus
// serves single-node deployments; the Redis and NATS backends fan events
// out to every node while still delivering locally first.
type Bus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Publish(eventType events.EventType, payload events.Payload)
	Unsubscribe(eventType events.EventType, sub events.Subscriber)

	// Healthy reports whether remote fan-out is working. The in-memory
	// bus is always healthy; distributed backends report false while
	// running on their local fallback.
	Healthy() bool
	Close() error
}

// Config selects and configures an event bus backend.
type Config struct {
	// Backend is one of "memory", "redis", or "nats". Empty means memory.
	Backend string
	Redis   RedisConfig
	NATS    NATSConfig
}

// New builds the configured bus. nodeID identifies this process so
// distributed backends can drop their own echoes.
func New(cfg Config, nodeID string, logger zerolog.Logger) (Bus, error) {
	switch cfg.Backend {
	case "", "memory":
		logger.Info().Msg("using in-memory event bus")
		return memoryBus{events.NewBus()}, nil
	case "redis":
		return NewRedisBus(cfg.Redis, nodeID, logger)
	case "nats":
		return NewNATSBus(cfg.NATS, nodeID, logger)
	default:
		return nil, fmt.Errorf("unknown event bus backend %q", cfg.Backend)
	}
}

// NodeID derives a process identity for echo suppression: hostname plus a
// short random suffix so two instances on one host stay distinct.
func NodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "skuld"
	}
	return host + "-" + uuid.NewString()[:8]
}

// memoryBus adapts the in-process bus to the Bus interface.
type memoryBus struct {
	*events.Bus
}

func (memoryBus) Healthy() bool { return true }
func (memoryBus) Close() error  { return nil }
