/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
)

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "grimnir-jukebox",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSRemote publishes events on NATS subjects jukebox.events.<type>.
type NATSRemote struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSRemote connects to the NATS server.
func NewNATSRemote(cfg NATSConfig, logger zerolog.Logger) (*NATSRemote, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats event fan-out connected")
	return &NATSRemote{conn: nc, logger: logger}, nil
}

// Name identifies the transport in logs and metrics.
func (n *NATSRemote) Name() string { return "nats" }

// Publish sends data on the event type's subject.
func (n *NATSRemote) Publish(_ context.Context, data []byte, eventType events.EventType) error {
	if err := n.conn.Publish(subjectFor(eventType), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Relay subscribes to every jukebox subject and republishes other nodes'
// messages on bus.
func (n *NATSRemote) Relay(ctx context.Context, nodeID string, bus *events.Bus) error {
	sub, err := n.conn.Subscribe(subjectPrefix+">", func(msg *nats.Msg) {
		if err := deliver(msg.Data, nodeID, bus); err != nil {
			n.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to relay nats message")
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

// Close drains and closes the connection.
func (n *NATSRemote) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
