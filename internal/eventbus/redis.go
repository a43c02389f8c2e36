/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
)

// errCircuitOpen is returned while Redis is considered down.
var errCircuitOpen = errors.New("redis circuit open")

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Circuit breaker
	MaxFailures   int
	CheckInterval time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		PoolSize:      10,
		MinIdleConns:  2,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxFailures:   5,
		CheckInterval: 30 * time.Second,
	}
}

// RedisRemote publishes events to Redis pub/sub. After MaxFailures
// consecutive publish errors it stops trying until CheckInterval has passed
// and a ping succeeds.
type RedisRemote struct {
	client *redis.Client
	cfg    RedisConfig
	logger zerolog.Logger

	mu        sync.Mutex
	open      bool
	failCount int
	lastCheck time.Time
}

// NewRedisRemote connects to Redis and verifies the connection.
func NewRedisRemote(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisRemote, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultRedisConfig().MaxFailures
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultRedisConfig().CheckInterval
	}

	logger.Info().Str("addr", cfg.Addr).Msg("redis event fan-out connected")
	return &RedisRemote{client: client, cfg: cfg, logger: logger}, nil
}

// Name identifies the transport in logs and metrics.
func (r *RedisRemote) Name() string { return "redis" }

// Publish sends data on the event type's channel.
func (r *RedisRemote) Publish(ctx context.Context, data []byte, eventType events.EventType) error {
	if err := r.checkCircuit(ctx); err != nil {
		return err
	}

	if err := r.client.Publish(ctx, subjectFor(eventType), data).Err(); err != nil {
		r.recordFailure()
		return fmt.Errorf("redis publish: %w", err)
	}

	r.mu.Lock()
	r.failCount = 0
	r.mu.Unlock()
	return nil
}

func (r *RedisRemote) checkCircuit(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return nil
	}
	if time.Since(r.lastCheck) < r.cfg.CheckInterval {
		return errCircuitOpen
	}
	r.lastCheck = time.Now()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("%w: %v", errCircuitOpen, err)
	}

	r.open = false
	r.failCount = 0
	r.logger.Info().Msg("reconnected to redis")
	return nil
}

func (r *RedisRemote) recordFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failCount++
	if r.failCount >= r.cfg.MaxFailures && !r.open {
		r.open = true
		r.lastCheck = time.Now()
		r.logger.Warn().Int("fail_count", r.failCount).Msg("redis failure threshold reached, pausing fan-out")
	}
}

// Relay subscribes to every jukebox channel and republishes other nodes'
// messages on bus.
func (r *RedisRemote) Relay(ctx context.Context, nodeID string, bus *events.Bus) error {
	pubsub := r.client.PSubscribe(ctx, subjectPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			if err := deliver([]byte(msg.Payload), nodeID, bus); err != nil {
				r.logger.Error().Err(err).Str("channel", msg.Channel).Msg("failed to relay redis message")
			}
		}
	}
}

// Close closes the Redis client.
func (r *RedisRemote) Close() error {
	return r.client.Close()
}
