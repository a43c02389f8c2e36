/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

const (
	outboundBuffer = 256
	publishTimeout = 2 * time.Second
)

type outbound struct {
	eventType events.EventType
	data      []byte
}

// Notifier publishes to the local bus synchronously and queues the same
// events for remote transports, which Run drains. Publishing never blocks on
// the network.
type Notifier struct {
	bus     *events.Bus
	nodeID  string
	remotes []Remote
	logger  zerolog.Logger
	out     chan outbound
}

// NewNotifier creates a notifier. With no remotes it only feeds bus.
func NewNotifier(bus *events.Bus, nodeID string, logger zerolog.Logger, remotes ...Remote) *Notifier {
	return &Notifier{
		bus:     bus,
		nodeID:  nodeID,
		remotes: remotes,
		logger:  logger.With().Str("component", "notifier").Logger(),
		out:     make(chan outbound, outboundBuffer),
	}
}

// PlaylistPayload renders the state the way clients receive it.
func PlaylistPayload(state models.PlaylistState) events.Payload {
	return events.Payload{
		"playing_content":   state.NowPlaying,
		"playlist_contents": state.Pending,
	}
}

// NotifyPlaylist publishes the full playlist state.
func (n *Notifier) NotifyPlaylist(state models.PlaylistState) {
	n.Publish(events.EventPlaylist, PlaylistPayload(state))
}

// Publish sends payload to local subscribers and queues it for remotes.
func (n *Notifier) Publish(eventType events.EventType, payload events.Payload) {
	n.bus.Publish(eventType, payload)

	if len(n.remotes) == 0 {
		return
	}

	data, err := marshalMessage(eventType, payload, n.nodeID)
	if err != nil {
		n.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to encode event")
		return
	}

	select {
	case n.out <- outbound{eventType: eventType, data: data}:
	default:
		n.logger.Warn().Str("event_type", string(eventType)).Msg("remote fan-out queue full, dropping event")
	}
}

// Run drains queued events to every remote until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-n.out:
			n.send(ctx, msg)
		}
	}
}

func (n *Notifier) send(ctx context.Context, msg outbound) {
	for _, remote := range n.remotes {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := remote.Publish(pubCtx, msg.data, msg.eventType)
		cancel()
		if err != nil {
			telemetry.EventBusPublishErrors.WithLabelValues(remote.Name()).Inc()
			n.logger.Error().Err(err).
				Str("backend", remote.Name()).
				Str("event_type", string(msg.eventType)).
				Msg("remote publish failed")
		}
	}
}

// Relay feeds messages from other nodes into the local bus until ctx is
// cancelled.
func (n *Notifier) Relay(ctx context.Context) {
	var wg sync.WaitGroup
	for _, remote := range n.remotes {
		wg.Add(1)
		go func(r Remote) {
			defer wg.Done()
			if err := r.Relay(ctx, n.nodeID, n.bus); err != nil && !errors.Is(err, context.Canceled) {
				n.logger.Error().Err(err).Str("backend", r.Name()).Msg("event relay stopped")
			}
		}(remote)
	}
	wg.Wait()
}

// Close closes every remote transport.
func (n *Notifier) Close() error {
	var errs []error
	for _, remote := range n.remotes {
		if err := remote.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
