/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout runs the playback session: it decides what plays next,
// records it, commands the media engine and reacts to end-of-content.
package playout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/mediaengine"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
	"github.com/friendsincode/grimnir_jukebox/internal/playlist"
	"github.com/friendsincode/grimnir_jukebox/internal/playlog"
	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

var (
	// ErrInvalidTransition is returned for a state change the session does not allow.
	ErrInvalidTransition = errors.New("invalid playback state transition")

	// ErrEngineLost is recorded for the item that was playing when the media
	// engine went away.
	ErrEngineLost = errors.New("media engine connection lost during playback")
)

// State of the playback session.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StatePlaying State = "playing"
)

const (
	DefaultSuppressWindow = time.Second
	DefaultCommandTimeout = 5 * time.Second
)

// Notifier receives state changes for collaborators.
type Notifier interface {
	NotifyPlaylist(state models.PlaylistState)
	Publish(eventType events.EventType, payload events.Payload)
}

// PlayLog is the durable record of plays and reports.
type PlayLog interface {
	AppendPlay(item models.Item) error
	AppendReport(item models.Item, submitter, comment string) error
}

// connectivity is implemented by engines that can report whether they are
// able to accept commands.
type connectivity interface {
	Connected() bool
}

// History mirrors plays and reports into a queryable store.
type History interface {
	RecordPlay(ctx context.Context, item models.Item) error
	RecordReport(ctx context.Context, item models.Item, submitter, comment string) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithSuppressWindow sets how long after a start end-of-content events are
// ignored.
func WithSuppressWindow(d time.Duration) Option {
	return func(c *Controller) { c.window = d }
}

// WithCommandTimeout bounds each media engine command.
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Controller) { c.commandTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithHistory mirrors plays and reports into h.
func WithHistory(h History) Option {
	return func(c *Controller) { c.history = h }
}

// Controller owns the playback session. Every queue mutation, scheduling
// decision and completion event runs under one mutex.
type Controller struct {
	store    *playlist.Store
	engine   mediaengine.Engine
	notifier Notifier
	playLog  PlayLog
	history  History
	logger   zerolog.Logger

	window         time.Duration
	commandTimeout time.Duration
	now            func() time.Time

	mu      sync.Mutex
	state   State
	armedAt time.Time
}

// New creates an idle controller.
func New(store *playlist.Store, engine mediaengine.Engine, notifier Notifier, playLog PlayLog, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:          store,
		engine:         engine,
		notifier:       notifier,
		playLog:        playLog,
		logger:         logger.With().Str("component", "playout").Logger(),
		window:         DefaultSuppressWindow,
		commandTimeout: DefaultCommandTimeout,
		now:            time.Now,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the playlist state.
func (c *Controller) Snapshot() models.PlaylistState {
	return c.store.Snapshot()
}

// Run consumes media engine events until ctx is cancelled or the event
// channel closes.
func (c *Controller) Run(ctx context.Context) error {
	evs := c.engine.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-evs:
			if !ok {
				return nil
			}
			switch ev.Type {
			case mediaengine.EventEndOfFile:
				c.HandleCompletion(ctx)
			case mediaengine.EventLoadFailed:
				c.HandleEngineFailure(ctx, fmt.Errorf("%w: %s", mediaengine.ErrLoadFailed, ev.Detail))
			}
		}
	}
}

// RequestNext starts the next item unless something is already playing. Call
// it when the media engine (re)connects to drain a held queue.
func (c *Controller) RequestNext(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestNextLocked(ctx)
}

// HandleCompletion reacts to end-of-content. Events arriving within the
// suppression window of the last start are discarded.
func (c *Controller) HandleCompletion(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.armedAt.IsZero() && c.now().Sub(c.armedAt) < c.window {
		telemetry.CompletionsSuppressedTotal.Inc()
		c.logger.Debug().Msg("end-of-content inside suppression window, ignoring")
		return
	}

	if finished, ok := c.store.NowPlaying(); ok {
		c.logger.Info().Str("item_id", finished.ID).Str("path", finished.Path).Msg("playback finished")
	}
	c.store.ClearNowPlaying()
	if c.state == StatePlaying {
		c.transitionLocked(StateIdle)
	}
	c.requestNextLocked(ctx)
}

// HandleEngineFailure reacts to the media engine giving up on the current item
// after it was accepted, such as a file it could not open. The item is
// reported and skipped like a failed load.
func (c *Controller) HandleEngineFailure(ctx context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.store.NowPlaying()
	if !ok {
		c.logger.Debug().Err(err).Msg("engine failure with nothing playing, ignoring")
		return
	}
	c.failLocked(item, err)
	c.requestNextLocked(ctx)
}

// HandleEngineDisconnect fails the item that was playing when the media
// engine connection dropped. The queue is held until the engine is back and
// RequestNext runs again.
func (c *Controller) HandleEngineDisconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if item, ok := c.store.NowPlaying(); ok {
		c.failLocked(item, ErrEngineLost)
	}
	c.requestNextLocked(ctx)
}

// Submit enqueues item for submitter and starts playback when idle.
func (c *Controller) Submit(ctx context.Context, item models.Item, submitter string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Enqueue(item, submitter)
	c.logger.Info().Str("item_id", item.ID).Str("submitter", submitter).Msg("item submitted")
	c.notifyLocked()
	c.requestNextLocked(ctx)
}

// Remove drops every pending item with id. Returns whether anything matched.
func (c *Controller) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.store.Remove(id)
	c.notifyLocked()
	return removed
}

// Reorder replaces submitter's pending order with ids. Returns how many items
// the submitter has pending afterwards.
func (c *Controller) Reorder(submitter string, ids []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.store.Reorder(submitter, ids)
	c.notifyLocked()
	return n
}

// Shuffle permutes submitter's pending items within their own slots.
func (c *Controller) Shuffle(submitter string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Shuffle(submitter)
	c.notifyLocked()
}

// Pause pauses the media engine.
func (c *Controller) Pause(ctx context.Context) error {
	return c.engineCommand(ctx, c.engine.Pause)
}

// Resume resumes the media engine.
func (c *Controller) Resume(ctx context.Context) error {
	return c.engineCommand(ctx, c.engine.Resume)
}

// TogglePause flips the media engine's pause state.
func (c *Controller) TogglePause(ctx context.Context) error {
	return c.engineCommand(ctx, c.engine.TogglePause)
}

func (c *Controller) engineCommand(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()
	return fn(ctx)
}

// Report flags item in the report log. Scheduling is unaffected.
func (c *Controller) Report(ctx context.Context, item models.Item, submitter, comment string) error {
	if err := c.playLog.AppendReport(item, submitter, comment); err != nil {
		telemetry.PlayLogErrorsTotal.Inc()
		return fmt.Errorf("append report: %w", err)
	}
	telemetry.ReportsTotal.Inc()

	if c.history != nil {
		if err := c.history.RecordReport(ctx, item, submitter, comment); err != nil {
			c.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to mirror report to history")
		}
	}

	c.notifier.Publish(events.EventReport, events.Payload{
		"content_id": item.ID,
		"path":       item.Path,
		"username":   submitter,
		"comment":    comment,
	})
	c.logger.Info().Str("item_id", item.ID).Str("submitter", submitter).Msg("item reported")
	return nil
}

// LoadFromFile rebuilds the pending queue from a play log, then starts
// playback when idle. Returns the number of items enqueued.
func (c *Controller) LoadFromFile(ctx context.Context, path string, contents playlog.ContentLookup) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := playlog.Load(path, contents, c.store)
	if err != nil {
		return 0, err
	}
	c.logger.Info().Str("path", path).Int("items", n).Msg("play log reloaded")

	c.notifyLocked()
	c.requestNextLocked(ctx)
	return n, nil
}

func (c *Controller) requestNextLocked(ctx context.Context) {
	if _, playing := c.store.NowPlaying(); playing {
		return
	}

	// Engine commands are bounded by commandTimeout, not by the caller.
	ctx = context.WithoutCancel(ctx)

	for {
		if ce, ok := c.engine.(connectivity); ok && !ce.Connected() {
			c.logger.Debug().Int("pending", c.store.Len()).Msg("media engine not connected, holding queue")
			return
		}

		item, ok := c.store.Next()
		c.notifyLocked()
		if !ok {
			return
		}
		err := c.startLocked(ctx, item)
		if err == nil {
			return
		}
		if engineUnavailable(err) {
			c.logger.Warn().Err(err).Int("pending", c.store.Len()).Msg("media engine unavailable, holding queue")
			return
		}
	}
}

// engineUnavailable reports errors that say nothing about the item itself.
func engineUnavailable(err error) bool {
	return errors.Is(err, mediaengine.ErrNotRunning) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// startLocked records item and hands it to the engine. On engine failure the
// session is back to idle with nothing playing.
func (c *Controller) startLocked(ctx context.Context, item models.Item) error {
	ctx, span := telemetry.StartSpan(ctx, "playout", "playout.start")
	defer span.End()
	span.SetAttributes(telemetry.ItemAttributes(item.ID, item.Path, item.Submitter)...)

	c.transitionLocked(StateLoading)

	if err := c.playLog.AppendPlay(item); err != nil {
		telemetry.PlayLogErrorsTotal.Inc()
		c.logger.Error().Err(err).Str("item_id", item.ID).Msg("failed to append play record")
	}
	if c.history != nil {
		if err := c.history.RecordPlay(ctx, item); err != nil {
			c.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to mirror play to history")
		}
	}

	c.armedAt = c.now()

	cmdCtx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	err := c.engine.Load(cmdCtx, item.Path)
	if err == nil {
		err = c.engine.Resume(cmdCtx)
	}
	cancel()

	if err != nil {
		telemetry.RecordError(span, err)
		c.failLocked(item, err)
		return err
	}

	c.transitionLocked(StatePlaying)
	telemetry.PlaysTotal.Inc()
	c.logger.Info().
		Str("item_id", item.ID).
		Str("path", item.Path).
		Str("submitter", item.Submitter).
		Msg("now playing")
	c.notifier.Publish(events.EventNowPlaying, events.Payload{
		"content_id": item.ID,
		"path":       item.Path,
		"username":   item.Submitter,
	})
	return nil
}

func (c *Controller) failLocked(item models.Item, err error) {
	telemetry.PlaybackFailuresTotal.Inc()
	c.logger.Error().Err(err).
		Str("item_id", item.ID).
		Str("path", item.Path).
		Str("submitter", item.Submitter).
		Msg("media engine failed to play item, skipping")

	c.notifier.Publish(events.EventPlaybackFailed, events.Payload{
		"content_id": item.ID,
		"path":       item.Path,
		"username":   item.Submitter,
		"error":      err.Error(),
	})

	c.store.ClearNowPlaying()
	c.transitionLocked(StateIdle)
}

func (c *Controller) notifyLocked() {
	state := c.store.Snapshot()
	telemetry.QueuePending.Set(float64(len(state.Pending)))
	telemetry.QueueSubmitters.Set(float64(len(c.store.Submitters())))
	c.notifier.NotifyPlaylist(state)
}

func (c *Controller) transitionLocked(to State) {
	if !isValidTransition(c.state, to) {
		c.logger.Error().
			Err(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.state, to)).
			Msg("unexpected state change")
	}
	c.logger.Debug().Str("from", string(c.state)).Str("to", string(to)).Msg("state transition")
	c.state = to
}

func isValidTransition(from, to State) bool {
	validTransitions := map[State][]State{
		StateIdle:    {StateLoading},
		StateLoading: {StatePlaying, StateIdle},
		StatePlaying: {StateIdle},
	}

	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
