/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/mediaengine"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
	"github.com/friendsincode/grimnir_jukebox/internal/playlist"
)

type fakeEngine struct {
	mu      sync.Mutex
	loaded  []string
	calls   []string
	failFor map[string]error
	events  chan mediaengine.Event
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{failFor: make(map[string]error), events: make(chan mediaengine.Event, 8)}
}

func (e *fakeEngine) Load(ctx context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, "load")
	e.loaded = append(e.loaded, path)
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.failFor[path]
}

func (e *fakeEngine) record(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	return nil
}

func (e *fakeEngine) Resume(context.Context) error      { return e.record("resume") }
func (e *fakeEngine) Pause(context.Context) error       { return e.record("pause") }
func (e *fakeEngine) TogglePause(context.Context) error { return e.record("toggle") }
func (e *fakeEngine) Events() <-chan mediaengine.Event  { return e.events }

func (e *fakeEngine) loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.loaded)
}

type gatedEngine struct {
	*fakeEngine
	connected bool
}

func (e *gatedEngine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *gatedEngine) setConnected(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected = v
}

type published struct {
	eventType events.EventType
	payload   events.Payload
}

type fakeNotifier struct {
	mu     sync.Mutex
	states []models.PlaylistState
	events []published
}

func (n *fakeNotifier) NotifyPlaylist(state models.PlaylistState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
}

func (n *fakeNotifier) Publish(eventType events.EventType, payload events.Payload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{eventType, payload})
}

func (n *fakeNotifier) count(eventType events.EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, ev := range n.events {
		if ev.eventType == eventType {
			total++
		}
	}
	return total
}

func (n *fakeNotifier) notifications() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.states)
}

type fakeLog struct {
	mu      sync.Mutex
	plays   []string
	reports []string
	fail    error
}

func (l *fakeLog) AppendPlay(item models.Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.plays = append(l.plays, item.Submitter+" "+item.Path)
	return nil
}

func (l *fakeLog) AppendReport(item models.Item, submitter, comment string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.reports = append(l.reports, submitter+" - "+comment+" "+item.Path)
	return nil
}

type fakeHistory struct {
	plays   []string
	reports []string
}

func (h *fakeHistory) RecordPlay(_ context.Context, item models.Item) error {
	h.plays = append(h.plays, item.ID)
	return nil
}

func (h *fakeHistory) RecordReport(_ context.Context, item models.Item, submitter, _ string) error {
	h.reports = append(h.reports, submitter+":"+item.ID)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	c        *Controller
	store    *playlist.Store
	engine   *fakeEngine
	notifier *fakeNotifier
	log      *fakeLog
	history  *fakeHistory
	clock    *fakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    playlist.NewStore(),
		engine:   newFakeEngine(),
		notifier: &fakeNotifier{},
		log:      &fakeLog{},
		history:  &fakeHistory{},
		clock:    &fakeClock{now: time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)},
	}
	h.c = New(h.store, h.engine, h.notifier, h.log, zerolog.Nop(),
		WithClock(h.clock.Now),
		WithHistory(h.history),
		WithSuppressWindow(time.Second),
	)
	return h
}

func media(id string) models.Item {
	return models.Item{ID: id, Path: "/media/" + id + ".mp4"}
}

func (h *harness) playingID(t *testing.T) string {
	t.Helper()
	item, ok := h.store.NowPlaying()
	if !ok {
		return ""
	}
	return item.ID
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name  string
		from  State
		to    State
		valid bool
	}{
		{"idle to loading", StateIdle, StateLoading, true},
		{"idle to playing invalid", StateIdle, StatePlaying, false},
		{"idle to idle invalid", StateIdle, StateIdle, false},
		{"loading to playing", StateLoading, StatePlaying, true},
		{"loading to idle", StateLoading, StateIdle, true},
		{"playing to idle", StatePlaying, StateIdle, true},
		{"playing to loading invalid", StatePlaying, StateLoading, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidTransition(tt.from, tt.to); got != tt.valid {
				t.Errorf("isValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
		})
	}
}

func TestSubmitStartsPlaybackWhenIdle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if h.c.State() != StateIdle {
		t.Fatalf("initial state = %s", h.c.State())
	}

	h.c.Submit(ctx, media("a1"), "alice")

	if got := h.c.State(); got != StatePlaying {
		t.Fatalf("state = %s, want playing", got)
	}
	if got := h.playingID(t); got != "a1" {
		t.Fatalf("now playing %q, want a1", got)
	}
	if got, want := h.engine.calls, []string{"load", "resume"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("engine calls = %v, want %v", got, want)
	}
	if got, want := h.log.plays, []string{"alice /media/a1.mp4"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("play log = %v, want %v", got, want)
	}
	if got, want := h.history.plays, []string{"a1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("history = %v, want %v", got, want)
	}
	if h.notifier.count(events.EventNowPlaying) != 1 {
		t.Fatal("expected a now_playing event")
	}
}

func TestSubmitWhilePlayingOnlyQueues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("b1"), "bob")

	if got := h.engine.loads(); len(got) != 1 {
		t.Fatalf("engine loaded %v, want only the first item", got)
	}
	snap := h.c.Snapshot()
	if snap.NowPlaying == nil || snap.NowPlaying.ID != "a1" {
		t.Fatalf("now playing = %+v", snap.NowPlaying)
	}
	if len(snap.Pending) != 1 || snap.Pending[0].ID != "b1" {
		t.Fatalf("pending = %+v", snap.Pending)
	}
}

func TestCompletionAdvancesInFairOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("a2"), "alice")
	h.c.Submit(ctx, media("b1"), "bob")

	for i := 0; i < 3; i++ {
		h.clock.Advance(2 * time.Second)
		h.c.HandleCompletion(ctx)
	}

	want := []string{"/media/a1.mp4", "/media/b1.mp4", "/media/a2.mp4"}
	if got := h.engine.loads(); !reflect.DeepEqual(got, want) {
		t.Fatalf("play order = %v, want %v", got, want)
	}
	if got := h.c.State(); got != StateIdle {
		t.Fatalf("state = %s, want idle after queue drained", got)
	}
	if _, ok := h.store.NowPlaying(); ok {
		t.Fatal("nothing should be playing")
	}
}

func TestDuplicateCompletionIsSuppressed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("a2"), "alice")
	h.c.Submit(ctx, media("a3"), "alice")

	// a1 ends; a2 starts and arms the window.
	h.clock.Advance(5 * time.Second)
	h.c.HandleCompletion(ctx)
	if got := h.playingID(t); got != "a2" {
		t.Fatalf("now playing %q, want a2", got)
	}

	// The player repeats the end of a1 right after a2 started.
	h.clock.Advance(500 * time.Millisecond)
	h.c.HandleCompletion(ctx)
	if got := h.playingID(t); got != "a2" {
		t.Fatalf("duplicate completion skipped a2, now playing %q", got)
	}

	// Exactly one window after the start the event is genuine.
	h.clock.Advance(500 * time.Millisecond)
	h.c.HandleCompletion(ctx)
	if got := h.playingID(t); got != "a3" {
		t.Fatalf("now playing %q, want a3", got)
	}

	want := []string{"/media/a1.mp4", "/media/a2.mp4", "/media/a3.mp4"}
	if got := h.engine.loads(); !reflect.DeepEqual(got, want) {
		t.Fatalf("loads = %v, want %v", got, want)
	}
}

func TestCompletionRightAfterFirstStartIsSuppressed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("a2"), "alice")

	h.clock.Advance(999 * time.Millisecond)
	h.c.HandleCompletion(ctx)

	if got := h.playingID(t); got != "a1" {
		t.Fatalf("now playing %q, want a1", got)
	}
	if got := len(h.engine.loads()); got != 1 {
		t.Fatalf("engine loaded %d items, want 1", got)
	}
}

func TestCompletionOnEmptyQueueGoesIdle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	before := h.notifier.notifications()

	h.clock.Advance(10 * time.Second)
	h.c.HandleCompletion(ctx)

	if h.c.State() != StateIdle {
		t.Fatalf("state = %s, want idle", h.c.State())
	}
	if h.notifier.notifications() <= before {
		t.Fatal("collaborators should see the cleared now-playing")
	}
	last := h.notifier.states[len(h.notifier.states)-1]
	if last.NowPlaying != nil || len(last.Pending) != 0 {
		t.Fatalf("unexpected final state %+v", last)
	}

	// A later submission starts immediately.
	h.c.Submit(ctx, media("b1"), "bob")
	if got := h.playingID(t); got != "b1" {
		t.Fatalf("now playing %q, want b1", got)
	}
}

func TestEngineFailureSkipsToNextItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.engine.failFor["/media/bad.mp4"] = errors.New("unsupported format")

	h.store.Enqueue(media("good"), "bob")
	h.store.Enqueue(media("bad"), "alice")
	h.c.RequestNext(ctx)

	want := []string{"/media/bad.mp4", "/media/good.mp4"}
	if got := h.engine.loads(); !reflect.DeepEqual(got, want) {
		t.Fatalf("loads = %v, want %v", got, want)
	}
	if got := h.playingID(t); got != "good" {
		t.Fatalf("now playing %q, want good", got)
	}
	if h.c.State() != StatePlaying {
		t.Fatalf("state = %s, want playing", h.c.State())
	}
	if got := h.notifier.count(events.EventPlaybackFailed); got != 1 {
		t.Fatalf("playback.failed events = %d, want 1", got)
	}
	for _, item := range h.c.Snapshot().Pending {
		if item.ID == "bad" {
			t.Fatal("failed item must not be retried")
		}
	}
}

func TestEngineFailureWithEmptyQueueLeavesIdle(t *testing.T) {
	h := newHarness(t)
	h.engine.failFor["/media/bad.mp4"] = errors.New("no such file")

	h.c.Submit(context.Background(), media("bad"), "alice")

	if h.c.State() != StateIdle {
		t.Fatalf("state = %s, want idle", h.c.State())
	}
	if _, ok := h.store.NowPlaying(); ok {
		t.Fatal("failed item must not stay as now playing")
	}
}

func TestRequestNextIgnoredWhilePlaying(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("a2"), "alice")
	h.c.RequestNext(ctx)

	if got := len(h.engine.loads()); got != 1 {
		t.Fatalf("engine loaded %d items, want 1", got)
	}
}

func TestQueueMutationsNotify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("a2"), "alice")
	h.c.Submit(ctx, media("a3"), "alice")

	before := h.notifier.notifications()
	if !h.c.Remove("a2") {
		t.Fatal("Remove should report a match")
	}
	if h.c.Remove("missing") {
		t.Fatal("Remove of unknown id should report no match")
	}
	if n := h.c.Reorder("alice", []string{"a3"}); n != 1 {
		t.Fatalf("Reorder = %d, want 1", n)
	}
	h.c.Shuffle("alice")

	if got := h.notifier.notifications() - before; got != 4 {
		t.Fatalf("notifications = %d, want 4", got)
	}
}

func TestPauseControlsPassThrough(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.engine.calls = nil

	if err := h.c.TogglePause(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Resume(ctx); err != nil {
		t.Fatal(err)
	}

	if got, want := h.engine.calls, []string{"toggle", "pause", "resume"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("engine calls = %v, want %v", got, want)
	}
	if h.c.State() != StatePlaying {
		t.Fatalf("pausing must not change session state, got %s", h.c.State())
	}
}

func TestReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("a2"), "alice")
	before := h.c.Snapshot()

	if err := h.c.Report(ctx, media("a1"), "bob", "too loud"); err != nil {
		t.Fatalf("Report: %v", err)
	}

	if got, want := h.log.reports, []string{"bob - too loud /media/a1.mp4"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("reports = %v, want %v", got, want)
	}
	if got, want := h.history.reports, []string{"bob:a1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("history reports = %v, want %v", got, want)
	}
	if h.notifier.count(events.EventReport) != 1 {
		t.Fatal("expected report event")
	}
	if !reflect.DeepEqual(h.c.Snapshot(), before) {
		t.Fatal("report must not change the queue")
	}
}

func TestReportLogFailure(t *testing.T) {
	h := newHarness(t)
	h.log.fail = errors.New("disk full")

	if err := h.c.Report(context.Background(), media("a1"), "bob", "meh"); err == nil {
		t.Fatal("expected error")
	}
	if h.notifier.count(events.EventReport) != 0 {
		t.Fatal("failed report should not be announced")
	}
}

func TestPlayLogFailureDoesNotStopPlayback(t *testing.T) {
	h := newHarness(t)
	h.log.fail = errors.New("disk full")

	h.c.Submit(context.Background(), media("a1"), "alice")

	if got := h.playingID(t); got != "a1" {
		t.Fatalf("now playing %q, want a1", got)
	}
}

type mapLookup map[string]models.Item

func (m mapLookup) LookupPath(path string) (models.Item, bool) {
	item, ok := m[path]
	return item, ok
}

func TestLoadFromFile(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "2026-10-16.m3u")
	content := "#alice\n/media/a1.mp4\n#bob\n/media/b1.mp4\n#alice\n/media/unknown.mp4\n#alice\n/media/a2.mp4\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	contents := mapLookup{
		"/media/a1.mp4": media("a1"),
		"/media/a2.mp4": media("a2"),
		"/media/b1.mp4": media("b1"),
	}

	n, err := h.c.LoadFromFile(context.Background(), path, contents)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if n != 3 {
		t.Fatalf("loaded %d, want 3", n)
	}

	// bob joined the rotation after alice, so bob is served first.
	if got := h.playingID(t); got != "b1" {
		t.Fatalf("now playing %q, want b1", got)
	}
	snap := h.c.Snapshot()
	if len(snap.Pending) != 2 || snap.Pending[0].Submitter != "alice" {
		t.Fatalf("pending = %+v", snap.Pending)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	h := newHarness(t)
	if _, err := h.c.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "none.m3u"), mapLookup{}); err == nil {
		t.Fatal("expected error")
	}
	if h.c.State() != StateIdle {
		t.Fatal("failed load should leave the session idle")
	}
}

func TestRunConsumesEngineEvents(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("a2"), "alice")

	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()

	h.clock.Advance(3 * time.Second)
	h.engine.events <- mediaengine.Event{Type: mediaengine.EventEndOfFile}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.engine.loads()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("completion event was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestQueueHeldWhileEngineDisconnected(t *testing.T) {
	engine := &gatedEngine{fakeEngine: newFakeEngine()}
	notifier := &fakeNotifier{}
	log := &fakeLog{}
	c := New(playlist.NewStore(), engine, notifier, log, zerolog.Nop())
	ctx := context.Background()

	c.Submit(ctx, models.Item{ID: "a1", Path: "/media/a1.mp4"}, "alice")
	c.Submit(ctx, models.Item{ID: "b1", Path: "/media/b1.mp4"}, "bob")

	if got := engine.loads(); len(got) != 0 {
		t.Fatalf("nothing should load while disconnected, got %v", got)
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if got := len(c.Snapshot().Pending); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	engine.setConnected(true)
	c.RequestNext(ctx)

	if got := engine.loads(); !reflect.DeepEqual(got, []string{"/media/a1.mp4"}) {
		t.Errorf("loads = %v, want [/media/a1.mp4]", got)
	}
	if c.State() != StatePlaying {
		t.Errorf("state = %s, want playing", c.State())
	}
	if len(log.plays) != 1 {
		t.Errorf("plays logged = %v", log.plays)
	}
}

func TestCancelledCallerDoesNotDrainQueue(t *testing.T) {
	engine := &gatedEngine{fakeEngine: newFakeEngine()}
	log := &fakeLog{}
	c := New(playlist.NewStore(), engine, &fakeNotifier{}, log, zerolog.Nop())
	ctx := context.Background()

	c.Submit(ctx, models.Item{ID: "a1", Path: "/a1"}, "alice")
	c.Submit(ctx, models.Item{ID: "b1", Path: "/b1"}, "bob")
	c.Submit(ctx, models.Item{ID: "c1", Path: "/c1"}, "carol")
	engine.setConnected(true)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	c.Submit(cancelled, models.Item{ID: "d1", Path: "/d1"}, "dave")

	if got := engine.loads(); !reflect.DeepEqual(got, []string{"/d1"}) {
		t.Fatalf("loads = %v, want [/d1]", got)
	}
	if c.State() != StatePlaying {
		t.Fatalf("state = %s, want playing", c.State())
	}
	if got := len(c.Snapshot().Pending); got != 3 {
		t.Fatalf("pending = %d, want 3", got)
	}
	if len(log.plays) != 1 {
		t.Fatalf("plays logged = %v, want one", log.plays)
	}
}

func TestUnavailableEngineHoldsQueue(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"command timeout", fmt.Errorf("loadfile: %w", context.DeadlineExceeded)},
		{"player not running", fmt.Errorf("loadfile: %w", mediaengine.ErrNotRunning)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.engine.failFor["/media/a1.mp4"] = tt.err

			h.store.Enqueue(media("a1"), "alice")
			h.store.Enqueue(media("a2"), "alice")
			h.c.RequestNext(context.Background())

			if got := h.engine.loads(); !reflect.DeepEqual(got, []string{"/media/a1.mp4"}) {
				t.Fatalf("loads = %v, want only a1", got)
			}
			if h.c.State() != StateIdle {
				t.Fatalf("state = %s, want idle", h.c.State())
			}
			pending := h.c.Snapshot().Pending
			if len(pending) != 1 || pending[0].ID != "a2" {
				t.Fatalf("pending = %v, want [a2]", pending)
			}
			if got := h.notifier.count(events.EventPlaybackFailed); got != 1 {
				t.Fatalf("playback.failed events = %d, want 1", got)
			}
		})
	}
}

func TestEngineDisconnectDuringPlayback(t *testing.T) {
	engine := &gatedEngine{fakeEngine: newFakeEngine(), connected: true}
	notifier := &fakeNotifier{}
	c := New(playlist.NewStore(), engine, notifier, &fakeLog{}, zerolog.Nop())
	ctx := context.Background()

	c.Submit(ctx, models.Item{ID: "a1", Path: "/a1"}, "alice")

	engine.setConnected(false)
	c.HandleEngineDisconnect(ctx)

	if c.State() != StateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if c.Snapshot().NowPlaying != nil {
		t.Fatal("lost item must not stay as now playing")
	}
	if got := notifier.count(events.EventPlaybackFailed); got != 1 {
		t.Fatalf("playback.failed events = %d, want 1", got)
	}

	c.Submit(ctx, models.Item{ID: "b1", Path: "/b1"}, "bob")
	if got := engine.loads(); !reflect.DeepEqual(got, []string{"/a1"}) {
		t.Fatalf("loads while disconnected = %v", got)
	}

	engine.setConnected(true)
	c.RequestNext(ctx)

	if got := engine.loads(); !reflect.DeepEqual(got, []string{"/a1", "/b1"}) {
		t.Fatalf("loads = %v, want [/a1 /b1]", got)
	}
	if c.State() != StatePlaying {
		t.Fatalf("state = %s, want playing", c.State())
	}
}

func TestEngineDisconnectWhileIdle(t *testing.T) {
	engine := &gatedEngine{fakeEngine: newFakeEngine()}
	notifier := &fakeNotifier{}
	c := New(playlist.NewStore(), engine, notifier, &fakeLog{}, zerolog.Nop())

	c.HandleEngineDisconnect(context.Background())

	if c.State() != StateIdle {
		t.Fatalf("state = %s, want idle", c.State())
	}
	if got := notifier.count(events.EventPlaybackFailed); got != 0 {
		t.Fatalf("playback.failed events = %d, want 0", got)
	}
}

func TestLoadFailedEventSkipsItem(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.c.Submit(ctx, media("a1"), "alice")
	h.c.Submit(ctx, media("b1"), "bob")

	done := make(chan error, 1)
	go func() { done <- h.c.Run(ctx) }()

	h.engine.events <- mediaengine.Event{Type: mediaengine.EventLoadFailed, Detail: "loading failed"}

	deadline := time.Now().Add(2 * time.Second)
	for len(h.engine.loads()) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("load failure was not handled")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := h.playingID(t); got != "b1" {
		t.Fatalf("now playing %q, want b1", got)
	}
	if got := h.notifier.count(events.EventPlaybackFailed); got != 1 {
		t.Fatalf("playback.failed events = %d, want 1", got)
	}
}

func TestEngineFailureWithNothingPlaying(t *testing.T) {
	h := newHarness(t)

	h.c.HandleEngineFailure(context.Background(), mediaengine.ErrLoadFailed)

	if h.c.State() != StateIdle {
		t.Fatalf("state = %s, want idle", h.c.State())
	}
	if got := h.notifier.count(events.EventPlaybackFailed); got != 0 {
		t.Fatalf("playback.failed events = %d, want 0", got)
	}
}
