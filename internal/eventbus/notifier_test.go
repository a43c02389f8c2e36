/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

type fakeRemote struct {
	mu        sync.Mutex
	published []*message
	fail      bool
	closed    bool
	sent      chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{sent: make(chan struct{}, 16)}
}

func (f *fakeRemote) Name() string { return "fake" }

func (f *fakeRemote) Publish(_ context.Context, data []byte, _ events.EventType) error {
	defer func() { f.sent <- struct{}{} }()
	if f.fail {
		return errors.New("boom")
	}
	msg, err := unmarshalMessage(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.published = append(f.published, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeRemote) Relay(ctx context.Context, _ string, _ *events.Bus) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeRemote) Close() error {
	f.closed = true
	return nil
}

func TestNotifyPlaylistPublishesLocally(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventPlaylist)
	n := NewNotifier(bus, "node-a", zerolog.Nop())

	playing := models.Item{ID: "a", Path: "/a.mp4", Submitter: "alice"}
	n.NotifyPlaylist(models.PlaylistState{NowPlaying: &playing, Pending: []models.Item{}})

	select {
	case payload := <-sub:
		got, ok := payload["playing_content"].(*models.Item)
		if !ok || got.ID != "a" {
			t.Fatalf("unexpected playing_content %v", payload["playing_content"])
		}
		if pending, ok := payload["playlist_contents"].([]models.Item); !ok || len(pending) != 0 {
			t.Fatalf("unexpected playlist_contents %v", payload["playlist_contents"])
		}
	default:
		t.Fatal("expected playlist event on local bus")
	}
}

func TestNotifierFansOutToRemotes(t *testing.T) {
	remote := newFakeRemote()
	n := NewNotifier(events.NewBus(), "node-a", zerolog.Nop(), remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Publish(events.EventReport, events.Payload{"comment": "too loud"})

	select {
	case <-remote.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("remote never received the event")
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	if len(remote.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(remote.published))
	}
	msg := remote.published[0]
	if msg.EventType != events.EventReport || msg.NodeID != "node-a" || msg.MessageID == "" {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	if msg.Payload["comment"] != "too loud" {
		t.Fatalf("unexpected payload %v", msg.Payload)
	}
}

func TestNotifierSurvivesRemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.fail = true
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventNowPlaying)
	n := NewNotifier(bus, "node-a", zerolog.Nop(), remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Publish(events.EventNowPlaying, events.Payload{"id": "a"})

	select {
	case <-remote.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("remote publish was not attempted")
	}
	if len(sub) != 1 {
		t.Fatal("local subscribers must still get the event")
	}
}

func TestDeliverSkipsOwnMessages(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(events.EventPlaylist)

	own, err := marshalMessage(events.EventPlaylist, events.Payload{"n": 1}, "node-a")
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := marshalMessage(events.EventPlaylist, events.Payload{"n": 2}, "node-b")
	if err != nil {
		t.Fatal(err)
	}

	if err := deliver(own, "node-a", bus); err != nil {
		t.Fatal(err)
	}
	if err := deliver(foreign, "node-a", bus); err != nil {
		t.Fatal(err)
	}

	if len(sub) != 1 {
		t.Fatalf("expected exactly one relayed event, got %d", len(sub))
	}
	payload := <-sub
	if payload["n"] != float64(2) {
		t.Fatalf("relayed the wrong message: %v", payload)
	}

	if err := deliver([]byte("not json"), "node-a", bus); err == nil {
		t.Fatal("expected error for malformed message")
	}
}

func TestNotifierClose(t *testing.T) {
	remote := newFakeRemote()
	n := NewNotifier(events.NewBus(), "node-a", zerolog.Nop(), remote)
	if err := n.Close(); err != nil {
		t.Fatal(err)
	}
	if !remote.closed {
		t.Fatal("remote not closed")
	}
}

func TestNewRedisRemoteUnreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond

	if _, err := NewRedisRemote(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestSubjectFor(t *testing.T) {
	if got := subjectFor(events.EventPlaybackFailed); got != "jukebox.events.playback.failed" {
		t.Fatalf("subjectFor = %q", got)
	}
}
