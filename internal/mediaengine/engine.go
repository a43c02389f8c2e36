/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package mediaengine drives the external player that renders queue items.
package mediaengine

import (
	"context"
	"errors"
)

var (
	// ErrNotRunning is returned by commands issued while no player is connected.
	ErrNotRunning = errors.New("media engine not running")

	// ErrLoadFailed wraps a player's report that it could not play an item it
	// had accepted.
	ErrLoadFailed = errors.New("media engine could not play item")
)

// EventType identifies an engine notification.
type EventType string

const (
	// EventEndOfFile reports that the loaded item reached its end. The player
	// may report the same end more than once.
	EventEndOfFile EventType = "end-of-file"

	// EventLoadFailed reports that the player gave up on the loaded item,
	// for example because the file is missing or unreadable.
	EventLoadFailed EventType = "load-failed"
)

// Event is a notification from the player.
type Event struct {
	Type EventType
	// Detail carries the player's error text for EventLoadFailed.
	Detail string
}

// Engine is the black-box player the playback controller commands.
type Engine interface {
	Load(ctx context.Context, path string) error
	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	TogglePause(ctx context.Context) error
	Events() <-chan Event
}
