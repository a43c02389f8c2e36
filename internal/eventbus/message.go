/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus fans jukebox events out to other processes over Redis
// pub/sub or NATS, next to the in-process events.Bus.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
)

// subjectPrefix namespaces jukebox events on the remote transport.
const subjectPrefix = "jukebox.events."

// Remote is a cross-process event transport.
type Remote interface {
	Name() string
	Publish(ctx context.Context, data []byte, eventType events.EventType) error
	// Relay delivers messages published by other nodes into bus until ctx
	// is cancelled.
	Relay(ctx context.Context, nodeID string, bus *events.Bus) error
	Close() error
}

// message is the envelope published to remote transports.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

func subjectFor(eventType events.EventType) string {
	return subjectPrefix + string(eventType)
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    nodeID,
		MessageID: uuid.NewString(),
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal event message: %w", err)
	}
	return &msg, nil
}

// deliver hands a remote message to the local bus unless it came from us.
func deliver(data []byte, nodeID string, bus *events.Bus) error {
	msg, err := unmarshalMessage(data)
	if err != nil {
		return err
	}
	if msg.NodeID == nodeID {
		return nil
	}
	bus.Publish(msg.EventType, msg.Payload)
	return nil
}

// DefaultNodeID returns hostname plus a random suffix.
func DefaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "jukebox"
	}
	return host + "-" + uuid.NewString()[:8]
}
