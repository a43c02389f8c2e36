/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// Item is a playable piece of content queued by a submitter.
type Item struct {
	ID        string         `json:"id"`
	Path      string         `json:"path"`
	Submitter string         `json:"username,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// WithSubmitter returns a copy of the item attributed to submitter.
// Metadata is shared, it is never mutated after creation.
func (i Item) WithSubmitter(submitter string) Item {
	i.Submitter = submitter
	return i
}

// MetadataString retrieves string metadata, empty when absent.
func (i Item) MetadataString(key string) string {
	if i.Metadata == nil {
		return ""
	}
	if val, ok := i.Metadata[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	if val, ok := i.Metadata[strings.ToLower(key)]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// PlaylistState is the read-only view handed to collaborators.
type PlaylistState struct {
	NowPlaying *Item  `json:"playing_content"`
	Pending    []Item `json:"playlist_contents"`
}

// PlayRecordKind distinguishes play log lines from report log lines.
type PlayRecordKind string

const (
	PlayRecordPlay   PlayRecordKind = "play"
	PlayRecordReport PlayRecordKind = "report"
)

// PlayRecord mirrors a play or report log line into the history database.
type PlayRecord struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Kind      PlayRecordKind `gorm:"type:varchar(16);index" json:"kind"`
	ItemID    string         `gorm:"type:varchar(64);index" json:"item_id"`
	Path      string         `gorm:"type:text" json:"path"`
	Submitter string         `gorm:"index" json:"username"`
	Comment   string         `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

// TableName keeps the history table name stable across renames.
func (PlayRecord) TableName() string {
	return "play_records"
}
