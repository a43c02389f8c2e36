/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history mirrors play and report log records into a database so
// they can be queried over the API.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store persists PlayRecords with gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore wraps an already migrated database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RecordPlay stores a play record for item.
func (s *Store) RecordPlay(ctx context.Context, item models.Item) error {
	return s.create(ctx, &models.PlayRecord{
		Kind:      models.PlayRecordPlay,
		ItemID:    item.ID,
		Path:      item.Path,
		Submitter: item.Submitter,
	})
}

// RecordReport stores a report record for item.
func (s *Store) RecordReport(ctx context.Context, item models.Item, submitter, comment string) error {
	return s.create(ctx, &models.PlayRecord{
		Kind:      models.PlayRecordReport,
		ItemID:    item.ID,
		Path:      item.Path,
		Submitter: submitter,
		Comment:   comment,
	})
}

func (s *Store) create(ctx context.Context, rec *models.PlayRecord) error {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert %s record: %w", rec.Kind, err)
	}
	return nil
}

// Query filters Recent.
type Query struct {
	Kind      models.PlayRecordKind
	Submitter string
	Since     time.Time
	Limit     int
}

// Recent returns records matching q, newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]models.PlayRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	tx := s.db.WithContext(ctx).Model(&models.PlayRecord{})
	if q.Kind != "" {
		tx = tx.Where("kind = ?", q.Kind)
	}
	if q.Submitter != "" {
		tx = tx.Where("submitter = ?", q.Submitter)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("created_at >= ?", q.Since.UTC())
	}

	var records []models.PlayRecord
	if err := tx.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return records, nil
}

// SubmitterCount is the number of plays attributed to one submitter.
type SubmitterCount struct {
	Submitter string `json:"username"`
	Plays     int64  `json:"plays"`
}

// PlaysBySubmitter counts plays per submitter since the given time, most
// active first.
func (s *Store) PlaysBySubmitter(ctx context.Context, since time.Time) ([]SubmitterCount, error) {
	var counts []SubmitterCount
	err := s.db.WithContext(ctx).
		Model(&models.PlayRecord{}).
		Select("submitter, COUNT(*) AS plays").
		Where("kind = ? AND created_at >= ?", models.PlayRecordPlay, since.UTC()).
		Group("submitter").
		Order("plays DESC, submitter ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count plays: %w", err)
	}
	return counts, nil
}
