/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlog keeps the append-only, day-scoped m3u logs of everything
// played and everything reported.
package playlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

const (
	dayLayout     = "2006-01-02"
	fileExt       = ".m3u"
	reportPrefix  = "report-"
	maxNameProbes = 1000
)

// ErrNoFreeName is returned when every candidate play log name is taken.
var ErrNoFreeName = errors.New("no free play log name")

// Log appends play and report records for one calendar day. It is safe for
// concurrent use.
type Log struct {
	dir        string
	day        string
	playPath   string
	reportPath string

	mu   sync.Mutex
	play *os.File
}

// Open prepares the play log for day under dir. The directory is created when
// missing. The first free name among YYYY-MM-DD.m3u, YYYY-MM-DD-1.m3u, ... is
// reserved by creating the file, so a second start on the same day never
// appends to an earlier run's log.
//
// The day is fixed for the lifetime of the Log; there is no midnight rollover.
func Open(dir string, day time.Time) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create playlist directory: %w", err)
	}

	dayName := day.Format(dayLayout)
	for attempt := 0; attempt < maxNameProbes; attempt++ {
		name := dayName
		if attempt > 0 {
			name = fmt.Sprintf("%s-%d", dayName, attempt)
		}
		path := filepath.Join(dir, name+fileExt)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create play log %s: %w", path, err)
		}

		return &Log{
			dir:        dir,
			day:        dayName,
			playPath:   path,
			reportPath: filepath.Join(dir, reportPrefix+dayName+fileExt),
			play:       f,
		}, nil
	}

	return nil, fmt.Errorf("%w for %s in %s after %d attempts", ErrNoFreeName, dayName, dir, maxNameProbes)
}

// PlayPath returns the file play records go to.
func (l *Log) PlayPath() string {
	return l.playPath
}

// ReportPath returns the file report records go to.
func (l *Log) ReportPath() string {
	return l.reportPath
}

// Dir returns the playlist storage directory.
func (l *Log) Dir() string {
	return l.dir
}

// AppendPlay records that item started playing. The comment line carries the
// submitter name. The write is synced before returning.
func (l *Log) AppendPlay(item models.Item) error {
	rec := Record{Comment: item.Submitter, Locator: item.Path}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.play == nil {
		return fmt.Errorf("append play record: %w", os.ErrClosed)
	}
	if _, err := l.play.WriteString(rec.Encode()); err != nil {
		return fmt.Errorf("append play record: %w", err)
	}
	if err := l.play.Sync(); err != nil {
		return fmt.Errorf("sync play log: %w", err)
	}
	return nil
}

// AppendReport records a flagged item in the day's report log. It has no
// effect on scheduling.
func (l *Log) AppendReport(item models.Item, submitter, comment string) error {
	rec := Record{Comment: ReportComment(submitter, comment), Locator: item.Path}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.reportPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open report log: %w", err)
	}
	if _, err := f.WriteString(rec.Encode()); err != nil {
		f.Close()
		return fmt.Errorf("append report record: %w", err)
	}
	return f.Close()
}

// Close releases the play log file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.play == nil {
		return nil
	}
	err := l.play.Close()
	l.play = nil
	return err
}
