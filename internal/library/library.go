/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

const defaultDebounce = 2 * time.Second

// Library ties a Scanner to a Registry and keeps the registry fresh.
type Library struct {
	*Registry

	scanner   *Scanner
	manifest  string
	debounce  time.Duration
	logger    zerolog.Logger
	onRefresh func(count int)
}

// Config configures a Library.
type Config struct {
	MediaRoot string
	// Manifest, when set, is loaded instead of scanning MediaRoot at startup.
	Manifest string
	Workers  int
	Probe    bool
}

// New creates a library. Call Refresh to populate it.
func New(cfg Config, logger zerolog.Logger) *Library {
	logger = logger.With().Str("component", "library").Logger()
	var dirs []string
	if cfg.MediaRoot != "" {
		dirs = []string{cfg.MediaRoot}
	}
	return &Library{
		Registry: NewRegistry(),
		scanner: &Scanner{
			Dirs:    dirs,
			Workers: cfg.Workers,
			Probe:   cfg.Probe,
			Logger:  logger,
		},
		manifest: cfg.Manifest,
		debounce: defaultDebounce,
		logger:   logger,
	}
}

// OnRefresh registers a callback run after every successful refresh.
func (l *Library) OnRefresh(fn func(count int)) {
	l.onRefresh = fn
}

// Refresh reloads the manifest if configured, otherwise rescans the media
// root.
func (l *Library) Refresh(ctx context.Context) error {
	start := time.Now()

	var files []FileEntry
	switch {
	case l.manifest != "":
		m, err := ReadManifest(l.manifest)
		if err != nil {
			return err
		}
		files = m.Files
	case len(l.scanner.Dirs) > 0:
		m, err := l.scanner.Scan(ctx)
		if err != nil {
			return fmt.Errorf("scan media root: %w", err)
		}
		files = m.Files
	default:
		return errors.New("no media root or manifest configured")
	}

	l.Replace(files)
	telemetry.LibraryItems.Set(float64(len(files)))
	telemetry.LibraryScanDuration.Observe(time.Since(start).Seconds())
	l.logger.Info().Int("items", len(files)).Dur("took", time.Since(start)).Msg("library refreshed")

	if l.onRefresh != nil {
		l.onRefresh(len(files))
	}
	return nil
}

// Watch rescans whenever media files under the media root change. Bursts of
// filesystem events are collapsed into one rescan after a quiet period.
func (l *Library) Watch(ctx context.Context) error {
	if len(l.scanner.Dirs) == 0 {
		return errors.New("no media root to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range l.scanner.Dirs {
		if err := addTree(watcher, root); err != nil {
			return err
		}
	}
	l.logger.Info().Strs("dirs", l.scanner.Dirs).Msg("watching media root")

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, ev.Name); err != nil {
						l.logger.Warn().Err(err).Str("dir", ev.Name).Msg("failed to watch new directory")
					}
					debounce.Reset(l.debounce)
					continue
				}
			}
			if IsMediaFile(ev.Name) && ev.Op != fsnotify.Chmod {
				debounce.Reset(l.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Warn().Err(err).Msg("watcher error")

		case <-debounce.C:
			if err := l.Refresh(ctx); err != nil {
				l.logger.Error().Err(err).Msg("library rescan failed")
			}
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
