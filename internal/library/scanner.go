/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// scanJob is a unit of work sent to probe workers.
type scanJob struct {
	fullPath string
	info     fs.FileInfo
	rootDir  string
}

// scanResult is the result of processing a single file.
type scanResult struct {
	entry FileEntry
	err   error
}

// Scanner walks media directories and produces a manifest.
type Scanner struct {
	Dirs    []string
	Workers int
	// Probe runs ffprobe on every file for tags and duration.
	Probe  bool
	Logger zerolog.Logger
}

// Scan walks every directory (glob patterns allowed) and returns the media
// files found, sorted by path. Per-file problems are counted in Stats.Errors
// and do not stop the scan.
func (s *Scanner) Scan(ctx context.Context) (*Manifest, error) {
	startTime := time.Now()
	workers := max(s.Workers, 1)

	manifest := &Manifest{
		Version:   manifestVersion,
		ScannedAt: startTime.UTC(),
		RootDirs:  s.Dirs,
	}

	jobs := make(chan scanJob, workers*2)
	results := make(chan scanResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				entry, err := s.processFile(ctx, job)
				results <- scanResult{entry: entry, err: err}
			}
		}()
	}

	var (
		entries   []FileEntry
		totalSize int64
		errCount  int
		errMu     sync.Mutex
	)
	countError := func() {
		errMu.Lock()
		errCount++
		errMu.Unlock()
	}

	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for r := range results {
			if r.err != nil {
				s.Logger.Warn().Err(r.err).Msg("skipping media file")
				countError()
				continue
			}
			entries = append(entries, r.entry)
			totalSize += r.entry.Size
		}
	}()

	var walkErr error
	for _, dir := range s.Dirs {
		matches, err := filepath.Glob(dir)
		if err != nil {
			s.Logger.Warn().Err(err).Str("pattern", dir).Msg("invalid glob")
			countError()
			continue
		}
		if len(matches) == 0 {
			matches = []string{dir}
		}

		for _, root := range matches {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					s.Logger.Warn().Err(err).Str("path", path).Msg("walk error")
					countError()
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if d.IsDir() || !IsMediaFile(d.Name()) {
					return nil
				}
				info, err := d.Info()
				if err != nil {
					countError()
					return nil
				}
				jobs <- scanJob{fullPath: path, info: info, rootDir: root}
				return nil
			})
			if err != nil {
				walkErr = err
				break
			}
		}
		if walkErr != nil {
			break
		}
	}

	close(jobs)
	wg.Wait()
	close(results)
	<-collectDone

	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	manifest.Files = entries
	manifest.Stats = ManifestStats{
		TotalFiles:      len(entries),
		TotalSize:       totalSize,
		Errors:          errCount,
		DurationSeconds: time.Since(startTime).Seconds(),
	}
	return manifest, nil
}

func (s *Scanner) processFile(ctx context.Context, job scanJob) (FileEntry, error) {
	absPath, err := filepath.Abs(job.fullPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("%s: %w", job.fullPath, err)
	}
	relPath, err := filepath.Rel(job.rootDir, job.fullPath)
	if err != nil {
		relPath = filepath.Base(job.fullPath)
	}

	entry := FileEntry{
		ID:           ItemID(absPath),
		Path:         absPath,
		RelativePath: relPath,
		Filename:     filepath.Base(absPath),
		Size:         job.info.Size(),
		ModifiedAt:   job.info.ModTime().UTC(),
	}

	if s.Probe {
		meta, err := probeMetadata(ctx, absPath)
		if err != nil {
			s.Logger.Debug().Err(err).Str("path", absPath).Msg("ffprobe failed")
		} else {
			entry.Metadata = meta
		}
	}
	return entry, nil
}

// probeMetadata uses ffprobe to extract tags and duration from a media file.
func probeMetadata(ctx context.Context, filePath string) (*FileMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (*FileMetadata, error) {
	var probe struct {
		Format struct {
			Duration string            `json:"duration"`
			Tags     map[string]string `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := &FileMetadata{}
	if probe.Format.Duration != "" {
		if secs, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			meta.DurationSeconds = secs
		}
	}
	for k, v := range probe.Format.Tags {
		switch strings.ToLower(k) {
		case "title":
			meta.Title = v
		case "artist":
			meta.Artist = v
		case "album":
			meta.Album = v
		case "genre":
			meta.Genre = v
		case "date", "year":
			meta.Year = v
		}
	}
	return meta, nil
}

// IsMediaFile reports whether name has an extension mpv is expected to play.
func IsMediaFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4", ".mkv", ".webm", ".avi", ".mov", ".m4v", ".flv", ".wmv",
		".mp3", ".flac", ".ogg", ".m4a", ".aac", ".wav", ".opus":
		return true
	default:
		return false
	}
}
