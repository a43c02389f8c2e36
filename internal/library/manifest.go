/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package library

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

const manifestVersion = 1

// Manifest is the on-disk YAML form of a library scan.
type Manifest struct {
	Version   int           `yaml:"version" json:"version"`
	ScannedAt time.Time     `yaml:"scanned_at" json:"scanned_at"`
	RootDirs  []string      `yaml:"root_dirs" json:"root_dirs"`
	Files     []FileEntry   `yaml:"files" json:"files"`
	Stats     ManifestStats `yaml:"stats" json:"stats"`
}

// FileEntry describes a single scanned media file.
type FileEntry struct {
	ID           string        `yaml:"id" json:"id"`
	Path         string        `yaml:"path" json:"path"`
	RelativePath string        `yaml:"relative_path" json:"relative_path"`
	Filename     string        `yaml:"filename" json:"filename"`
	Size         int64         `yaml:"size" json:"size"`
	ModifiedAt   time.Time     `yaml:"modified_at" json:"modified_at"`
	Metadata     *FileMetadata `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// FileMetadata holds ffprobe-extracted tags.
type FileMetadata struct {
	Title           string  `yaml:"title,omitempty" json:"title,omitempty"`
	Artist          string  `yaml:"artist,omitempty" json:"artist,omitempty"`
	Album           string  `yaml:"album,omitempty" json:"album,omitempty"`
	Genre           string  `yaml:"genre,omitempty" json:"genre,omitempty"`
	Year            string  `yaml:"year,omitempty" json:"year,omitempty"`
	DurationSeconds float64 `yaml:"duration_seconds,omitempty" json:"duration_seconds,omitempty"`
}

// ManifestStats holds aggregate scan statistics.
type ManifestStats struct {
	TotalFiles      int     `yaml:"total_files" json:"total_files"`
	TotalSize       int64   `yaml:"total_size" json:"total_size"`
	Errors          int     `yaml:"errors" json:"errors"`
	DurationSeconds float64 `yaml:"duration_seconds" json:"duration_seconds"`
}

// Item converts the entry to a queue item.
func (e FileEntry) Item() models.Item {
	item := models.Item{ID: e.ID, Path: e.Path}
	meta := map[string]any{"filename": e.Filename}
	if e.Metadata != nil {
		meta["title"] = e.Metadata.Title
		meta["artist"] = e.Metadata.Artist
		meta["album"] = e.Metadata.Album
		meta["genre"] = e.Metadata.Genre
		meta["year"] = e.Metadata.Year
		meta["duration_seconds"] = e.Metadata.DurationSeconds
	}
	item.Metadata = lo.OmitBy(meta, func(_ string, v any) bool {
		return v == "" || v == 0.0
	})
	return item
}

// WriteManifest encodes m as YAML.
func WriteManifest(w io.Writer, m *Manifest) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

// ReadManifest loads a YAML manifest from path. Entries without an id get the
// id derived from their path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Version > manifestVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", path, m.Version)
	}
	for i := range m.Files {
		if m.Files[i].ID == "" {
			m.Files[i].ID = ItemID(m.Files[i].Path)
		}
	}
	return &m, nil
}
