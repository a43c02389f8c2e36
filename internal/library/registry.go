/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package library keeps the registry of playable content: what the media
// root holds, under which stable ids.
package library

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

// ItemID derives a stable content id from a file path, so ids survive
// restarts and rescans.
func ItemID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.Clean(path))).String()
}

// Registry indexes content by id and by path. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]models.Item
	byPath map[string]models.Item
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]models.Item),
		byPath: make(map[string]models.Item),
	}
}

// Replace swaps the registry contents for the manifest's files.
func (r *Registry) Replace(files []FileEntry) {
	byID := make(map[string]models.Item, len(files))
	byPath := make(map[string]models.Item, len(files))
	for _, f := range files {
		item := f.Item()
		byID[item.ID] = item
		byPath[item.Path] = item
	}

	r.mu.Lock()
	r.byID = byID
	r.byPath = byPath
	r.mu.Unlock()
}

// Lookup finds content by id.
func (r *Registry) Lookup(id string) (models.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.byID[id]
	return item, ok
}

// LookupPath finds content by its locator.
func (r *Registry) LookupPath(path string) (models.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.byPath[path]
	if !ok {
		item, ok = r.byPath[filepath.Clean(path)]
	}
	return item, ok
}

// Items returns all content sorted by path.
func (r *Registry) Items() []models.Item {
	r.mu.RLock()
	items := make([]models.Item, 0, len(r.byID))
	for _, item := range r.byID {
		items = append(items, item)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items
}

// Len returns the number of items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
