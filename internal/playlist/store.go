/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playlist owns the shared queue: pending items, the item being played
// and the submitter rotation used to pick what plays next.
package playlist

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
	"github.com/friendsincode/grimnir_jukebox/internal/scheduler"
)

// Store is the single owner of playlist state. All methods are safe for
// concurrent use; every mutation is applied atomically under one lock.
//
// The pending order across submitters is submission order and is not the play
// order. Only the relative order of one submitter's items matters, the rotation
// decides whose item comes next.
type Store struct {
	mu         sync.RWMutex
	pending    []models.Item
	nowPlaying *models.Item
	counts     map[string]int
	rotation   *scheduler.Rotation

	shuffle func(n int, swap func(i, j int))
}

// NewStore creates an empty playlist.
func NewStore() *Store {
	return &Store{
		counts:   make(map[string]int),
		rotation: scheduler.NewRotation(),
		shuffle:  rand.Shuffle,
	}
}

// Enqueue appends item at the tail of the queue on behalf of submitter.
// A submitter seen for the first time joins the rotation at the front.
//
// Identifiers are not de-duplicated: enqueuing the same item twice queues it
// twice.
func (s *Store) Enqueue(item models.Item, submitter string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, item.WithSubmitter(submitter))
	s.counts[submitter]++
	s.rotation.Join(submitter)
}

// Remove drops every pending item carrying id. Returns false when none matched.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pending[:0]
	removed := false
	for _, item := range s.pending {
		if item.ID == id {
			s.counts[item.Submitter]--
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	clear(s.pending[len(kept):])
	s.pending = kept
	return removed
}

// Reorder replaces everything submitter has pending with the items listed in
// ids, in that order, appended at the tail of the queue. Each listed id yields
// one item, so copies of an item enqueued more than once collapse into one.
// Ids that submitter does not own are dropped, and owned items missing from
// ids are discarded. Returns how many items submitter has pending afterwards.
func (s *Store) Reorder(submitter string, ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := make(map[string]models.Item)
	for _, item := range s.pending {
		if _, seen := owned[item.ID]; item.Submitter == submitter && !seen {
			owned[item.ID] = item
		}
	}

	reordered := lo.Filter(s.pending, func(item models.Item, _ int) bool {
		return item.Submitter != submitter
	})
	count := 0
	for _, id := range lo.Uniq(ids) {
		if item, ok := owned[id]; ok {
			reordered = append(reordered, item)
			count++
		}
	}

	s.pending = reordered
	s.counts[submitter] = count
	return count
}

// Shuffle randomly permutes submitter's pending items in place. The queue slots
// the submitter occupies stay the same, other submitters are untouched.
func (s *Store) Shuffle(submitter string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var slots []int
	for i, item := range s.pending {
		if item.Submitter == submitter {
			slots = append(slots, i)
		}
	}
	if len(slots) < 2 {
		return
	}

	items := lo.Map(slots, func(slot int, _ int) models.Item {
		return s.pending[slot]
	})
	s.shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	for i, slot := range slots {
		s.pending[slot] = items[i]
	}
}

// Next makes the next item in rotation the now-playing item and removes it from
// the queue. It selects nothing while an item is already playing. The rotation
// advances on every call that finds something to examine, even when nobody has
// content pending.
func (s *Store) Next() (models.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nowPlaying != nil {
		return models.Item{}, false
	}

	submitter, ok := s.rotation.Next(func(name string) bool {
		return s.counts[name] > 0
	})
	if !ok {
		return models.Item{}, false
	}

	_, idx, found := lo.FindIndexOf(s.pending, func(item models.Item) bool {
		return item.Submitter == submitter
	})
	if !found {
		// counts and pending disagree; resync rather than select a phantom item
		s.counts[submitter] = 0
		return models.Item{}, false
	}

	item := s.pending[idx]
	s.pending = slices.Delete(s.pending, idx, idx+1)
	s.counts[submitter]--
	s.nowPlaying = &item
	return item, true
}

// NowPlaying returns the item currently handed to the media engine.
func (s *Store) NowPlaying() (models.Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.nowPlaying == nil {
		return models.Item{}, false
	}
	return *s.nowPlaying, true
}

// ClearNowPlaying forgets the now-playing item.
func (s *Store) ClearNowPlaying() {
	s.mu.Lock()
	s.nowPlaying = nil
	s.mu.Unlock()
}

// Snapshot returns a copy of the playlist safe to hand to other goroutines.
func (s *Store) Snapshot() models.PlaylistState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := models.PlaylistState{
		Pending: slices.Clone(s.pending),
	}
	if state.Pending == nil {
		state.Pending = []models.Item{}
	}
	if s.nowPlaying != nil {
		playing := *s.nowPlaying
		state.NowPlaying = &playing
	}
	return state
}

// Len returns the number of pending items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Submitters returns the rotation order, next turn first.
func (s *Store) Submitters() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotation.Order()
}
