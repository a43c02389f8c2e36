/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler decides whose turn it is to play next.
//
// Submitters are kept in a cyclic rotation. Every scheduling decision walks the
// rotation from its head, sending each examined submitter to the tail, and stops
// at the first one that has something pending. A submitter never gets two turns
// in a row while somebody else is waiting, regardless of queue length.
package scheduler

const minRotationCapacity = 8

// Rotation is a circular deque of submitter names.
// It is not safe for concurrent use; the owner serializes access.
type Rotation struct {
	names []string
	head  int
	size  int
	known map[string]struct{}
}

// NewRotation creates an empty rotation.
func NewRotation() *Rotation {
	return &Rotation{
		names: make([]string, minRotationCapacity),
		known: make(map[string]struct{}),
	}
}

// Len returns the number of submitters ever seen.
func (r *Rotation) Len() int {
	return r.size
}

// Contains reports whether name already joined the rotation.
func (r *Rotation) Contains(name string) bool {
	_, ok := r.known[name]
	return ok
}

// Join inserts name at the head so newcomers get the next turn.
// Returns false when name is already part of the rotation.
func (r *Rotation) Join(name string) bool {
	if r.Contains(name) {
		return false
	}
	if r.size == len(r.names) {
		r.grow()
	}
	r.head = (r.head - 1 + len(r.names)) % len(r.names)
	r.names[r.head] = name
	r.size++
	r.known[name] = struct{}{}
	return true
}

// Head returns the submitter whose turn comes first.
func (r *Rotation) Head() (string, bool) {
	if r.size == 0 {
		return "", false
	}
	return r.names[r.head], true
}

// Advance sends the head submitter to the tail.
func (r *Rotation) Advance() {
	if r.size == 0 {
		return
	}
	name := r.names[r.head]
	r.names[r.head] = ""
	r.names[(r.head+r.size)%len(r.names)] = name
	r.head = (r.head + 1) % len(r.names)
}

// Next walks the rotation from the head and returns the first submitter for
// which hasPending is true. Every examined submitter, the chosen one included,
// is moved to the tail. When nobody has content the walk covers one full cycle,
// which leaves the order as it was.
func (r *Rotation) Next(hasPending func(name string) bool) (string, bool) {
	for i := 0; i < r.size; i++ {
		name := r.names[r.head]
		r.Advance()
		if hasPending(name) {
			return name, true
		}
	}
	return "", false
}

// Order returns the rotation head first.
func (r *Rotation) Order() []string {
	order := make([]string, r.size)
	for i := 0; i < r.size; i++ {
		order[i] = r.names[(r.head+i)%len(r.names)]
	}
	return order
}

func (r *Rotation) grow() {
	names := make([]string, len(r.names)*2)
	copy(names, r.Order())
	r.names = names
	r.head = 0
}
