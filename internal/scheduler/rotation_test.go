/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"fmt"
	"reflect"
	"testing"
)

func TestRotationJoinPutsNewcomersFirst(t *testing.T) {
	r := NewRotation()
	r.Join("alice")
	r.Join("bob")
	r.Join("carol")

	want := []string{"carol", "bob", "alice"}
	if got := r.Order(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Order() = %v, want %v", got, want)
	}

	if r.Join("bob") {
		t.Fatal("Join() of a known submitter should report false")
	}
	if got := r.Order(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Order() after rejoin = %v, want %v", got, want)
	}
}

func TestRotationAdvance(t *testing.T) {
	r := NewRotation()
	r.Advance() // empty rotation is a no-op

	r.Join("a")
	r.Join("b")
	r.Join("c") // c, b, a

	r.Advance()
	if got, want := r.Order(), []string{"b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Order() = %v, want %v", got, want)
	}
	head, ok := r.Head()
	if !ok || head != "b" {
		t.Fatalf("Head() = %q, %v, want b, true", head, ok)
	}
}

func TestRotationGrowsPastInitialCapacity(t *testing.T) {
	r := NewRotation()
	for i := 0; i < minRotationCapacity*3; i++ {
		r.Join(fmt.Sprintf("user-%02d", i))
		r.Advance()
	}
	if r.Len() != minRotationCapacity*3 {
		t.Fatalf("Len() = %d, want %d", r.Len(), minRotationCapacity*3)
	}

	seen := make(map[string]bool)
	for _, name := range r.Order() {
		if name == "" {
			t.Fatal("Order() contains an empty slot")
		}
		if seen[name] {
			t.Fatalf("Order() contains %q twice", name)
		}
		seen[name] = true
	}
}

func TestRotationAdvanceWhenFull(t *testing.T) {
	r := NewRotation()
	for i := 0; i < minRotationCapacity; i++ {
		r.Join(fmt.Sprintf("u%d", i))
	}
	before := r.Order()
	r.Advance()
	after := r.Order()

	want := append(append([]string{}, before[1:]...), before[0])
	if !reflect.DeepEqual(after, want) {
		t.Fatalf("Order() = %v, want %v", after, want)
	}
}

func TestRotationNext(t *testing.T) {
	tests := []struct {
		name      string
		pending   map[string]bool
		wantName  string
		wantOK    bool
		wantOrder []string
	}{
		{
			name:      "head has content",
			pending:   map[string]bool{"c": true, "b": true, "a": true},
			wantName:  "c",
			wantOK:    true,
			wantOrder: []string{"b", "a", "c"},
		},
		{
			name:      "empty submitters still lose their turn",
			pending:   map[string]bool{"a": true},
			wantName:  "a",
			wantOK:    true,
			wantOrder: []string{"c", "b", "a"},
		},
		{
			name:      "middle submitter",
			pending:   map[string]bool{"b": true},
			wantName:  "b",
			wantOK:    true,
			wantOrder: []string{"a", "c", "b"},
		},
		{
			name:      "nobody has content",
			pending:   map[string]bool{},
			wantName:  "",
			wantOK:    false,
			wantOrder: []string{"c", "b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRotation()
			r.Join("a")
			r.Join("b")
			r.Join("c")

			name, ok := r.Next(func(n string) bool { return tt.pending[n] })
			if name != tt.wantName || ok != tt.wantOK {
				t.Errorf("Next() = %q, %v, want %q, %v", name, ok, tt.wantName, tt.wantOK)
			}
			if got := r.Order(); !reflect.DeepEqual(got, tt.wantOrder) {
				t.Errorf("Order() = %v, want %v", got, tt.wantOrder)
			}
		})
	}
}

func TestRotationNextOnEmptyRotation(t *testing.T) {
	r := NewRotation()
	if _, ok := r.Next(func(string) bool { return true }); ok {
		t.Fatal("Next() on an empty rotation should select nobody")
	}
}
