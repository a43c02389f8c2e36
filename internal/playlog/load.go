/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlog

import (
	"fmt"
	"os"

	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

// ContentLookup resolves a resource locator to known content.
type ContentLookup interface {
	LookupPath(path string) (models.Item, bool)
}

// Enqueuer accepts reconstructed items.
type Enqueuer interface {
	Enqueue(item models.Item, submitter string)
}

// Load re-enqueues the records of a play log in file order, attributing each
// one to the submitter named on its comment line. Locators that are not part
// of contents are skipped. Returns the number of items enqueued.
func Load(path string, contents ContentLookup, q Enqueuer) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open play log: %w", err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return 0, fmt.Errorf("parse play log %s: %w", path, err)
	}

	loaded := 0
	for _, rec := range records {
		item, ok := contents.LookupPath(rec.Locator)
		if !ok {
			continue
		}
		q.Enqueue(item, rec.Comment)
		loaded++
	}
	return loaded, nil
}
