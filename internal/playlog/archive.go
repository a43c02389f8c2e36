/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playlog

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/friendsincode/grimnir_jukebox/internal/storage"
)

// Archive uploads every .m3u file in dir to store under prefix and returns
// the keys written. Files are uploaded in name order; the first failure stops
// the run.
func Archive(ctx context.Context, dir string, store storage.ObjectStore, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read playlist directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	keys := make([]string, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return keys, err
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return keys, fmt.Errorf("read %s: %w", name, err)
		}

		key := path.Join(strings.Trim(prefix, "/"), name)
		if err := store.Put(ctx, key, data); err != nil {
			return keys, fmt.Errorf("archive %s: %w", name, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
