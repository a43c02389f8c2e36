/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_jukebox/internal/library"
	"github.com/friendsincode/grimnir_jukebox/internal/playlog"
)

// Replay flags
var (
	replayResolve bool
	replayJSON    bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <playlog.m3u>",
	Short: "Print the records of a play or report log",
	Long: `Parses a play or report log and prints one line per record. With
--resolve, each locator is looked up in the library (JUKEBOX_LIBRARY_MANIFEST or
JUKEBOX_MEDIA_ROOT) and records that would be skipped on reload are marked.

Examples:
  jukebox replay playlists/2026-03-01.m3u
  jukebox replay --resolve --json playlists/2026-03-01-1.m3u`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().BoolVar(&replayResolve, "resolve", false, "Resolve locators against the library")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Emit JSON instead of a table")
}

type replayRecord struct {
	Comment  string `json:"comment"`
	Locator  string `json:"locator"`
	ItemID   string `json:"item_id,omitempty"`
	Resolved *bool  `json:"resolved,omitempty"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open play log: %w", err)
	}
	defer f.Close()

	records, err := playlog.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	var lib *library.Library
	if replayResolve {
		lib = library.New(library.Config{
			MediaRoot: cfg.MediaRoot,
			Manifest:  cfg.LibraryManifest,
			Workers:   cfg.LibraryWorkers,
		}, logger)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if err := lib.Refresh(ctx); err != nil {
			return fmt.Errorf("load library: %w", err)
		}
	}

	out := make([]replayRecord, 0, len(records))
	for _, rec := range records {
		r := replayRecord{Comment: rec.Comment, Locator: rec.Locator}
		if lib != nil {
			item, ok := lib.LookupPath(rec.Locator)
			r.Resolved = &ok
			r.ItemID = item.ID
		}
		out = append(out, r)
	}

	if replayJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printReplay(cmd.OutOrStdout(), out)
}

func printReplay(w io.Writer, records []replayRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCOMMENT\tLOCATOR\tSTATUS")
	for i, r := range records {
		status := "-"
		if r.Resolved != nil {
			status = "missing"
			if *r.Resolved {
				status = "ok"
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, r.Comment, r.Locator, status)
	}
	return tw.Flush()
}
