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
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_jukebox/internal/library"
)

var (
	dirs       []string
	outputFile string
	workers    int
	probe      bool
	asJSON     bool
)

var rootCmd = &cobra.Command{
	Use:   "mediascan",
	Short: "Scan media directories and produce a library manifest",
	Long: `mediascan walks media directories, assigns every video and audio file a
stable content id, and optionally extracts tags and duration via ffprobe. The
YAML manifest it writes is loaded by "jukebox serve" through
JUKEBOX_LIBRARY_MANIFEST, which avoids rescanning large libraries at startup.

Examples:
  mediascan --dir /srv/media -o library.yaml
  mediascan --dir '/srv/media/*/videos' --probe -o library.yaml
  mediascan --dir /path/to/media --json  # output to stdout`,
	RunE: runScan,
}

func init() {
	rootCmd.Flags().StringArrayVar(&dirs, "dir", nil, "Media directory to scan (required, repeatable, globs allowed)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 4, "Parallel probe workers")
	rootCmd.Flags().BoolVar(&probe, "probe", false, "Extract metadata with ffprobe")
	rootCmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of YAML")
	_ = rootCmd.MarkFlagRequired("dir")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	s := &library.Scanner{
		Dirs:    dirs,
		Workers: workers,
		Probe:   probe,
		Logger:  logger,
	}

	logger.Info().Int("dirs", len(dirs)).Int("workers", workers).Msg("scanning")

	manifest, err := s.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	logger.Info().
		Int("files", manifest.Stats.TotalFiles).
		Int("errors", manifest.Stats.Errors).
		Float64("seconds", manifest.Stats.DurationSeconds).
		Msg("scan complete")

	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := writeManifest(out, manifest, asJSON); err != nil {
		return err
	}

	if outputFile != "" {
		logger.Info().Str("path", outputFile).Msg("manifest written")
	}
	return nil
}

func writeManifest(w io.Writer, m *library.Manifest, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		return nil
	}
	return library.WriteManifest(w, m)
}
