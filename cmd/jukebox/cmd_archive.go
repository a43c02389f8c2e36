/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_jukebox/internal/playlog"
	"github.com/friendsincode/grimnir_jukebox/internal/storage"
)

// Archive flags
var (
	archiveDir      string
	archivePrefix   string
	archiveLocalDir string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Upload play and report logs to object storage",
	Long: `Uploads every .m3u file in the playlist directory to the configured
S3-compatible bucket (JUKEBOX_S3_*). Existing objects with the same key are
overwritten, so the command can be re-run safely.

Examples:
  jukebox archive
  jukebox archive --prefix station-a/playlists
  jukebox archive --local /mnt/backup`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringVar(&archiveDir, "dir", "", "Playlist directory (default: JUKEBOX_PLAYLIST_DIR)")
	archiveCmd.Flags().StringVar(&archivePrefix, "prefix", "", "Key prefix (default: JUKEBOX_ARCHIVE_PREFIX)")
	archiveCmd.Flags().StringVar(&archiveLocalDir, "local", "", "Copy to a local directory instead of S3")
}

func runArchive(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir := archiveDir
	if dir == "" {
		dir = cfg.PlaylistDir
	}
	prefix := archivePrefix
	if prefix == "" {
		prefix = cfg.ArchivePrefix
	}

	var store storage.ObjectStore
	switch {
	case archiveLocalDir != "":
		store = storage.NewFilesystemStore(archiveLocalDir, logger)
	case cfg.ArchiveEnabled():
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
		}, logger)
		if err != nil {
			return fmt.Errorf("init s3: %w", err)
		}
		store = s3Store
	default:
		return fmt.Errorf("no archive destination: set JUKEBOX_S3_BUCKET or pass --local")
	}

	keys, err := playlog.Archive(ctx, dir, store, prefix)
	for _, key := range keys {
		logger.Info().Str("key", key).Msg("archived")
	}
	if err != nil {
		return fmt.Errorf("archive %s: %w", dir, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "archived %d file(s) from %s\n", len(keys), dir)
	return nil
}
