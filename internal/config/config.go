/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package config loads process configuration from JUKEBOX_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Play and report logs
	PlaylistDir  string
	LoadPlaylist string // play log to re-enqueue at startup

	// Content library
	MediaRoot       string
	LibraryManifest string
	LibraryWatch    bool
	LibraryWorkers  int
	LibraryProbe    bool

	// Media engine
	MPVBin               string
	MPVSocket            string
	MPVArgs              []string
	SuppressWindow       time.Duration
	EngineCommandTimeout time.Duration

	// Play/report history database; an empty DSN disables it
	DBBackend DatabaseBackend
	DBDSN     string

	// Cross-process event fan-out; empty addresses disable each transport
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NATSURL       string
	InstanceID    string

	// S3 Object Storage configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO
	ArchivePrefix     string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LogBufferSize     int
	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	suppressMS := getEnvIntAny([]string{"JUKEBOX_SUPPRESS_WINDOW_MS"}, 1000)
	commandTimeoutMS := getEnvIntAny([]string{"JUKEBOX_ENGINE_TIMEOUT_MS"}, 5000)

	cfg := &Config{
		Environment: getEnvAny([]string{"JUKEBOX_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"JUKEBOX_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"JUKEBOX_HTTP_PORT", "PORT"}, 8080),

		PlaylistDir:  getEnvAny([]string{"JUKEBOX_PLAYLIST_DIR"}, "playlists"),
		LoadPlaylist: getEnvAny([]string{"JUKEBOX_LOAD_PLAYLIST"}, ""),

		MediaRoot:       getEnvAny([]string{"JUKEBOX_MEDIA_ROOT"}, ""),
		LibraryManifest: getEnvAny([]string{"JUKEBOX_LIBRARY_MANIFEST"}, ""),
		LibraryWatch:    getEnvBoolAny([]string{"JUKEBOX_LIBRARY_WATCH"}, false),
		LibraryWorkers:  getEnvIntAny([]string{"JUKEBOX_LIBRARY_WORKERS"}, 4),
		LibraryProbe:    getEnvBoolAny([]string{"JUKEBOX_LIBRARY_PROBE"}, false),

		MPVBin:               getEnvAny([]string{"JUKEBOX_MPV_BIN"}, "mpv"),
		MPVSocket:            getEnvAny([]string{"JUKEBOX_MPV_SOCKET"}, filepath.Join(os.TempDir(), "jukebox-mpv.sock")),
		MPVArgs:              strings.Fields(getEnvAny([]string{"JUKEBOX_MPV_ARGS"}, "")),
		SuppressWindow:       time.Duration(suppressMS) * time.Millisecond,
		EngineCommandTimeout: time.Duration(commandTimeoutMS) * time.Millisecond,

		DBBackend: DatabaseBackend(getEnvAny([]string{"JUKEBOX_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:     getEnvAny([]string{"JUKEBOX_DB_DSN"}, ""),

		RedisAddr:     getEnvAny([]string{"JUKEBOX_REDIS_ADDR"}, ""),
		RedisPassword: getEnvAny([]string{"JUKEBOX_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"JUKEBOX_REDIS_DB"}, 0),
		NATSURL:       getEnvAny([]string{"JUKEBOX_NATS_URL"}, ""),
		InstanceID:    getEnvAny([]string{"JUKEBOX_INSTANCE_ID"}, ""),

		S3AccessKeyID:     getEnvAny([]string{"JUKEBOX_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"JUKEBOX_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"JUKEBOX_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"JUKEBOX_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"JUKEBOX_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"JUKEBOX_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),
		ArchivePrefix:     getEnvAny([]string{"JUKEBOX_ARCHIVE_PREFIX"}, "playlists"),

		TracingEnabled:    getEnvBoolAny([]string{"JUKEBOX_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"JUKEBOX_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"JUKEBOX_TRACING_SAMPLE_RATE"}, 1.0),

		LogBufferSize: getEnvIntAny([]string{"JUKEBOX_LOG_BUFFER_SIZE"}, 1000),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if suppressMS <= 0 {
		return nil, fmt.Errorf("JUKEBOX_SUPPRESS_WINDOW_MS must be positive, got %d", suppressMS)
	}

	if commandTimeoutMS <= 0 {
		return nil, fmt.Errorf("JUKEBOX_ENGINE_TIMEOUT_MS must be positive, got %d", commandTimeoutMS)
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("JUKEBOX_HTTP_PORT out of range: %d", cfg.HTTPPort)
	}

	if strings.TrimSpace(cfg.PlaylistDir) == "" {
		return nil, fmt.Errorf("JUKEBOX_PLAYLIST_DIR must not be empty")
	}

	if cfg.LibraryWorkers < 1 {
		cfg.LibraryWorkers = 1
	}

	if cfg.LogBufferSize < 1 {
		cfg.LogBufferSize = 1000
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.MediaRoot == "" && cfg.LibraryManifest == "" {
		return nil, fmt.Errorf("JUKEBOX_MEDIA_ROOT or JUKEBOX_LIBRARY_MANIFEST must be set in production")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// HistoryEnabled reports whether a history database is configured.
func (c *Config) HistoryEnabled() bool {
	return c != nil && c.DBDSN != ""
}

// ArchiveEnabled reports whether an S3 bucket is configured for log archival.
func (c *Config) ArchiveEnabled() bool {
	return c != nil && c.S3Bucket != ""
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"PLAYLIST_DIR":        "use JUKEBOX_PLAYLIST_DIR",
		"MEDIA_ROOT":          "use JUKEBOX_MEDIA_ROOT",
		"MPV_BIN":             "use JUKEBOX_MPV_BIN",
		"TRACING_ENABLED":     "use JUKEBOX_TRACING_ENABLED",
		"OTLP_ENDPOINT":       "use JUKEBOX_OTLP_ENDPOINT",
		"TRACING_SAMPLE_RATE": "use JUKEBOX_TRACING_SAMPLE_RATE",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	sort.Strings(warnings)
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
