/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestBuildLevels(t *testing.T) {
	tests := []struct {
		env  string
		want zerolog.Level
	}{
		{"development", zerolog.DebugLevel},
		{"production", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		logger := build(tt.env, &out, nil)
		if logger.GetLevel() != tt.want {
			t.Errorf("env %q: level = %v, want %v", tt.env, logger.GetLevel(), tt.want)
		}
	}
}

func TestBuildAdditionalWriterGetsJSON(t *testing.T) {
	var console, extra bytes.Buffer
	logger := build("production", &console, &extra)

	logger.Info().Str("component", "playout").Msg("now playing")

	if !strings.Contains(console.String(), "now playing") {
		t.Errorf("console output missing message: %q", console.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(extra.Bytes(), &entry); err != nil {
		t.Fatalf("additional writer did not receive JSON: %v (%q)", err, extra.String())
	}
	if entry["message"] != "now playing" || entry["component"] != "playout" {
		t.Errorf("entry = %v", entry)
	}
}
