/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package mediaengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/telemetry"
)

const (
	eofObserverID = 13

	socketWaitInterval = 50 * time.Millisecond
	stopGracePeriod    = 5 * time.Second

	minRestartBackoff = time.Second
	maxRestartBackoff = 30 * time.Second
	stableRunDuration = time.Minute
)

// defaultMPVArgs keeps the player window open and idle between items.
var defaultMPVArgs = []string{
	"--idle=yes",
	"--keep-open=yes",
	"--fps=60",
	"--no-border",
	"--osd-level=0",
	"--sub-codepage=UTF-8-BROKEN",
}

// MPVConfig configures the mpv process.
type MPVConfig struct {
	Bin         string
	Socket      string
	ExtraArgs   []string
	DialTimeout time.Duration
}

// MPV is an Engine backed by an mpv process controlled over JSON IPC. Run
// keeps the process alive; commands fail with ErrNotRunning while it is down.
type MPV struct {
	cfg    MPVConfig
	logger zerolog.Logger
	events chan Event

	mu     sync.RWMutex
	client *ipcClient

	onConnection func(connected bool)
}

// NewMPV creates an engine. Nothing is started until Run.
func NewMPV(cfg MPVConfig, logger zerolog.Logger) *MPV {
	if cfg.Bin == "" {
		cfg.Bin = "mpv"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &MPV{
		cfg:    cfg,
		logger: logger.With().Str("component", "mpv").Logger(),
		events: make(chan Event, 64),
	}
}

// Args returns the full mpv command line arguments.
func (m *MPV) Args() []string {
	args := append([]string{}, defaultMPVArgs...)
	if runtime.GOOS == "darwin" {
		args = append(args, "--no-native-fs")
	}
	args = append(args, "--input-ipc-server="+m.cfg.Socket)
	return append(args, m.cfg.ExtraArgs...)
}

// OnConnectionChange registers fn to run whenever the IPC connection comes
// up or goes down. Must be called before Run.
func (m *MPV) OnConnectionChange(fn func(connected bool)) {
	m.onConnection = fn
}

// Events delivers end-of-file and load failure notifications.
func (m *MPV) Events() <-chan Event {
	return m.events
}

// Load replaces the current item with path.
func (m *MPV) Load(ctx context.Context, path string) error {
	_, err := m.command(ctx, "loadfile", path, "replace")
	return err
}

// Resume unpauses playback.
func (m *MPV) Resume(ctx context.Context) error {
	_, err := m.command(ctx, "set_property", "pause", false)
	return err
}

// Pause pauses playback.
func (m *MPV) Pause(ctx context.Context) error {
	_, err := m.command(ctx, "set_property", "pause", true)
	return err
}

// TogglePause flips the pause state.
func (m *MPV) TogglePause(ctx context.Context) error {
	_, err := m.command(ctx, "cycle", "pause")
	return err
}

// Connected reports whether an IPC connection is up.
func (m *MPV) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

func (m *MPV) command(ctx context.Context, args ...any) (json.RawMessage, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrNotRunning
	}
	data, err := client.Command(ctx, args...)
	if errors.Is(err, errIPCClosed) {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	return data, err
}

func (m *MPV) handleEvent(msg ipcMessage) {
	switch {
	case msg.Event == "end-file" && msg.Reason == "error":
		detail := msg.FileError
		if detail == "" {
			detail = "unknown error"
		}
		m.emit(Event{Type: EventLoadFailed, Detail: detail})
	case msg.Event == "property-change" && msg.ID == eofObserverID:
		var reached bool
		if err := json.Unmarshal(msg.Data, &reached); err != nil || !reached {
			return
		}
		m.emit(Event{Type: EventEndOfFile})
	}
}

func (m *MPV) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.logger.Warn().Str("event", string(ev.Type)).Msg("event channel full, dropping")
	}
}

// attach connects to a listening IPC socket and subscribes to end-of-file.
func (m *MPV) attach(ctx context.Context, socket string) (*ipcClient, error) {
	client, err := dialIPC(ctx, socket, m.logger, m.handleEvent)
	if err != nil {
		return nil, err
	}
	if _, err := client.Command(ctx, "observe_property", eofObserverID, "eof-reached"); err != nil {
		client.Close()
		return nil, fmt.Errorf("observe eof-reached: %w", err)
	}

	m.setClient(client)
	return client, nil
}

func (m *MPV) setClient(c *ipcClient) {
	m.mu.Lock()
	m.client = c
	m.mu.Unlock()

	if c != nil {
		telemetry.MediaEngineConnectionStatus.Set(1)
	} else {
		telemetry.MediaEngineConnectionStatus.Set(0)
	}
	if m.onConnection != nil {
		m.onConnection(c != nil)
	}
}

// Run starts mpv and restarts it whenever it exits, backing off between
// attempts. It returns when ctx is cancelled.
func (m *MPV) Run(ctx context.Context) error {
	backoff := minRestartBackoff
	for {
		started := time.Now()
		err := m.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(started) > stableRunDuration {
			backoff = minRestartBackoff
		}
		reason := "exited"
		if errors.Is(err, errIPCClosed) {
			reason = "ipc_closed"
		}
		telemetry.MediaEngineRestarts.WithLabelValues(reason).Inc()
		m.logger.Error().Err(err).Dur("backoff", backoff).Msg("mpv stopped, restarting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxRestartBackoff)
	}
}

func (m *MPV) runOnce(ctx context.Context) error {
	if err := os.Remove(m.cfg.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	cmd := exec.Command(m.cfg.Bin, m.Args()...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}
	m.logger.Info().Int("pid", cmd.Process.Pid).Str("socket", m.cfg.Socket).Msg("mpv started")

	exited := make(chan struct{})
	var waitErr error
	go func() {
		waitErr = cmd.Wait()
		close(exited)
	}()

	client, err := m.connect(ctx, exited)
	if err != nil {
		stopProcess(cmd, exited)
		return err
	}
	defer func() {
		// Fail in-flight commands before listeners hear about the disconnect.
		client.Close()
		m.setClient(nil)
	}()

	select {
	case <-exited:
		if waitErr == nil {
			return errors.New("mpv exited")
		}
		return fmt.Errorf("mpv process: %w", waitErr)
	case <-client.Done():
		stopProcess(cmd, exited)
		return errIPCClosed
	case <-ctx.Done():
		stopProcess(cmd, exited)
		return ctx.Err()
	}
}

// connect waits for the IPC socket to accept connections.
func (m *MPV) connect(ctx context.Context, exited <-chan struct{}) (*ipcClient, error) {
	deadline := time.NewTimer(m.cfg.DialTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(socketWaitInterval)
	defer ticker.Stop()

	for {
		client, err := m.attach(ctx, m.cfg.Socket)
		if err == nil {
			m.logger.Info().Msg("mpv ipc connected")
			return client, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-exited:
			return nil, errors.New("mpv exited before ipc was ready")
		case <-deadline.C:
			return nil, fmt.Errorf("mpv ipc socket %s not ready: %w", m.cfg.Socket, err)
		case <-ticker.C:
		}
	}
}

// stopProcess interrupts mpv and kills it if it does not exit in time.
func stopProcess(cmd *exec.Cmd, exited <-chan struct{}) {
	select {
	case <-exited:
		return
	default:
	}
	_ = cmd.Process.Signal(os.Interrupt)

	select {
	case <-time.After(stopGracePeriod):
		_ = cmd.Process.Kill()
		<-exited
	case <-exited:
	}
}
