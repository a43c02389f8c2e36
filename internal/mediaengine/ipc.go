/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package mediaengine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// errIPCClosed is returned for commands pending when the connection drops.
var errIPCClosed = errors.New("mpv ipc connection closed")

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage covers both command replies and asynchronous events.
type ipcMessage struct {
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	Event     string          `json:"event"`
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

// ipcClient speaks mpv's line-delimited JSON protocol over a unix socket.
type ipcClient struct {
	conn    net.Conn
	logger  zerolog.Logger
	onEvent func(ipcMessage)

	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan ipcMessage
	closed  chan struct{}
	once    sync.Once
}

func dialIPC(ctx context.Context, socket string, logger zerolog.Logger, onEvent func(ipcMessage)) (*ipcClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socket)
	if err != nil {
		return nil, err
	}

	c := &ipcClient{
		conn:    conn,
		logger:  logger,
		onEvent: onEvent,
		pending: make(map[int64]chan ipcMessage),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *ipcClient) readLoop() {
	defer c.Close()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.logger.Warn().Err(err).Str("line", scanner.Text()).Msg("unparseable mpv ipc message")
			continue
		}

		if msg.Event != "" {
			if c.onEvent != nil {
				c.onEvent(msg)
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Debug().Err(err).Msg("mpv ipc read ended")
	}
}

// Command sends one command and waits for its reply.
func (c *ipcClient) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	reply := make(chan ipcMessage, 1)

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil, errIPCClosed
	default:
	}
	c.pending[id] = reply
	c.mu.Unlock()

	line, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	select {
	case msg := <-reply:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-c.closed:
		return nil, errIPCClosed
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *ipcClient) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Done is closed once the connection is gone.
func (c *ipcClient) Done() <-chan struct{} {
	return c.closed
}

// Close shuts the connection. Pending commands fail with errIPCClosed.
func (c *ipcClient) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close()
		c.mu.Lock()
		close(c.closed)
		c.pending = make(map[int64]chan ipcMessage)
		c.mu.Unlock()
	})
	return err
}
