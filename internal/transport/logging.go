// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"sync"

	applog "featidx/internal/log"
)

// LoggingTransport implements the Transport interface by writing every
// message to the debug log. It is the fallback when no network transport is
// configured.
type LoggingTransport struct {
	mu     sync.Mutex
	sent   int
	closed bool
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("transport: using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs data as JSON, or with %+v if it cannot be marshalled.
func (lt *LoggingTransport) Send(data any) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.closed {
		return ErrClosed
	}
	lt.sent++
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	if payload, err := json.Marshal(data); err == nil {
		applog.Debugf("transport: message %d (%T): %s", lt.sent, data, payload)
	} else {
		applog.Debugf("transport: message %d (%T): %+v (json: %v)", lt.sent, data, data, err)
	}
	return nil
}

// Sent returns the number of messages accepted.
func (lt *LoggingTransport) Sent() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.sent
}

// Close marks the transport closed.
func (lt *LoggingTransport) Close() error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if !lt.closed {
		applog.Debugf("transport: LoggingTransport closed after %d messages", lt.sent)
	}
	lt.closed = true
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
