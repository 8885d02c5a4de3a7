package manager

import (
	"time"

	"github.com/wippy-projects/headless/protocol"
)

const healthCheckTimeout = 5 * time.Second

// runHealthCheck issues Browser.getVersion at the configured interval. A
// successful round-trip simply lets the ticker continue; a failed one
// triggers the full disconnect-and-reconnect procedure.
func (m *Manager) runHealthCheck() {
	_, err := m.conn.Send(m.ctx, "Browser.getVersion", nil, "", healthCheckTimeout)
	m.drainAfterControlSequence()
	if err != nil {
		m.log.Warn("headless: health check failed", "err", err)
		m.handleDisconnect()
	}
}

// handleDisconnect fails every pending reply before the tab table is
// cleared, so owners always observe CDP_DISCONNECTED on in-flight commands
// rather than TAB_CLOSED.
func (m *Manager) handleDisconnect() {
	for id, ch := range m.pending {
		ch <- &CommandReply{Err: protocol.New(protocol.ErrDisconnected, "connection lost")}
		delete(m.pending, id)
	}

	for sessionID, entry := range m.tabs {
		m.conn.Unsubscribe(sessionID)
		close(entry.done)
		delete(m.tabs, sessionID)
	}
	for owner := range m.owners {
		delete(m.owners, owner)
	}

	for _, waiter := range m.waiters {
		waiter.reply <- protocol.New(protocol.ErrDisconnected, "connection lost")
	}
	m.waiters = nil

	_ = m.conn.Close()

	conn, err := m.reconnectWithBackoff()
	if err != nil {
		m.runErr = protocol.New(protocol.ErrConnectionFailed, "bootstrap after disconnect: %v", err)
		m.cancel()
		return
	}
	m.conn = conn
}

// reconnectWithBackoff bootstraps a fresh connection against the same
// address, retrying a bounded number of times with exponential backoff —
// grounded on ajsharma/browser_tail's internal/cdp/manager.go reconnect
// loop — before giving up. Exhausting every attempt is fatal for this
// Manager instance; the caller sets runErr and stops the run loop.
func (m *Manager) reconnectWithBackoff() (connection, error) {
	wait := m.reconnectBase
	var lastErr error
	for attempt := 0; attempt < m.reconnectAttempts; attempt++ {
		select {
		case <-m.ctx.Done():
			return nil, m.ctx.Err()
		default:
		}

		conn, err := m.dial(m.ctx)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		m.log.Warn("headless: reconnect attempt failed", "attempt", attempt+1, "err", err, "retry_in", wait)

		select {
		case <-time.After(wait):
		case <-m.ctx.Done():
			return nil, m.ctx.Err()
		}
		wait *= 2
		if wait > m.reconnectMax {
			wait = m.reconnectMax
		}
	}
	if lastErr == nil {
		lastErr = protocol.New(protocol.ErrConnectionFailed, "no reconnect attempts configured")
	}
	return nil, lastErr
}
