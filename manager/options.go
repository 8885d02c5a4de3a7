package manager

import (
	"log/slog"
	"time"
)

// Defaults for Manager tuning parameters.
const (
	DefaultMaxTabs              = 16
	DefaultCreateTimeout        = 10 * time.Second
	DefaultCommandTimeout       = 30 * time.Second
	DefaultHealthInterval       = 30 * time.Second
	DefaultSubscriptionCapacity = 64
	DefaultReconnectBase        = 500 * time.Millisecond
	DefaultReconnectMax         = 30 * time.Second
	DefaultReconnectAttempts    = 5
)

// Option configures a Manager at construction time, following the
// functional-options pattern chromedp/chromedp's BrowserOption/PoolOption
// use (func(*T) applied in a loop, defaults filled in beforehand).
type Option func(*Manager)

// WithLogger sets the structured logger used for manager-level events.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMaxTabs bounds the number of concurrently attached tabs.
func WithMaxTabs(n int) Option {
	return func(m *Manager) { m.maxTabs = n }
}

// WithCreateTimeout bounds each step of the tab bootstrap sequence.
func WithCreateTimeout(d time.Duration) Option {
	return func(m *Manager) { m.createTimeout = d }
}

// WithCommandTimeout sets the default per-command timeout tab owners
// inherit unless they supply their own context deadline.
func WithCommandTimeout(d time.Duration) Option {
	return func(m *Manager) { m.commandTimeout = d }
}

// WithHealthInterval sets the fixed period of the health-check heartbeat. A
// plain time.Ticker drives this rather than a cron expression library
// (robfig/cron, used elsewhere in the retrieved pack): health probing is a
// constant-period heartbeat, not a calendar schedule.
func WithHealthInterval(d time.Duration) Option {
	return func(m *Manager) { m.healthInterval = d }
}

// WithSubscriptionCapacity bounds each tab's per-session event bus.
func WithSubscriptionCapacity(n int) Option {
	return func(m *Manager) { m.subscriptionCap = n }
}

// WithReconnectBackoff sets the initial and maximum reconnect wait.
func WithReconnectBackoff(base, max time.Duration) Option {
	return func(m *Manager) {
		m.reconnectBase = base
		m.reconnectMax = max
	}
}

// WithReconnectAttempts bounds how many bootstrap attempts the Manager
// makes after a disconnect before giving up and stopping its run loop for
// good, surfaced through Err().
func WithReconnectAttempts(n int) Option {
	return func(m *Manager) { m.reconnectAttempts = n }
}
