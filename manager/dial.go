package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/wippy-projects/headless/transport"
)

// NewTransportDialer returns the Dialer New and the run loop's own
// reconnect logic use to reach a real browser at addr: discovery over
// HTTP, then a gobwas/ws WebSocket dial, exactly as transport.Dial
// performs it. Kept in its own file rather than manager.go so the rest of
// the package stays decoupled from the transport package's concrete type,
// needed only here to satisfy the connection interface.
func NewTransportDialer(addr string, connectTimeout time.Duration, log *slog.Logger) Dialer {
	return func(ctx context.Context) (connection, error) {
		return transport.Dial(ctx, addr, connectTimeout, log)
	}
}
