// Package transport implements the Connection component: a single
// long-lived WebSocket stream to the browser, exposing a
// non-blocking send, a blocking send-and-wait, per-session event
// subscriptions, and the raw incoming-frame feed the Manager multiplexes
// into its own selection loop.
package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/wippy-projects/headless/protocol"
)

// DefaultSubscriptionCapacity is the default bound of a per-session event
// bus.
const DefaultSubscriptionCapacity = 64

// Connection owns one outbound WebSocket stream to the browser. All of its
// exported methods are safe to call from the single Manager goroutine that
// owns it; Connection performs no reconnection of its own — that is the
// Manager's job.
type Connection struct {
	conn net.Conn
	ids  protocol.IDAllocator
	log  *slog.Logger

	writeMu sync.Mutex

	// frames is the raw incoming-frame feed. The background reader
	// goroutine is the sole writer; it is closed when
	// the stream terminates.
	frames chan []byte

	closed chan struct{}
	once   sync.Once

	mu                 sync.Mutex
	subscriptions      map[string]chan *protocol.Frame
	browserEvents      []*protocol.Frame
	bufferedResponses  map[int64]*protocol.Frame
}

// Dial bootstraps and opens a Connection to the browser at addr (e.g.
// "localhost:9222"): HTTP discovery of the WebSocket URL, then dialing it
// with gobwas/ws — the WebSocket library the
// pack consistently depends on (chromedp/chromedp, ajsharma/browser_tail,
// snapps91/PDFRest, and the other_examples web-tester module all pin it).
func Dial(ctx context.Context, addr string, connectTimeout time.Duration, log *slog.Logger) (*Connection, error) {
	if log == nil {
		log = slog.Default()
	}

	wsURL, err := DiscoverWebSocketURL(ctx, addr, connectTimeout)
	if err != nil {
		return nil, err
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if connectTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	rawConn, _, _, err := ws.Dial(dialCtx, wsURL)
	if err != nil {
		return nil, protocol.New(protocol.ErrConnectionFailed, "dialing %s: %v", wsURL, err)
	}

	c := &Connection{
		conn:              rawConn,
		log:               log,
		frames:            make(chan []byte, 256),
		closed:            make(chan struct{}),
		subscriptions:     make(map[string]chan *protocol.Frame),
		bufferedResponses: make(map[int64]*protocol.Frame),
	}
	go c.readLoop()
	return c, nil
}

// readLoop pumps raw frames off the wire into c.frames until a read fails,
// at which point it latches c.closed.
func (c *Connection) readLoop() {
	defer close(c.frames)
	for {
		data, _, err := wsutil.ReadServerData(c.conn)
		if err != nil {
			if err != io.EOF {
				c.log.Debug("headless: connection read failed", "err", err)
			}
			c.latchClosed()
			return
		}
		select {
		case c.frames <- data:
		case <-c.closed:
			return
		}
	}
}

func (c *Connection) latchClosed() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		for session, ch := range c.subscriptions {
			close(ch)
			delete(c.subscriptions, session)
		}
		c.mu.Unlock()
	})
}

// IsClosed reports whether the stream has terminated.
func (c *Connection) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Close shuts down the underlying stream. Safe to call more than once.
func (c *Connection) Close() error {
	c.latchClosed()
	return c.conn.Close()
}

// SendAsync encodes and writes a command without waiting for its response,
// returning the assigned request identifier. The caller is responsible for
// matching the identifier against frames later yielded from Frames()/
// PumpMessage. This is the steady-state send the Manager uses so its
// selection loop never blocks on browser I/O.
func (c *Connection) SendAsync(method string, params []byte, session string) (int64, error) {
	if c.IsClosed() {
		return 0, protocol.New(protocol.ErrDisconnected, "connection closed")
	}

	id := c.ids.Next()
	raw, err := protocol.Encode(&protocol.Command{
		ID:        id,
		Method:    method,
		Params:    params,
		SessionID: session,
	})
	if err != nil {
		return 0, protocol.New(protocol.ErrInvalid, "encoding %s: %v", method, err)
	}

	c.writeMu.Lock()
	err = wsutil.WriteClientMessage(c.conn, ws.OpText, raw)
	c.writeMu.Unlock()
	if err != nil {
		c.latchClosed()
		return 0, protocol.New(protocol.ErrDisconnected, "writing %s: %v", method, err)
	}
	return id, nil
}

// Send writes method/params/session and blocks draining the stream until
// the matching response arrives, the stream closes, or timeout elapses.
// Non-matching frames encountered while draining are never dropped: events
// are routed to their subscriptions (or the browser-event buffer) exactly
// as PumpMessage would, and non-matching responses are parked in the
// drain_responses table for the Manager to collect afterward. Reserved for
// bootstrap and control-plane operations; the Manager uses SendAsync for
// its steady-state command traffic so its own loop never blocks.
func (c *Connection) Send(ctx context.Context, method string, params []byte, session string, timeout time.Duration) (json.RawMessage, error) {
	id, err := c.SendAsync(method, params, session)
	if err != nil {
		return nil, err
	}

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		select {
		case raw, ok := <-c.frames:
			if !ok {
				return nil, protocol.New(protocol.ErrDisconnected, "connection closed while waiting for %s", method)
			}
			frame := c.PumpMessage(raw)
			if frame == nil {
				continue
			}
			switch frame.Kind {
			case protocol.KindResponse:
				if frame.ID == id {
					return frame.Result, nil
				}
				c.bufferResponse(frame)
			case protocol.KindErrorResponse:
				if frame.ID == id {
					return nil, protocol.New(protocol.ErrGeneric, "CDP error(%d): %s", frame.Error.Code, frame.Error.Message)
				}
				c.bufferResponse(frame)
			}
			// KindUnknown frames are simply discarded on this path; they
			// carry no identifier to route by.

		case <-timeoutCh:
			return nil, protocol.New(protocol.ErrTimeout, "waiting for %s", method)

		case <-ctx.Done():
			return nil, protocol.New(protocol.ErrTimeout, "%s: %v", method, ctx.Err())
		}
	}
}

func (c *Connection) bufferResponse(frame *protocol.Frame) {
	c.mu.Lock()
	c.bufferedResponses[frame.ID] = frame
	c.mu.Unlock()
}

// DrainResponses returns and clears all response frames buffered by Send
// calls for identifiers other than the one being awaited. The Manager calls
// this after any sequence of blocking control-plane calls to route the
// buffered replies to their pending commands.
func (c *Connection) DrainResponses() []*protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bufferedResponses) == 0 {
		return nil
	}
	out := make([]*protocol.Frame, 0, len(c.bufferedResponses))
	for id, frame := range c.bufferedResponses {
		out = append(out, frame)
		delete(c.bufferedResponses, id)
	}
	return out
}

// Subscribe creates a bounded per-session event bus. capacity<=0 uses
// DefaultSubscriptionCapacity.
func (c *Connection) Subscribe(session string, capacity int) <-chan *protocol.Frame {
	if capacity <= 0 {
		capacity = DefaultSubscriptionCapacity
	}
	ch := make(chan *protocol.Frame, capacity)
	c.mu.Lock()
	c.subscriptions[session] = ch
	c.mu.Unlock()
	return ch
}

// Unsubscribe destroys a session's event bus, closing its channel.
func (c *Connection) Unsubscribe(session string) {
	c.mu.Lock()
	ch, ok := c.subscriptions[session]
	if ok {
		delete(c.subscriptions, session)
	}
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Frames exposes the raw incoming-frame feed (ws_channel) for the Manager
// to multiplex alongside its other message sources.
func (c *Connection) Frames() <-chan []byte {
	return c.frames
}

// PumpMessage decodes one raw frame received from Frames(). Event frames
// are routed internally to their session's subscription (or the
// session-less browser-event buffer) and PumpMessage returns nil; response
// and error-response frames are returned for the caller (the Manager) to
// route via its pending-reply table; unknown frames are returned as-is for
// logging.
func (c *Connection) PumpMessage(raw []byte) *protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pumpLocked(raw)
}

// pumpLocked is PumpMessage's body; callers must hold c.mu.
func (c *Connection) pumpLocked(raw []byte) *protocol.Frame {
	frame := protocol.Decode(raw)
	if frame.Kind != protocol.KindEvent {
		return frame
	}

	if frame.SessionID == "" {
		c.browserEvents = append(c.browserEvents, frame)
		return nil
	}

	ch, ok := c.subscriptions[frame.SessionID]
	if !ok {
		// Event for an unknown (or already-closed) session: dropped.
		return nil
	}
	select {
	case ch <- frame:
	default:
		// Overflow: drop the newest enqueue. The subscriber falling behind
		// loses this event but the connection never blocks on it.
	}
	return nil
}

// DrainBrowserEvents returns and clears events that arrived without a
// session identifier.
func (c *Connection) DrainBrowserEvents() []*protocol.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.browserEvents) == 0 {
		return nil
	}
	out := c.browserEvents
	c.browserEvents = nil
	return out
}
