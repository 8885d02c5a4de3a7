// Package manager implements the coordinating actor: a single goroutine
// owning one transport.Connection, a tab registry, a
// pending-reply table, and a FIFO admission queue, serving any number of
// independent tab owner goroutines over channels. No state here is ever
// touched from outside the run loop; owners interact exclusively through
// request channels, following the cmdQueue/qres pattern chromedp/chromedp's
// browser.go uses for its own single-threaded command multiplexing.
package manager

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wippy-projects/headless/protocol"
)

// connection is the subset of transport.Connection the Manager depends on.
// Abstracting it behind an interface — rather than importing the transport
// package's concrete type directly into every call site — lets tests drive
// the run loop against a fake stream, the way chromedp/chromedp's conn.go
// defines a Transport interface so Browser never assumes a real websocket.
type connection interface {
	SendAsync(method string, params []byte, session string) (int64, error)
	Send(ctx context.Context, method string, params []byte, session string, timeout time.Duration) (json.RawMessage, error)
	Subscribe(session string, capacity int) <-chan *protocol.Frame
	Unsubscribe(session string)
	DrainResponses() []*protocol.Frame
	DrainBrowserEvents() []*protocol.Frame
	Frames() <-chan []byte
	PumpMessage(raw []byte) *protocol.Frame
	IsClosed() bool
	Close() error
}

// Dialer reconnects the Manager to a fresh connection. Supplied so the
// Manager never knows about WebSocket dialing details directly.
type Dialer func(ctx context.Context) (connection, error)

// tabEntry is the registry record for one attached tab.
type tabEntry struct {
	owner            uuid.UUID
	sessionID        string
	targetID         string
	browserContextID string
	events           <-chan *protocol.Frame
	done             chan struct{}
}

type requestKind int

const (
	reqCreateTab requestKind = iota
	reqCloseTab
	reqCommand
	reqOwnerExit
)

type request struct {
	kind requestKind

	ctx context.Context

	// reqCommand
	sessionID string
	method    string
	params    []byte

	// reqCloseTab / reqOwnerExit
	owner uuid.UUID

	reply chan interface{}
}

// CreateReply is returned to a caller of Manager.CreateTab.
type CreateReply struct {
	Owner     uuid.UUID
	SessionID string
	Events    <-chan *protocol.Frame
	Done      <-chan struct{}
}

// CommandReply is returned to a caller of Manager.RunCommand.
type CommandReply struct {
	Result json.RawMessage
	Err    error
}

// Manager is the coordinating actor owning the browser connection. The
// zero value is not usable; construct with New.
type Manager struct {
	conn   connection
	dial   Dialer
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	maxTabs           int
	createTimeout     time.Duration
	commandTimeout    time.Duration
	healthInterval    time.Duration
	subscriptionCap   int
	reconnectBase     time.Duration
	reconnectMax      time.Duration
	reconnectAttempts int

	requests chan request
	stopped  chan struct{}

	// runErr is set only if the run loop exits because reconnection after a
	// disconnect exhausted every attempt, so an embedding application can
	// restart the Manager itself. Read it with Err() after Done() closes.
	runErr error

	// run-loop-only state: never touched outside run().
	tabs    map[string]*tabEntry
	owners  map[uuid.UUID]string
	pending map[int64]chan *CommandReply
	waiters []request
}

// New constructs a Manager and starts its run loop. dial is called once
// immediately to establish the first connection, and again on every
// reconnection attempt.
func New(ctx context.Context, dial Dialer, opts ...Option) (*Manager, error) {
	runCtx, cancel := context.WithCancel(ctx)

	m := &Manager{
		dial:            dial,
		log:             slog.Default(),
		ctx:             runCtx,
		cancel:          cancel,
		maxTabs:         DefaultMaxTabs,
		createTimeout:   DefaultCreateTimeout,
		commandTimeout:  DefaultCommandTimeout,
		healthInterval:  DefaultHealthInterval,
		subscriptionCap: DefaultSubscriptionCapacity,
		reconnectBase:   DefaultReconnectBase,
		reconnectMax:    DefaultReconnectMax,
		reconnectAttempts: DefaultReconnectAttempts,
		requests:        make(chan request),
		stopped:         make(chan struct{}),
		tabs:            make(map[string]*tabEntry),
		owners:          make(map[uuid.UUID]string),
		pending:         make(map[int64]chan *CommandReply),
	}
	for _, o := range opts {
		o(m)
	}

	conn, err := dial(runCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	m.conn = conn

	go m.run()
	return m, nil
}

// Close stops the run loop and the underlying connection.
func (m *Manager) Close() {
	m.cancel()
	<-m.stopped
}

// Done reports when the run loop has exited, whether from an explicit
// Close or from an unrecoverable reconnect failure.
func (m *Manager) Done() <-chan struct{} {
	return m.stopped
}

// Err returns the error that caused the run loop to exit on its own,
// outside of an explicit Close call. Nil if the loop is still running or
// exited cleanly. Only meaningful after Done() has closed.
func (m *Manager) Err() error {
	return m.runErr
}

// CreateTab admits a new tab, blocking if the manager is at MaxTabs until a
// slot frees. Returns TIMEOUT if ctx is done before the tab is created.
func (m *Manager) CreateTab(ctx context.Context) (*CreateReply, error) {
	reply := make(chan interface{}, 1)
	select {
	case m.requests <- request{kind: reqCreateTab, ctx: ctx, reply: reply}:
	case <-m.ctx.Done():
		return nil, protocol.New(protocol.ErrDisconnected, "manager stopped")
	case <-ctx.Done():
		return nil, protocol.New(protocol.ErrTimeout, "create tab: %v", ctx.Err())
	}
	select {
	case v := <-reply:
		switch r := v.(type) {
		case *CreateReply:
			return r, nil
		case error:
			return nil, r
		}
		return nil, protocol.New(protocol.ErrGeneric, "unexpected reply type")
	case <-ctx.Done():
		return nil, protocol.New(protocol.ErrTimeout, "create tab: %v", ctx.Err())
	}
}

// CloseTab releases a tab and admits the next FIFO waiter, if any.
func (m *Manager) CloseTab(ctx context.Context, owner uuid.UUID) error {
	reply := make(chan interface{}, 1)
	select {
	case m.requests <- request{kind: reqCloseTab, ctx: ctx, owner: owner, reply: reply}:
	case <-m.ctx.Done():
		return nil
	}
	select {
	case v := <-reply:
		if err, ok := v.(error); ok {
			return err
		}
		return nil
	case <-ctx.Done():
		return protocol.New(protocol.ErrTimeout, "close tab: %v", ctx.Err())
	}
}

// NotifyOwnerExit tells the Manager a tab owner goroutine exited without an
// explicit CloseTab, so its registry entry and browser-side target can be
// cleaned up.
func (m *Manager) NotifyOwnerExit(owner uuid.UUID) {
	select {
	case m.requests <- request{kind: reqOwnerExit, owner: owner, reply: make(chan interface{}, 1)}:
	case <-m.ctx.Done():
	}
}

// RunCommand sends a CDP command scoped to session and waits for its reply.
func (m *Manager) RunCommand(ctx context.Context, sessionID, method string, params []byte) (*CommandReply, error) {
	if _, ok := ctx.Deadline(); !ok && m.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.commandTimeout)
		defer cancel()
	}
	reply := make(chan interface{}, 1)
	select {
	case m.requests <- request{kind: reqCommand, ctx: ctx, sessionID: sessionID, method: method, params: params, reply: reply}:
	case <-m.ctx.Done():
		return nil, protocol.New(protocol.ErrDisconnected, "manager stopped")
	case <-ctx.Done():
		return nil, protocol.New(protocol.ErrTimeout, "%s: %v", method, ctx.Err())
	}
	select {
	case v := <-reply:
		switch r := v.(type) {
		case *CommandReply:
			return r, nil
		case error:
			return nil, r
		}
		return nil, protocol.New(protocol.ErrGeneric, "unexpected reply type")
	case <-ctx.Done():
		return nil, protocol.New(protocol.ErrTimeout, "%s: %v", method, ctx.Err())
	}
}

// run is the single actor loop. All registry/pending-table/waiter-queue
// mutation happens here and nowhere else.
func (m *Manager) run() {
	defer close(m.stopped)
	defer m.conn.Close()

	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return

		case raw, ok := <-m.conn.Frames():
			if !ok {
				m.handleDisconnect()
				if m.runErr != nil {
					return
				}
				ticker.Reset(m.healthInterval)
				continue
			}
			if frame := m.conn.PumpMessage(raw); frame != nil {
				m.routeReply(frame)
			}

		case req := <-m.requests:
			m.handleRequest(req)

		case <-ticker.C:
			m.runHealthCheck()
		}
	}
}

func (m *Manager) handleRequest(req request) {
	switch req.kind {
	case reqCreateTab:
		m.handleCreate(req)
	case reqCloseTab:
		m.handleClose(req)
	case reqCommand:
		m.handleCommand(req)
	case reqOwnerExit:
		m.handleOwnerExit(req)
	}
}

func (m *Manager) routeReply(frame *protocol.Frame) {
	switch frame.Kind {
	case protocol.KindResponse, protocol.KindErrorResponse:
		ch, ok := m.pending[frame.ID]
		if !ok {
			return
		}
		delete(m.pending, frame.ID)
		if frame.Kind == protocol.KindErrorResponse {
			ch <- &CommandReply{Err: protocol.Classify(frame.Error.Message, "")}
			return
		}
		ch <- &CommandReply{Result: frame.Result}

	default:
		m.log.Debug("headless: dropping unrouteable frame", "kind", frame.Kind)
	}
}

// drainAfterControlSequence routes every buffered response produced while
// the Manager itself was blocked inside a synchronous conn.Send call, so
// commands issued concurrently by other tabs are never starved by a tab
// bootstrap or teardown sequence.
func (m *Manager) drainAfterControlSequence() {
	for _, frame := range m.conn.DrainResponses() {
		m.routeReply(frame)
	}
}
