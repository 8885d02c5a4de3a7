// Package tab implements the thin client held by each tab owner: command
// round-trips to the manager, an event-wait loop that also feeds the fetch
// interception state machine, and the download-capture helpers built on top
// of it.
package tab

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wippy-projects/headless/manager"
	"github.com/wippy-projects/headless/protocol"
)

// managerClient is the subset of *manager.Manager a Tab depends on,
// abstracted so tests can drive it against a double instead of a live
// manager run loop.
type managerClient interface {
	RunCommand(ctx context.Context, sessionID, method string, params []byte) (*manager.CommandReply, error)
	CloseTab(ctx context.Context, owner uuid.UUID) error
}

// Tab is a handle to one attached browser tab. Every high-level page
// operation (click, type, navigate, and so on — mechanical wrappers built
// on top of this package) reduces to Command or WaitForEvent.
type Tab struct {
	m       managerClient
	owner   uuid.UUID
	session string
	events  <-chan *protocol.Frame
	done    <-chan struct{}
	log     *slog.Logger

	commandTimeout time.Duration

	fetch *fetchState
}

// Option configures a Tab at construction.
type Option func(*Tab)

// WithCommandTimeout overrides the default per-command timeout used when
// the caller's context carries no deadline.
func WithCommandTimeout(d time.Duration) Option {
	return func(t *Tab) { t.commandTimeout = d }
}

// WithLogger sets the structured logger used for tab-level diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(t *Tab) { t.log = log }
}

const defaultCommandTimeout = 30 * time.Second

// New wraps a manager.CreateReply as a Tab handle.
func New(m managerClient, reply *manager.CreateReply, opts ...Option) *Tab {
	t := &Tab{
		m:              m,
		owner:          reply.Owner,
		session:        reply.SessionID,
		events:         reply.Events,
		done:           reply.Done,
		log:            slog.Default(),
		commandTimeout: defaultCommandTimeout,
	}
	t.fetch = newFetchState(t)
	for _, o := range opts {
		o(t)
	}
	return t
}

// SessionID returns the CDP session identifier scoping this tab's commands
// and events.
func (t *Tab) SessionID() string { return t.session }

// Close releases the tab and its underlying browser target.
func (t *Tab) Close(ctx context.Context) error {
	return t.m.CloseTab(ctx, t.owner)
}

// Command performs one synchronous command round-trip through the manager
// and decodes the raw result into v, if v is non-nil.
func (t *Tab) Command(ctx context.Context, method string, params interface{}, v interface{}) error {
	ctx, cancel := t.withDeadline(ctx)
	defer cancel()

	var raw []byte
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return protocol.New(protocol.ErrInvalid, "encoding params for %s: %v", method, err)
		}
		raw = b
	}

	reply, err := t.m.RunCommand(ctx, t.session, method, raw)
	if err != nil {
		return err
	}
	if reply.Err != nil {
		return reply.Err
	}
	if v == nil || len(reply.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Result, v); err != nil {
		return protocol.New(protocol.ErrGeneric, "decoding result of %s: %v", method, err)
	}
	return nil
}

func (t *Tab) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.commandTimeout)
}

// BlockResources enables or updates resource-category blocking on this
// tab's Fetch interception channel. Passing an empty set disables blocking
// (but preserves an active download capture, if any).
func (t *Tab) BlockResources(ctx context.Context, categories []string) error {
	return t.fetch.BlockResources(ctx, categories)
}

// ExpectDownload captures the first download produced while action runs,
// layering download capture on top of any active resource blocking and
// reverting to that prior state afterward.
func (t *Tab) ExpectDownload(ctx context.Context, action func(context.Context) error) (*Download, error) {
	return t.fetch.ExpectDownload(ctx, action)
}

// WaitForEvent blocks until an event named method is observed on this tab's
// forwarded-event feed, optionally filtered by predicate, ctx expires, or
// the tab closes. Every event is offered to the fetch state machine before
// the method/predicate match is attempted, so interception bookkeeping
// never needs a second listener.
func (t *Tab) WaitForEvent(ctx context.Context, method string, predicate func(params json.RawMessage) bool) (json.RawMessage, error) {
	for {
		select {
		case frame, ok := <-t.events:
			if !ok {
				return nil, protocol.New(protocol.ErrTabClosed, "tab closed while waiting for %s", method)
			}
			if t.fetch.handle(ctx, frame) {
				continue
			}
			if frame.Method != method {
				continue
			}
			if predicate != nil && !predicate(frame.Params) {
				continue
			}
			return frame.Params, nil

		case <-t.done:
			return nil, protocol.New(protocol.ErrTabClosed, "tab closed while waiting for %s", method)

		case <-ctx.Done():
			return nil, protocol.New(protocol.ErrTimeout, "waiting for %s: %v", method, ctx.Err())
		}
	}
}
