package manager

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/wippy-projects/headless/protocol"
)

// The package deliberately avoids depending on a generated cdproto client,
// so command params are built as raw JSON the way protocol.Command expects
// and results are decoded into small local structs naming only the fields
// this package reads.
type createBrowserContextResult struct {
	BrowserContextID string `json:"browserContextId"`
}

type createTargetResult struct {
	TargetID string `json:"targetId"`
}

type attachToTargetResult struct {
	SessionID string `json:"sessionId"`
}

// handleCreate admits a new tab if under capacity, or enqueues the request
// as a FIFO waiter otherwise.
func (m *Manager) handleCreate(req request) {
	if m.maxTabs > 0 && len(m.tabs) >= m.maxTabs {
		m.waiters = append(m.waiters, req)
		return
	}
	m.admit(req)
}

// admit runs the Target.createBrowserContext -> Target.createTarget ->
// Target.attachToTarget -> domain-enable sequence, grounded on
// chromedp/chromedp's context.go (newSession), generalized from a single
// current-session model to the Manager's multi-tab registry. Any failure
// rolls back whatever was already created, in reverse order. It reports
// whether a tab was actually admitted, so admitNextWaiter knows whether the
// slot it handed out is still free.
func (m *Manager) admit(req request) bool {
	ctx := req.ctx

	bcRaw, err := m.conn.Send(ctx, "Target.createBrowserContext",
		mustMarshal(map[string]interface{}{"disposeOnDetach": true}), "", m.createTimeout)
	m.drainAfterControlSequence()
	if err != nil {
		req.reply <- err
		return false
	}
	var bc createBrowserContextResult
	if err := json.Unmarshal(bcRaw, &bc); err != nil {
		req.reply <- protocol.New(protocol.ErrGeneric, "decoding createBrowserContext result: %v", err)
		return false
	}

	ctRaw, err := m.conn.Send(ctx, "Target.createTarget", mustMarshal(map[string]interface{}{
		"url":              "about:blank",
		"browserContextId": bc.BrowserContextID,
	}), "", m.createTimeout)
	m.drainAfterControlSequence()
	if err != nil {
		m.disposeBrowserContext(bc.BrowserContextID)
		req.reply <- err
		return false
	}
	var ct createTargetResult
	if err := json.Unmarshal(ctRaw, &ct); err != nil {
		m.disposeBrowserContext(bc.BrowserContextID)
		req.reply <- protocol.New(protocol.ErrGeneric, "decoding createTarget result: %v", err)
		return false
	}

	atRaw, err := m.conn.Send(ctx, "Target.attachToTarget", mustMarshal(map[string]interface{}{
		"targetId": ct.TargetID,
		"flatten":  true,
	}), "", m.createTimeout)
	m.drainAfterControlSequence()
	if err != nil {
		m.closeTarget(ct.TargetID)
		m.disposeBrowserContext(bc.BrowserContextID)
		req.reply <- err
		return false
	}
	var at attachToTargetResult
	if err := json.Unmarshal(atRaw, &at); err != nil {
		m.closeTarget(ct.TargetID)
		m.disposeBrowserContext(bc.BrowserContextID)
		req.reply <- protocol.New(protocol.ErrGeneric, "decoding attachToTarget result: %v", err)
		return false
	}

	// Domain-enable failures are logged and tolerated, not fatal: a tab
	// with a domain that failed to enable is still usable.
	for _, domain := range []string{"Page.enable", "Runtime.enable", "Network.enable", "DOM.enable"} {
		if _, err := m.conn.Send(ctx, domain, nil, at.SessionID, m.createTimeout); err != nil {
			m.log.Warn("headless: domain enable failed", "domain", domain, "session", at.SessionID, "err", err)
		}
		m.drainAfterControlSequence()
	}

	owner := uuid.New()
	events := m.conn.Subscribe(at.SessionID, m.subscriptionCap)
	entry := &tabEntry{
		owner:            owner,
		sessionID:        at.SessionID,
		targetID:         ct.TargetID,
		browserContextID: bc.BrowserContextID,
		events:           events,
		done:             make(chan struct{}),
	}
	m.tabs[at.SessionID] = entry
	m.owners[owner] = at.SessionID

	req.reply <- &CreateReply{
		Owner:     owner,
		SessionID: at.SessionID,
		Events:    events,
		Done:      entry.done,
	}
	return true
}

func (m *Manager) closeTarget(targetID string) {
	_, _ = m.conn.Send(m.ctx, "Target.closeTarget", mustMarshal(map[string]interface{}{"targetId": targetID}), "", m.createTimeout)
	m.drainAfterControlSequence()
}

func (m *Manager) disposeBrowserContext(browserContextID string) {
	_, _ = m.conn.Send(m.ctx, "Target.disposeBrowserContext", mustMarshal(map[string]interface{}{"browserContextId": browserContextID}), "", m.createTimeout)
	m.drainAfterControlSequence()
}

// handleClose tears a tab down and, if any request is waiting for a slot,
// admits the oldest one: capacity is reclaimed and FIFO order preserved.
func (m *Manager) handleClose(req request) {
	sessionID, ok := m.owners[req.owner]
	if !ok {
		req.reply <- (error)(nil)
		return
	}
	m.teardown(sessionID, req.owner)
	req.reply <- (error)(nil)
	m.admitNextWaiter()
}

// handleOwnerExit is handleClose's unsolicited counterpart: a tab owner
// goroutine exited without calling CloseTab.
func (m *Manager) handleOwnerExit(req request) {
	sessionID, ok := m.owners[req.owner]
	if !ok {
		return
	}
	m.teardown(sessionID, req.owner)
	m.admitNextWaiter()
}

func (m *Manager) teardown(sessionID string, owner uuid.UUID) {
	entry, ok := m.tabs[sessionID]
	if !ok {
		return
	}
	m.closeTarget(entry.targetID)
	m.disposeBrowserContext(entry.browserContextID)

	m.conn.Unsubscribe(sessionID)
	close(entry.done)
	delete(m.tabs, sessionID)
	delete(m.owners, owner)
}

// admitNextWaiter hands the freed slot to the oldest waiter. If admitting
// it fails on a genuine browser error, that waiter's own reply already
// carries the error, but the slot it was given is still free and other
// waiters remain queued behind it: keep trying the next one instead of
// leaving the slot idle and letting a later handleCreate jump the FIFO
// queue (len(m.tabs) would be under capacity again either way).
func (m *Manager) admitNextWaiter() {
	for len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		if m.admit(next) {
			return
		}
	}
}

// handleCommand validates the session and connection before writing to the
// wire.
func (m *Manager) handleCommand(req request) {
	if _, ok := m.tabs[req.sessionID]; !ok {
		req.reply <- protocol.New(protocol.ErrTabClosed, "unknown session %s", req.sessionID)
		return
	}
	if m.conn.IsClosed() {
		req.reply <- protocol.New(protocol.ErrDisconnected, "connection closed")
		return
	}

	id, err := m.conn.SendAsync(req.method, req.params, req.sessionID)
	if err != nil {
		req.reply <- err
		return
	}
	ch := make(chan *CommandReply, 1)
	m.pending[id] = ch
	go func() {
		select {
		case r := <-ch:
			req.reply <- r
		case <-req.ctx.Done():
			req.reply <- protocol.New(protocol.ErrTimeout, "%s: %v", req.method, req.ctx.Err())
		case <-m.ctx.Done():
			req.reply <- protocol.New(protocol.ErrDisconnected, "manager stopped")
		}
	}()
}

func mustMarshal(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
