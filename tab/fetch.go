package tab

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/wippy-projects/headless/protocol"
)

// interceptState is one of the four states the Fetch interception channel
// can be in. Resource blocking and download capture both drive this
// machine; Both is reached when either feature is layered on top of the
// other, in either order.
type interceptState int

const (
	stateOff interceptState = iota
	stateBlockingOnly
	stateDownloadOnly
	stateBoth
)

type headerEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// requestPausedEvent is the Fetch.requestPaused payload. A Response-stage
// pause carries a status code or response headers; a Request-stage pause
// carries neither.
type requestPausedEvent struct {
	RequestID          string        `json:"requestId"`
	ResourceType       string        `json:"resourceType"`
	ResponseStatusCode int64         `json:"responseStatusCode,omitempty"`
	ResponseHeaders    []headerEntry `json:"responseHeaders,omitempty"`
	Request            struct {
		URL    string `json:"url"`
		Method string `json:"method"`
	} `json:"request"`
}

func (e *requestPausedEvent) isResponseStage() bool {
	return e.ResponseStatusCode != 0 || len(e.ResponseHeaders) > 0
}

// Download is the result of a completed expect-download cycle.
type Download struct {
	Data     []byte
	Filename string
	MimeType string
	Size     int
}

// fetchState owns the Fetch-domain interception bookkeeping for one tab. It
// is never touched concurrently: both its transitions and its event
// handling happen on the goroutine running Tab.WaitForEvent /
// Tab.ExpectDownload.
type fetchState struct {
	tab *Tab

	state   interceptState
	blocked map[string]struct{} // blocked resource categories, exact CDP resourceType casing ("Image", "Stylesheet", ...)

	// download, if non-nil, is the channel the in-progress ExpectDownload
	// call is waiting on.
	download chan *Download
}

func newFetchState(t *Tab) *fetchState {
	return &fetchState{tab: t, blocked: make(map[string]struct{})}
}

// BlockResources transitions to BlockingOnly if categories is non-empty,
// else back to Off, preserving a concurrent DownloadOnly/Both overlay.
// Categories are CDP resourceType values ("Image", "Stylesheet", ...).
func (f *fetchState) BlockResources(ctx context.Context, categories []string) error {
	f.blocked = make(map[string]struct{}, len(categories))
	for _, c := range categories {
		f.blocked[c] = struct{}{}
	}

	downloading := f.state == stateDownloadOnly || f.state == stateBoth
	switch {
	case len(categories) > 0 && downloading:
		f.state = stateBoth
	case len(categories) > 0:
		f.state = stateBlockingOnly
	case downloading:
		f.state = stateDownloadOnly
	default:
		f.state = stateOff
	}
	return f.reconcile(ctx)
}

// BeginExpectDownload layers download capture on top of whatever blocking
// state is active: BlockingOnly -> Both, Off -> DownloadOnly.
func (f *fetchState) BeginExpectDownload(ctx context.Context) error {
	if err := f.tab.Command(ctx, "Browser.setDownloadBehavior", map[string]string{"behavior": "allow"}, nil); err != nil {
		return err
	}
	if f.state == stateBlockingOnly {
		f.state = stateBoth
	} else {
		f.state = stateDownloadOnly
	}
	return f.reconcile(ctx)
}

// EndExpectDownload reverts to the blocking-only steady state if that's
// where capture was layered on top of, else all the way to Off.
func (f *fetchState) EndExpectDownload(ctx context.Context) error {
	if f.state == stateBoth {
		f.state = stateBlockingOnly
	} else {
		f.state = stateOff
	}
	return f.reconcile(ctx)
}

// reconcile disables Fetch and re-enables it with the pattern set matching
// the current state: every transition disables then re-enables rather
// than patching the pattern list in place.
func (f *fetchState) reconcile(ctx context.Context) error {
	if f.state == stateOff {
		return f.tab.Command(ctx, "Fetch.disable", nil, nil)
	}

	var patterns []map[string]string
	switch f.state {
	case stateBlockingOnly:
		patterns = []map[string]string{{"requestStage": "Request"}}
	case stateDownloadOnly:
		patterns = []map[string]string{{"requestStage": "Response"}}
	case stateBoth:
		patterns = []map[string]string{
			{"requestStage": "Request"},
			{"requestStage": "Response"},
		}
	}

	if err := f.tab.Command(ctx, "Fetch.disable", nil, nil); err != nil {
		return err
	}
	return f.tab.Command(ctx, "Fetch.enable", map[string]interface{}{"patterns": patterns}, nil)
}

// ExpectDownload begins download capture, runs action (which is expected to
// trigger a download-producing navigation or click), and waits for either
// the captured bytes or action's own error. action's error aborts the wait
// immediately rather than waiting out the timeout.
func (f *fetchState) ExpectDownload(ctx context.Context, action func(context.Context) error) (*Download, error) {
	if err := f.BeginExpectDownload(ctx); err != nil {
		return nil, err
	}
	defer f.EndExpectDownload(ctx)

	f.download = make(chan *Download, 1)
	defer func() { f.download = nil }()

	actionErr := make(chan error, 1)
	go func() { actionErr <- action(ctx) }()

	for {
		select {
		case dl := <-f.download:
			return dl, nil

		case err := <-actionErr:
			if err != nil {
				return nil, err
			}
			// action completed without error; keep pumping events until the
			// download arrives or ctx expires.
			actionErr = nil

		case frame, ok := <-f.tab.events:
			if !ok {
				return nil, protocol.New(protocol.ErrTabClosed, "tab closed while waiting for download")
			}
			f.handle(ctx, frame)

		case <-f.tab.done:
			return nil, protocol.New(protocol.ErrTabClosed, "tab closed while waiting for download")

		case <-ctx.Done():
			return nil, protocol.New(protocol.ErrDownloadTimeout, "waiting for download: %v", ctx.Err())
		}
	}
}

// handle offers one forwarded event to the interception machine. It
// returns true if the event was Fetch.requestPaused and has been fully
// handled (the caller's event-wait loop should continue), false otherwise.
func (f *fetchState) handle(ctx context.Context, frame *protocol.Frame) bool {
	if frame.Method != "Fetch.requestPaused" {
		return false
	}

	var ev requestPausedEvent
	if err := json.Unmarshal(frame.Params, &ev); err != nil {
		return true
	}

	if ev.isResponseStage() {
		f.handlePausedResponse(ctx, &ev)
		return true
	}
	f.handlePausedRequest(ctx, &ev)
	return true
}

func (f *fetchState) handlePausedResponse(ctx context.Context, ev *requestPausedEvent) {
	isDownload, filename, mimeType := detectDownload(ev.ResponseHeaders)
	if !isDownload || f.download == nil {
		_ = f.tab.Command(ctx, "Fetch.continueRequest", map[string]string{"requestId": ev.RequestID}, nil)
		return
	}

	var body struct {
		Body          string `json:"body"`
		Base64Encoded bool   `json:"base64Encoded"`
	}
	if err := f.tab.Command(ctx, "Fetch.getResponseBody", map[string]string{"requestId": ev.RequestID}, &body); err != nil {
		f.tab.log.Warn("headless: reading download body failed", "request_id", ev.RequestID, "err", err)
		_ = f.tab.Command(ctx, "Fetch.continueRequest", map[string]string{"requestId": ev.RequestID}, nil)
		return
	}

	data := []byte(body.Body)
	if body.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			f.tab.log.Warn("headless: decoding download body failed", "request_id", ev.RequestID, "err", err)
		} else {
			data = decoded
		}
	}

	// Fulfill with an empty body so the browser doesn't also persist the
	// file to disk; the caller receives the bytes directly.
	_ = f.tab.Command(ctx, "Fetch.fulfillRequest", map[string]interface{}{
		"requestId":    ev.RequestID,
		"responseCode": 200,
	}, nil)

	f.download <- &Download{Data: data, Filename: filename, MimeType: mimeType, Size: len(data)}
}

func (f *fetchState) handlePausedRequest(ctx context.Context, ev *requestPausedEvent) {
	if _, blocked := f.blocked[ev.ResourceType]; blocked {
		_ = f.tab.Command(ctx, "Fetch.failRequest", map[string]string{
			"requestId":   ev.RequestID,
			"errorReason": "BlockedByClient",
		}, nil)
		return
	}
	_ = f.tab.Command(ctx, "Fetch.continueRequest", map[string]string{"requestId": ev.RequestID}, nil)
}
