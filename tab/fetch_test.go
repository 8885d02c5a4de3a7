package tab

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wippy-projects/headless/manager"
	"github.com/wippy-projects/headless/protocol"
)

// fakeManager is a managerClient double that records every command it's
// asked to run and answers with canned results keyed by method.
type fakeManager struct {
	mu       sync.Mutex
	commands []string
	results  map[string]json.RawMessage
}

func newFakeManager() *fakeManager {
	return &fakeManager{results: make(map[string]json.RawMessage)}
}

func (f *fakeManager) RunCommand(ctx context.Context, sessionID, method string, params []byte) (*manager.CommandReply, error) {
	f.mu.Lock()
	f.commands = append(f.commands, method)
	result := f.results[method]
	f.mu.Unlock()
	if result == nil {
		result = json.RawMessage(`{}`)
	}
	return &manager.CommandReply{Result: result}, nil
}

func (f *fakeManager) CloseTab(ctx context.Context, owner uuid.UUID) error { return nil }

func (f *fakeManager) sawCommand(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.commands {
		if m == method {
			return true
		}
	}
	return false
}

func newTestTab(fm *fakeManager) (*Tab, chan *protocol.Frame) {
	events := make(chan *protocol.Frame, 8)
	reply := &manager.CreateReply{
		Owner:     uuid.New(),
		SessionID: "s1",
		Events:    events,
		Done:      make(chan struct{}),
	}
	return New(fm, reply), events
}

func TestBlockResourcesThenExpectDownloadReachesBoth(t *testing.T) {
	fm := newFakeManager()
	tab, _ := newTestTab(fm)

	if err := tab.BlockResources(context.Background(), []string{"Image"}); err != nil {
		t.Fatal(err)
	}
	if tab.fetch.state != stateBlockingOnly {
		t.Fatalf("state = %v, want BlockingOnly", tab.fetch.state)
	}

	if err := tab.fetch.BeginExpectDownload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tab.fetch.state != stateBoth {
		t.Fatalf("state = %v, want Both after layering download capture on blocking", tab.fetch.state)
	}

	if err := tab.fetch.EndExpectDownload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tab.fetch.state != stateBlockingOnly {
		t.Fatalf("state = %v, want BlockingOnly after ending download capture", tab.fetch.state)
	}
}

func TestExpectDownloadWithoutBlockingEndsAtOff(t *testing.T) {
	fm := newFakeManager()
	tab, _ := newTestTab(fm)

	if err := tab.fetch.BeginExpectDownload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tab.fetch.state != stateDownloadOnly {
		t.Fatalf("state = %v, want DownloadOnly", tab.fetch.state)
	}
	if err := tab.fetch.EndExpectDownload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if tab.fetch.state != stateOff {
		t.Fatalf("state = %v, want Off", tab.fetch.state)
	}
}

func TestExpectDownloadCapturesAttachment(t *testing.T) {
	fm := newFakeManager()
	body := []byte("%PDF-1.4 fake contents")
	fm.results["Fetch.getResponseBody"], _ = json.Marshal(map[string]interface{}{
		"body":          base64.StdEncoding.EncodeToString(body),
		"base64Encoded": true,
	})

	tab, events := newTestTab(fm)

	action := func(ctx context.Context) error {
		params, _ := json.Marshal(map[string]interface{}{
			"requestId":          "r1",
			"resourceType":       "Document",
			"responseStatusCode": 200,
			"responseHeaders": []map[string]string{
				{"name": "Content-Disposition", "value": `attachment; filename="r.pdf"`},
			},
			"request": map[string]string{"url": "https://example.com/r.pdf"},
		})
		events <- &protocol.Frame{Kind: protocol.KindEvent, Method: "Fetch.requestPaused", Params: params, SessionID: "s1"}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dl, err := tab.ExpectDownload(ctx, action)
	if err != nil {
		t.Fatal(err)
	}
	if dl.Filename != "r.pdf" {
		t.Errorf("Filename = %q, want r.pdf", dl.Filename)
	}
	if string(dl.Data) != string(body) {
		t.Errorf("Data = %q, want %q", dl.Data, body)
	}
	if !fm.sawCommand("Fetch.fulfillRequest") {
		t.Error("expected Fetch.fulfillRequest to be issued to suppress on-disk persistence")
	}
	if tab.fetch.state != stateOff {
		t.Errorf("state after ExpectDownload = %v, want Off (no blocking was active)", tab.fetch.state)
	}
}

func TestExpectDownloadAbortsOnActionError(t *testing.T) {
	fm := newFakeManager()
	tab, _ := newTestTab(fm)

	wantErr := protocol.New(protocol.ErrGeneric, "boom")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := tab.ExpectDownload(ctx, func(ctx context.Context) error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestBlockedRequestStageFailsRequest(t *testing.T) {
	fm := newFakeManager()
	tab, events := newTestTab(fm)

	if err := tab.BlockResources(context.Background(), []string{"Image"}); err != nil {
		t.Fatal(err)
	}

	params, _ := json.Marshal(map[string]interface{}{
		"requestId":    "r2",
		"resourceType": "Image",
		"request":      map[string]string{"url": "https://example.com/x.png"},
	})
	events <- &protocol.Frame{Kind: protocol.KindEvent, Method: "Fetch.requestPaused", Params: params, SessionID: "s1"}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := tab.WaitForEvent(ctx, "Page.loadEventFired", nil)
	if err == nil {
		t.Fatal("expected WaitForEvent to time out waiting for an event that never arrives")
	}
	if !fm.sawCommand("Fetch.failRequest") {
		t.Error("expected the blocked image request to be failed")
	}
}
