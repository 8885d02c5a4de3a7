package tab

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/wippy-projects/headless/protocol"
)

func TestCommandDecodesResult(t *testing.T) {
	fm := newFakeManager()
	fm.results["Page.navigate"], _ = json.Marshal(map[string]string{"frameId": "f1", "loaderId": "l1"})
	tab, _ := newTestTab(fm)

	var result struct {
		FrameID  string `json:"frameId"`
		LoaderID string `json:"loaderId"`
	}
	if err := tab.Command(context.Background(), "Page.navigate", map[string]string{"url": "https://example.com"}, &result); err != nil {
		t.Fatal(err)
	}
	if result.FrameID != "f1" || result.LoaderID != "l1" {
		t.Errorf("result = %+v, want frameId=f1 loaderId=l1", result)
	}
}

func TestWaitForEventSkipsOtherMethods(t *testing.T) {
	fm := newFakeManager()
	tab, events := newTestTab(fm)

	go func() {
		events <- &protocol.Frame{Kind: protocol.KindEvent, Method: "Page.lifecycleEvent", Params: json.RawMessage(`{"name":"init"}`), SessionID: "s1"}
		events <- &protocol.Frame{Kind: protocol.KindEvent, Method: "Page.loadEventFired", Params: json.RawMessage(`{}`), SessionID: "s1"}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	params, err := tab.WaitForEvent(ctx, "Page.loadEventFired", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(params) != "{}" {
		t.Errorf("params = %s, want {}", params)
	}
}

func TestWaitForEventReturnsTabClosedOnBusClose(t *testing.T) {
	fm := newFakeManager()
	tab, events := newTestTab(fm)
	close(events)

	_, err := tab.WaitForEvent(context.Background(), "Page.loadEventFired", nil)
	if err == nil {
		t.Fatal("expected an error after the event bus closed")
	}
	cdpErr, ok := err.(*protocol.CDPError)
	if !ok || cdpErr.Kind != protocol.ErrTabClosed {
		t.Errorf("err = %v, want TAB_CLOSED", err)
	}
}
