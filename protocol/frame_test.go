package protocol

import (
	"encoding/json"
	"testing"
)

func TestIDAllocatorMonotone(t *testing.T) {
	var a IDAllocator
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		id := a.Next()
		if id <= prev {
			t.Fatalf("identifier did not increase: prev=%d next=%d", prev, id)
		}
		prev = id
	}
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	raw, err := Encode(&Command{ID: 1, Method: "Page.enable"})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["params"]; ok {
		t.Errorf("params should be omitted when empty, got %s", raw)
	}
	if _, ok := m["sessionId"]; ok {
		t.Errorf("sessionId should be omitted when empty, got %s", raw)
	}
}

func TestEncodeIncludesSessionAndParams(t *testing.T) {
	raw, err := Encode(&Command{
		ID:        2,
		Method:    "Page.navigate",
		Params:    json.RawMessage(`{"url":"https://example.com"}`),
		SessionID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if string(m["sessionId"]) != `"s1"` {
		t.Errorf("sessionId = %s, want %q", m["sessionId"], "s1")
	}
	var params map[string]string
	if err := json.Unmarshal(m["params"], &params); err != nil {
		t.Fatal(err)
	}
	if params["url"] != "https://example.com" {
		t.Errorf("params.url = %q", params["url"])
	}
}

func TestDecodeResponse(t *testing.T) {
	f := Decode([]byte(`{"id":5,"result":{"frameId":"f1"}}`))
	if f.Kind != KindResponse {
		t.Fatalf("Kind = %v, want KindResponse", f.Kind)
	}
	if f.ID != 5 {
		t.Errorf("ID = %d, want 5", f.ID)
	}
	var r map[string]string
	if err := json.Unmarshal(f.Result, &r); err != nil {
		t.Fatal(err)
	}
	if r["frameId"] != "f1" {
		t.Errorf("frameId = %q", r["frameId"])
	}
}

func TestDecodeResponseDefaultsEmptyResult(t *testing.T) {
	f := Decode([]byte(`{"id":5}`))
	if f.Kind != KindResponse {
		t.Fatalf("Kind = %v, want KindResponse", f.Kind)
	}
	if string(f.Result) != "{}" {
		t.Errorf("Result = %s, want {}", f.Result)
	}
}

func TestDecodeErrorResponse(t *testing.T) {
	f := Decode([]byte(`{"id":6,"error":{"code":-32000}}`))
	if f.Kind != KindErrorResponse {
		t.Fatalf("Kind = %v, want KindErrorResponse", f.Kind)
	}
	if f.Error.Message != defaultErrorMessage {
		t.Errorf("Message = %q, want default", f.Error.Message)
	}
}

func TestDecodeEvent(t *testing.T) {
	f := Decode([]byte(`{"method":"Page.loadEventFired","sessionId":"s1"}`))
	if f.Kind != KindEvent {
		t.Fatalf("Kind = %v, want KindEvent", f.Kind)
	}
	if f.SessionID != "s1" {
		t.Errorf("SessionID = %q", f.SessionID)
	}
	if string(f.Params) != "{}" {
		t.Errorf("Params = %s, want {}", f.Params)
	}
}

func TestDecodeUnknownPreservesOriginal(t *testing.T) {
	raw := []byte(`not json at all`)
	f := Decode(raw)
	if f.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", f.Kind)
	}
	if string(f.Original) != string(raw) {
		t.Errorf("Original = %q, want %q", f.Original, raw)
	}
}

func TestDecodeUnknownShape(t *testing.T) {
	f := Decode([]byte(`{"foo":"bar"}`))
	if f.Kind != KindUnknown {
		t.Fatalf("Kind = %v, want KindUnknown", f.Kind)
	}
}
