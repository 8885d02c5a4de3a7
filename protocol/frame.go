// Package protocol implements the CDP framing layer: encoding outgoing
// commands, decoding and classifying incoming frames, and assigning
// monotonic request identifiers. It holds no connection or session state of
// its own.
package protocol

import (
	"encoding/json"
	"sync/atomic"

	"github.com/mailru/easyjson/jwriter"
)

// emptyParams is the wire representation of an omitted params object.
var emptyParams = json.RawMessage(`{}`)

// Kind classifies a decoded incoming frame.
type Kind int

const (
	// KindUnknown is any frame that doesn't match the shape of a response,
	// error-response, or event. Original is always the raw bytes.
	KindUnknown Kind = iota
	KindResponse
	KindErrorResponse
	KindEvent
)

// Command is an outgoing CDP command frame.
type Command struct {
	ID        int64
	Method    string
	Params    json.RawMessage // omitted from the wire when empty
	SessionID string          // omitted from the wire when empty
}

// MarshalEasyJSON writes the wire form of a Command by hand, mirroring the
// jwriter style chromedp/chromedp's conn.go uses for its outgoing messages,
// so that encoding the steady-state command traffic avoids an
// encoding/json reflection pass.
func (c *Command) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"id":`)
	w.Int64(c.ID)
	w.RawByte(',')
	w.RawString(`"method":`)
	w.String(c.Method)
	if len(c.Params) > 0 {
		w.RawByte(',')
		w.RawString(`"params":`)
		w.Raw(c.Params, nil)
	}
	if c.SessionID != "" {
		w.RawByte(',')
		w.RawString(`"sessionId":`)
		w.String(c.SessionID)
	}
	w.RawByte('}')
}

// Encode renders a Command to its wire bytes.
func Encode(c *Command) ([]byte, error) {
	w := jwriter.Writer{}
	c.MarshalEasyJSON(&w)
	if w.Error != nil {
		return nil, w.Error
	}
	return w.BuildBytes()
}

// ErrorDetail is the `error` object carried by an error-response frame.
type ErrorDetail struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// defaultErrorMessage is substituted when the browser omits error.message.
const defaultErrorMessage = "Unknown CDP error"

// Frame is the decoded, classified shape of any incoming message. Exactly
// the fields relevant to Kind are populated; callers must branch on Kind
// before reading them — nothing downstream indexes raw maps once decoding
// is done.
type Frame struct {
	Kind Kind

	// Set for KindResponse and KindErrorResponse.
	ID int64

	// Set for KindResponse.
	Result json.RawMessage

	// Set for KindErrorResponse.
	Error *ErrorDetail

	// Set for KindEvent.
	Method string
	Params json.RawMessage

	// Set for KindEvent when the event is scoped to one tab.
	SessionID string

	// Set for KindUnknown: the original bytes, preserved verbatim.
	Original []byte
}

// wireFrame is the superset shape used to sniff an incoming frame's kind
// before committing to a typed Frame. All fields are optional so that any
// well-formed JSON object decodes without error; decode failure itself
// degrades to KindUnknown rather than propagating an error — malformed
// input must never crash the reader.
type wireFrame struct {
	ID        *int64          `json:"id"`
	Method    string          `json:"method"`
	Result    json.RawMessage `json:"result"`
	Error     *wireError      `json:"error"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId"`
}

type wireError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode classifies raw wire bytes into a Frame. It never returns an error:
// undecodable or unrecognized shapes classify as KindUnknown with Original
// set to the input bytes.
func Decode(raw []byte) *Frame {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return &Frame{Kind: KindUnknown, Original: raw}
	}

	switch {
	case w.ID != nil && w.Error != nil:
		msg := w.Error.Message
		if msg == "" {
			msg = defaultErrorMessage
		}
		return &Frame{
			Kind: KindErrorResponse,
			ID:   *w.ID,
			Error: &ErrorDetail{
				Code:    w.Error.Code,
				Message: msg,
				Data:    w.Error.Data,
			},
		}

	case w.ID != nil:
		result := w.Result
		if result == nil {
			result = emptyParams
		}
		return &Frame{Kind: KindResponse, ID: *w.ID, Result: result}

	case w.Method != "":
		params := w.Params
		if params == nil {
			params = emptyParams
		}
		return &Frame{
			Kind:      KindEvent,
			Method:    w.Method,
			Params:    params,
			SessionID: w.SessionID,
		}

	default:
		return &Frame{Kind: KindUnknown, Original: raw}
	}
}

// IDAllocator hands out strictly increasing, non-negative request
// identifiers, scoped to one Connection. The zero value is ready to use
// and starts counting from 1.
type IDAllocator struct {
	next int64
}

// Next returns the next identifier. Safe for concurrent use.
func (a *IDAllocator) Next() int64 {
	return atomic.AddInt64(&a.next, 1)
}
