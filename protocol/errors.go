package protocol

import (
	"fmt"
	"strings"
)

// ErrorKind is a member of the closed error taxonomy this package maps raw
// CDP errors onto. Modeled as a typed string, following chromedp/chromedp's errors.go
// pattern (`type Error string`) rather than a sentinel error value per
// kind, since the system's external contract requires every
// user-visible error to render as "ERROR_KIND: human description" and a
// string-backed type makes that rendering free.
type ErrorKind string

// The closed error taxonomy. No other kind is ever produced.
const (
	ErrConnectionFailed      ErrorKind = "CDP_CONNECTION_FAILED"
	ErrDisconnected          ErrorKind = "CDP_DISCONNECTED"
	ErrGeneric               ErrorKind = "CDP_ERROR"
	ErrNavigationFailed      ErrorKind = "NAVIGATION_FAILED"
	ErrElementNotFound       ErrorKind = "ELEMENT_NOT_FOUND"
	ErrElementNotVisible     ErrorKind = "ELEMENT_NOT_VISIBLE"
	ErrElementNotInteractable ErrorKind = "ELEMENT_NOT_INTERACTABLE"
	ErrEval                 ErrorKind = "EVAL_ERROR"
	ErrDownloadTimeout       ErrorKind = "DOWNLOAD_TIMEOUT"
	ErrDownloadFailed        ErrorKind = "DOWNLOAD_FAILED"
	ErrMaxTabsReached        ErrorKind = "MAX_TABS_REACHED"
	ErrTabClosed             ErrorKind = "TAB_CLOSED"
	ErrTimeout               ErrorKind = "TIMEOUT"
	ErrInvalid               ErrorKind = "INVALID"
)

// CDPError is the concrete error type surfaced to tab owners. Its Error()
// method renders the "ERROR_KIND: human description" form every
// user-visible error must take.
type CDPError struct {
	Kind    ErrorKind
	Message string
}

func (e *CDPError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// New constructs a CDPError of the given kind with a message.
func New(kind ErrorKind, format string, args ...interface{}) *CDPError {
	return &CDPError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// lifecycleMarkers are substrings that indicate the tab/session this
// command targeted no longer exists.
var lifecycleMarkers = []string{
	"No target with given id",
	"Target closed",
	"Cannot find context",
	"Execution context was destroyed",
}

var networkMarkers = []string{
	"net::ERR_",
	"Cannot navigate",
}

var jsRuntimeMarkers = []string{
	"TypeError",
	"ReferenceError",
	"SyntaxError",
}

// Classify maps a raw CDP error message (optionally with the originating
// method name) to one of the closed taxonomy members by substring
// precedence: lifecycle markers first, then network, then DOM, then JS
// runtime markers, falling back to a generic CDP error. It never returns a
// kind outside the taxonomy.
func Classify(rawMessage string, method string) *CDPError {
	msg := rawMessage

	// 1. Tab/session lifecycle markers.
	if containsAny(msg, lifecycleMarkers) ||
		(strings.Contains(msg, "Session") && strings.Contains(msg, "not found")) {
		return New(ErrTabClosed, "%s", msg)
	}

	// 2. Network markers.
	if containsAny(msg, networkMarkers) {
		return New(ErrNavigationFailed, "%s", msg)
	}

	// 3. DOM markers.
	switch {
	case strings.Contains(msg, "Could not find node") || strings.Contains(msg, "No node with given id"):
		return New(ErrElementNotFound, "%s", msg)
	case strings.Contains(msg, "Node is not visible"):
		return New(ErrElementNotVisible, "%s", msg)
	case strings.Contains(msg, "Node is not an element") || strings.Contains(msg, "not interactable"):
		return New(ErrElementNotInteractable, "%s", msg)
	}

	// 4. JS runtime markers.
	if containsAny(msg, jsRuntimeMarkers) {
		return New(ErrEval, "%s", msg)
	}

	// 5. Otherwise, a generic CDP error with method context appended when
	// available.
	if method != "" {
		return New(ErrGeneric, "%s (method: %s)", msg, method)
	}
	return New(ErrGeneric, "%s", msg)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
