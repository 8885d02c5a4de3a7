package protocol

import "testing"

func TestClassifyPrecedence(t *testing.T) {
	cases := []struct {
		name   string
		msg    string
		method string
		want   ErrorKind
	}{
		{"session not found", "Session with given id not found", "Target.sendMessageToTarget", ErrTabClosed},
		{"target closed", "Target closed.", "", ErrTabClosed},
		{"dns failure", "net::ERR_NAME_NOT_RESOLVED", "Page.navigate", ErrNavigationFailed},
		{"cannot navigate", "Cannot navigate to invalid URL", "", ErrNavigationFailed},
		{"node not found", "Could not find node with given id", "", ErrElementNotFound},
		{"no node", "No node with given id", "", ErrElementNotFound},
		{"not visible", "Node is not visible", "", ErrElementNotVisible},
		{"not interactable", "Node is not interactable", "", ErrElementNotInteractable},
		{"not an element", "Node is not an element", "", ErrElementNotInteractable},
		{"type error", "Uncaught TypeError: x is not a function", "", ErrEval},
		{"reference error", "ReferenceError: foo is not defined", "", ErrEval},
		{"generic", "something else entirely broke", "Network.getCookies", ErrGeneric},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.msg, c.method)
			if got.Kind != c.want {
				t.Errorf("Classify(%q, %q) kind = %v, want %v", c.msg, c.method, got.Kind, c.want)
			}
		})
	}
}

func TestClassifyGenericIncludesMethod(t *testing.T) {
	err := Classify("boom", "Network.getCookies")
	if want := "CDP_ERROR: boom (method: Network.getCookies)"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCDPErrorRendersKindPrefix(t *testing.T) {
	err := New(ErrTimeout, "waiting for %s", "Page.loadEventFired")
	if want := "TIMEOUT: waiting for Page.loadEventFired"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
