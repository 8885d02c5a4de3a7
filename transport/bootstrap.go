package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wippy-projects/headless/protocol"
)

// discoveryPayload is the body of the browser's /json/version endpoint,
// grounded on ajsharma/browser_tail's internal/cdp/discovery.go BrowserInfo.
type discoveryPayload struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// DiscoverWebSocketURL performs the HTTP bootstrap: a GET against
// http://<addr>/json/version, returning the stream URL to dial.
func DiscoverWebSocketURL(ctx context.Context, addr string, timeout time.Duration) (string, error) {
	client := &http.Client{Timeout: timeout}

	url := fmt.Sprintf("http://%s/json/version", addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", protocol.New(protocol.ErrConnectionFailed, "building discovery request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", protocol.New(protocol.ErrConnectionFailed, "contacting %s: %v", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", protocol.New(protocol.ErrConnectionFailed, "discovery endpoint %s returned status %d", url, resp.StatusCode)
	}

	var payload discoveryPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", protocol.New(protocol.ErrConnectionFailed, "decoding discovery payload from %s: %v", url, err)
	}
	if payload.WebSocketDebuggerURL == "" {
		return "", protocol.New(protocol.ErrConnectionFailed, "discovery payload from %s is missing webSocketDebuggerUrl", url)
	}

	return payload.WebSocketDebuggerURL, nil
}
