package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Status struct {
	Camera string
	Stream string
}

// Poll reports bridge status every interval until ctx is done.
func Poll(ctx context.Context, baseURL string, apiVersion string, interval time.Duration, update func(Status)) {
	if baseURL == "" || update == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	client := &http.Client{
		Timeout: 900 * time.Millisecond,
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status := Status{
			Camera: fetchStatus(ctx, client, BuildPaths(baseURL, apiVersion, "status", "state")[0]),
			Stream: fetchStatus(ctx, client, BuildPaths(baseURL, apiVersion, "status", "stream")[0]),
		}
		update(status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// fetchStatus returns the lower-cased state reported at endpoint, "ok" for
// a 200 without a recognisable state, or an error marker.
func fetchStatus(ctx context.Context, client *http.Client, endpoint string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "error"
	}
	resp, err := client.Do(req)
	if err != nil {
		return "unreachable"
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("http_%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "error"
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "ok"
	}
	if state := findState(decoded); state != "" {
		return strings.ToLower(state)
	}
	return "ok"
}

var stateKeys = []string{"state", "status", "value"}

// findState looks for the first string under a state-like key, depth first.
func findState(value any) string {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range stateKeys {
			entry, ok := v[key]
			if !ok {
				continue
			}
			if s, ok := entry.(string); ok {
				return s
			}
			if s := findState(entry); s != "" {
				return s
			}
		}
	case []any:
		for _, entry := range v {
			if s := findState(entry); s != "" {
				return s
			}
		}
	}
	return ""
}
