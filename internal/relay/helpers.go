package relay

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// WaitForHealthy polls /health until it returns 200 OK or ctx is done.
// baseURL may use the http(s) or ws(s) scheme, with or without the /ws path.
func WaitForHealthy(ctx context.Context, baseURL string) error {
	healthURL := HealthURL(baseURL)
	client := &http.Client{Timeout: 1 * time.Second}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// HealthURL maps a relay URL to its health endpoint
func HealthURL(baseURL string) string {
	u := strings.TrimSuffix(baseURL, "/")
	u = strings.TrimSuffix(u, "/ws")
	switch {
	case strings.HasPrefix(u, "ws://"):
		u = "http://" + strings.TrimPrefix(u, "ws://")
	case strings.HasPrefix(u, "wss://"):
		u = "https://" + strings.TrimPrefix(u, "wss://")
	}
	return u + "/health"
}
