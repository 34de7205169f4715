package gradio

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/OnlyFor/gradio/internal/backoff"
)

// runHeartbeat holds open a GET to ${root}/heartbeat/${session_hash} for
// as long as ctx lives, reconnecting with exponential backoff on
// failure. Grounded on tui/internal/client/ws.go's Listen/pingLoop pair
// — a dial-read-reconnect loop — but driven by the shared backoff policy
// instead of that file's hand-rolled delay doubling.
func (c *Client) runHeartbeat(ctx context.Context) {
	policy := backoff.New(c.opts.HeartbeatInterval, 30*c.opts.HeartbeatInterval)
	url := c.config.Root + "/heartbeat/" + c.sessionHash

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.heartbeatOnce(ctx, url); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Printf("gradio: heartbeat connection failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(policy.Next()):
			}
			continue
		}
		policy.Reset()
	}
}

func (c *Client) heartbeatOnce(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat returned %d", resp.StatusCode)
	}

	buf := make([]byte, 512)
	for {
		if _, err := resp.Body.Read(buf); err != nil {
			return nil
		}
	}
}
