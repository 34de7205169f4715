package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// runDirect implements the direct-POST transport of spec.md §4.6: queue
// is skipped entirely, the call is a single request/response.
func (c *Client) runDirect(ctx context.Context, sub *submission) {
	body, err := json.Marshal(map[string]any{
		"data":         sub.payload,
		"event_data":   sub.eventData,
		"trigger_id":   sub.triggerID,
		"session_hash": c.sessionHash,
	})
	if err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}

	url := fmt.Sprintf("%s/run%s", c.config.Root, sub.endpointPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}
	defer resp.Body.Close()

	var out wireOutput
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = fmt.Sprintf("server returned %d", resp.StatusCode)
		}
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: msg})
		return
	}
	if decodeErr != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: decodeErr.Error()})
		return
	}

	sub.emitData(out.Data)

	eta := 0.0
	if versionAtLeast(c.config.Version, "3.6.0") || c.config.Version == "" {
		eta = out.AverageDuration
	}
	sub.emitStatus(&StatusEvent{Stage: StageComplete, Eta: eta})
	sub.finalizeTerminal()
}
