package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/OnlyFor/gradio/internal/sselines"
)

// runSSELegacy implements the first-generation SSE queue transport of
// spec.md §4.6: a dedicated stream per submission (no multiplexing), a
// GET to /queue/join followed by a POST to /queue/data once the server
// asks for the payload.
func (c *Client) runSSELegacy(ctx context.Context, sub *submission) {
	url := fmt.Sprintf("%s/queue/join?fn_index=%d&session_hash=%s", c.config.Root, sub.fnIndex, c.sessionHash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sub.fireBrokenConnection()
		return
	}
	defer resp.Body.Close()
	sub.setTeardown(func() { resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		sub.fireBrokenConnection()
		return
	}

	scanner := sselines.New(resp.Body)
	for {
		data, ok := scanner.Next()
		if !ok {
			return
		}
		raw := []byte(data)
		reaction := sub.handleFrame(raw)

		if reaction.wantsDataSend {
			if err := c.postQueueData(ctx, sub); err != nil {
				sub.fireBrokenConnection()
				return
			}
		}
		if reaction.terminal || reaction.closeStream {
			return
		}
	}
}

func (c *Client) postQueueData(ctx context.Context, sub *submission) error {
	body, err := json.Marshal(map[string]any{
		"data":         sub.payload,
		"event_data":   sub.eventData,
		"trigger_id":   sub.triggerID,
		"fn_index":     sub.fnIndex,
		"session_hash": c.sessionHash,
		"event_id":     sub.eventID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Root+"/queue/data", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("queue/data returned %d", resp.StatusCode)
	}
	return nil
}

// runSSEMux implements the multiplexed SSE family (sse_v1 through
// sse_v3) of spec.md §4.6: a POST to /queue/join, then registration with
// the session's single C5 multiplexer keyed by the returned event_id.
func (c *Client) runSSEMux(ctx context.Context, sub *submission) {
	body, err := json.Marshal(map[string]any{
		"data":         sub.payload,
		"event_data":   sub.eventData,
		"trigger_id":   sub.triggerID,
		"fn_index":     sub.fnIndex,
		"session_hash": c.sessionHash,
	})
	if err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Root+"/queue/join", bytes.NewReader(body))
	if err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	if err := applyAuthHeaders(ctx, req, c.auth, c.config.Root, sub.dep); err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		sub.fireBrokenConnection()
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: queueFullMsg})
		return
	case resp.StatusCode != http.StatusOK:
		sub.fireBrokenConnection()
		return
	}

	var joined struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&joined); err != nil || joined.EventID == "" {
		sub.fireBrokenConnection()
		return
	}

	sub.setEventID(joined.EventID)
	sub.setTeardown(func() {
		c.mux.unregisterEvent(joined.EventID)
	})

	// v2/v2.1 close the shared multiplex stream whenever a frame reports
	// closeStream: a frame that fails to parse, an unexpected_error, or a
	// close_stream frame. v3 never closes it here; its stream stays open
	// until the server ends the connection. For a parse failure or an
	// unexpected_error this submission has already unregistered itself via
	// finalizeTerminal by the time closeStream is set.
	closesEarly := c.config.Protocol == "sse_v2" || c.config.Protocol == "sse_v2.1"
	callback := func(raw []byte) {
		reaction := sub.handleFrame(raw)
		if reaction.closeStream && closesEarly {
			c.mux.close()
		}
	}

	c.mux.registerEvent(joined.EventID, callback)
	c.mux.open(context.Background(), c.config.Root+"/queue/data?session_hash="+c.sessionHash)
}
