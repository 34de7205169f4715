package gradio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// runWS implements the dedicated-WebSocket transport of spec.md §4.6.
// Grounded on tui/internal/client/ws.go's dial/read-loop split, but
// collapsed to one goroutine per submission since each WS connection
// here belongs to exactly one in-flight call rather than one shared
// session-wide socket.
func (c *Client) runWS(ctx context.Context, sub *submission) {
	wsURL, err := c.wsJoinURL(ctx, sub)
	if err != nil {
		sub.emitStatus(&StatusEvent{Stage: StageError, Message: err.Error()})
		return
	}

	conn, _, err := c.wsDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		sub.fireBrokenConnection()
		return
	}

	wasClean := false
	sub.setTeardown(func() {
		wasClean = true
		conn.Close()
	})
	defer sub.runTeardown()

	if !versionAtLeast(c.config.Version, "3.6.0") {
		_ = conn.WriteJSON(map[string]string{"hash": c.sessionHash})
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !wasClean && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				sub.fireBrokenConnection()
			}
			return
		}

		reaction := sub.handleFrame(raw)

		switch {
		case reaction.wantsHash:
			if err := conn.WriteJSON(map[string]any{
				"fn_index":     sub.fnIndex,
				"session_hash": c.sessionHash,
			}); err != nil {
				sub.fireBrokenConnection()
				return
			}
		case reaction.wantsDataSend:
			if err := conn.WriteJSON(map[string]any{
				"data":         sub.payload,
				"event_data":   sub.eventData,
				"trigger_id":   sub.triggerID,
				"fn_index":     sub.fnIndex,
				"session_hash": c.sessionHash,
			}); err != nil {
				sub.fireBrokenConnection()
				return
			}
		}

		if wsFrameIsErrorUpdate(raw) || reaction.terminal {
			return
		}
	}
}

// wsFrameIsErrorUpdate reports whether raw carries stage "error",
// whatever its msg; runWS closes the socket on such a frame, a trigger
// distinct from the terminal "process_completed" path.
func wsFrameIsErrorUpdate(raw []byte) bool {
	var probe struct {
		Msg   string `json:"msg"`
		Stage string `json:"stage"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return false
	}
	return probe.Stage == "error"
}

func (c *Client) wsJoinURL(ctx context.Context, sub *submission) (string, error) {
	base := strings.Replace(c.config.Root, "http", "ws", 1)
	u, err := url.Parse(base + "/queue/join")
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("session_hash", c.sessionHash)

	if c.config.SpaceID != "" && c.opts.Token != "" {
		sign, err := signParam(ctx, c.jwt, c.config.SpaceID, c.opts.Token)
		if err != nil {
			return "", fmt.Errorf("gradio: jwt sign: %w", err)
		}
		if sign != "" {
			q.Set("__sign", sign)
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
