package gradio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/OnlyFor/gradio/internal/sselines"
)

// frameCallback is invoked once per frame routed to a registered
// event_id. It receives the raw frame bytes so the submission engine can
// run its own Interpret/Fold pipeline with its own lastStage.
type frameCallback func(raw []byte)

// streamDialer opens the multiplex GET request. Exposed as an interface
// so tests can inject a fake stream instead of a real HTTP round trip —
// this is the one seam spec.md §9 flags as ambiguous in the JS original
// ("event_source = this.eventSource_factory(url)" vs "new EventSource(url)"
// in a neighboring copy); this port has exactly one dialer, no neighboring
// copy to disagree with it.
type streamDialer interface {
	Dial(ctx context.Context, url string) (*http.Response, error)
}

type httpStreamDialer struct {
	client *http.Client
}

func (d httpStreamDialer) Dial(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	return d.client.Do(req)
}

// multiplexer is the SSE Multiplexer (C5, spec.md §4.5): at most one
// EventSource-equivalent per session, frames dispatched by event_id. The
// registries it owns are exactly the ones spec.md §3 names:
// eventCallbacks, unclosedEvents, pendingStreamMessages.
//
// The JS original relies on cooperative single-threaded scheduling for
// these registries; Go's goroutines make that unsafe, so every access
// here goes through mu. The registry shape itself — a map guarded by one
// mutex, fed by a single reader goroutine — is grounded on
// mrf-agent-racer/backend/internal/ws/broadcast.go's client map.
type multiplexer struct {
	dialer streamDialer
	logger interface{ Printf(string, ...any) }

	mu        sync.Mutex
	openState bool
	cancel    context.CancelFunc
	callbacks map[string]frameCallback
	unclosed  map[string]bool
	pending   map[string][][]byte
}

func newMultiplexer(dialer streamDialer, logger interface{ Printf(string, ...any) }) *multiplexer {
	return &multiplexer{
		dialer:    dialer,
		logger:    logger,
		callbacks: make(map[string]frameCallback),
		unclosed:  make(map[string]bool),
		pending:   make(map[string][][]byte),
	}
}

// IsOpen reports whether the multiplex stream is currently open, i.e. the
// openState flag. It does not look at unclosedEvents, and nothing in the
// engine checks it; tests call it directly.
func (m *multiplexer) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openState
}

// registerEvent wires a submission's callback under eventID, draining any
// frames that arrived before the POST reply assigned this id (spec.md
// §4.6 step 2, the S3 race scenario). Per spec.md §9's second bug note,
// an empty eventID is never registered.
func (m *multiplexer) registerEvent(eventID string, cb frameCallback) {
	if eventID == "" {
		return
	}

	m.mu.Lock()
	buffered := m.pending[eventID]
	delete(m.pending, eventID)
	m.callbacks[eventID] = cb
	m.unclosed[eventID] = true
	m.mu.Unlock()

	for _, raw := range buffered {
		cb(raw)
	}
}

// unregisterEvent removes a submission's callback, e.g. on cancellation
// or once its terminal frame has been processed (spec.md §4.6, Terminal
// state: "remove from eventCallbacks/unclosedEvents").
func (m *multiplexer) unregisterEvent(eventID string) {
	m.mu.Lock()
	delete(m.callbacks, eventID)
	delete(m.unclosed, eventID)
	delete(m.pending, eventID)
	m.mu.Unlock()
}

// open idempotently establishes the multiplex stream if it isn't already
// running. url is ${root}/queue/data?session_hash=....
func (m *multiplexer) open(parent context.Context, url string) {
	m.mu.Lock()
	if m.openState {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.openState = true
	m.cancel = cancel
	m.mu.Unlock()

	go m.readLoop(ctx, url)
}

// close tears down the stream. It does not check unclosedEvents: it is
// called by Client.Close and by runSSEMux's sse_v2/v2.1 frame callback,
// which closes the shared stream even while other events are still
// registered.
func (m *multiplexer) close() {
	m.mu.Lock()
	cancel := m.cancel
	m.openState = false
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// markClosed flips openState off after the stream ends on its own (the
// server closed the connection cleanly, with no scan error) rather than
// through an explicit close() call, so a later open() actually redials
// instead of finding a stale openState still true.
func (m *multiplexer) markClosed() {
	m.mu.Lock()
	m.openState = false
	m.cancel = nil
	m.mu.Unlock()
}

func (m *multiplexer) readLoop(ctx context.Context, url string) {
	resp, err := m.dialer.Dial(ctx, url)
	if err != nil {
		m.failAll(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		m.failAll(fmt.Errorf("gradio: queue/data stream returned %d", resp.StatusCode))
		return
	}

	scanner := sselines.New(resp.Body)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, ok := scanner.Next()
		if !ok {
			if err := scanner.Err(); err != nil {
				m.failAll(err)
				return
			}
			m.markClosed()
			return
		}
		m.dispatch([]byte(data))
	}
}

// peekEventID decodes just enough of a frame to route it; the full
// classification happens in each submission's own callback via Interpret.
func peekEventID(raw []byte) (eventID string, isCloseStream bool) {
	var probe struct {
		Msg     string `json:"msg"`
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", false
	}
	return probe.EventID, probe.Msg == "close_stream"
}

func (m *multiplexer) dispatch(raw []byte) {
	eventID, closeStream := peekEventID(raw)

	if closeStream {
		// sse_v3 close_stream: server has finished every in-flight event
		// on this connection. Deliver to every still-registered callback:
		// handleFrame emits no event for it and reports closeStream, which
		// the sse_v2/v2.1 callback answers by closing the stream. The
		// callbacks stay registered.
		m.mu.Lock()
		cbs := make([]frameCallback, 0, len(m.callbacks))
		for _, cb := range m.callbacks {
			cbs = append(cbs, cb)
		}
		m.mu.Unlock()
		for _, cb := range cbs {
			cb(raw)
		}
		return
	}

	m.mu.Lock()
	cb, ok := m.callbacks[eventID]
	if !ok {
		m.pending[eventID] = append(m.pending[eventID], raw)
	}
	m.mu.Unlock()

	if ok {
		cb(raw)
	}
}

// failAll is the "stream-open failure" path of spec.md §4.5: every
// currently registered callback is told the connection died, then
// dropped.
func (m *multiplexer) failAll(err error) {
	m.mu.Lock()
	m.openState = false
	cbs := make(map[string]frameCallback, len(m.callbacks))
	for id, cb := range m.callbacks {
		cbs[id] = cb
	}
	m.callbacks = make(map[string]frameCallback)
	m.unclosed = make(map[string]bool)
	m.pending = make(map[string][][]byte)
	m.mu.Unlock()

	synthetic, _ := json.Marshal(map[string]any{
		"msg":     "unexpected_error",
		"message": brokenConnectionMsg,
	})
	for _, cb := range cbs {
		cb(synthetic)
	}
	if m.logger != nil {
		m.logger.Printf("gradio: multiplex stream failed: %v", err)
	}
}
