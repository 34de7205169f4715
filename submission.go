package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"
)

// transportKind names which of the four wire transports a submission
// negotiated, per spec.md §4.6's selection table.
type transportKind string

const (
	transportDirect    transportKind = "direct"
	transportWS        transportKind = "ws"
	transportSSELegacy transportKind = "sse-legacy"
	transportSSEMux    transportKind = "sse-mux"
)

// submitParams collects the optional extras Submit accepts beyond
// endpoint and args (spec.md §2: "(endpoint, args, event_data, trigger_id)").
type submitParams struct {
	eventData any
	triggerID *int
}

// SubmitOption configures a single Submit call.
type SubmitOption func(*submitParams)

// WithEventData attaches the opaque event_data payload the server echoes
// back on data frames (e.g. the originating UI event for a Space).
func WithEventData(v any) SubmitOption {
	return func(p *submitParams) { p.eventData = v }
}

// WithTriggerID attaches the trigger_id the server associates with this
// call's originating event.
func WithTriggerID(id int) SubmitOption {
	return func(p *submitParams) { p.triggerID = &id }
}

// submission is one outstanding call — the Submission record of spec.md
// §3, C6's state machine runs entirely through its methods.
type submission struct {
	client       *Client
	fnIndex      int
	endpointPath string
	payload      []any
	eventData    any
	triggerID    *int
	dep          Dependency
	transport    transportKind

	listenMu  sync.Mutex
	listeners map[EventType][]Listener

	stateMu  sync.Mutex
	stage    Stage
	terminal bool
	joined   bool
	canceled bool
	eventID  string

	teardown   func()
	teardownMu sync.Mutex
}

func newSubmission(c *Client, fnIndex int, endpointPath string, payload []any, dep Dependency, transport transportKind, p submitParams) *submission {
	return &submission{
		client:       c,
		fnIndex:      fnIndex,
		endpointPath: endpointPath,
		payload:      payload,
		dep:          dep,
		transport:    transport,
		eventData:    p.eventData,
		triggerID:    p.triggerID,
		listeners:    make(map[EventType][]Listener),
	}
}

// Handle is the public submit-result contract of spec.md §4.6:
// {on, off, cancel, destroy}.
type Handle struct {
	sub *submission
}

// On registers listener under eventType, returning the handle so calls
// can chain. Listeners fire synchronously, in registration order, only
// for events dispatched after this call returns (spec.md §5: "Listeners
// added during event dispatch receive only subsequent events").
func (h *Handle) On(eventType EventType, listener Listener) *Handle {
	h.sub.listenMu.Lock()
	h.sub.listeners[eventType] = append(h.sub.listeners[eventType], listener)
	h.sub.listenMu.Unlock()
	return h
}

// Off removes the first listener registered under eventType whose
// underlying function pointer matches listener, per spec.md's "remove
// first matching listener by identity" — Go function values aren't
// comparable, so identity is approximated by code pointer, the same
// technique used to de-duplicate bound method values in this idiom.
func (h *Handle) Off(eventType EventType, listener Listener) {
	target := reflect.ValueOf(listener).Pointer()
	h.sub.listenMu.Lock()
	defer h.sub.listenMu.Unlock()
	ls := h.sub.listeners[eventType]
	for i, l := range ls {
		if reflect.ValueOf(l).Pointer() == target {
			h.sub.listeners[eventType] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// Cancel idempotently terminates the submission: emits a synthetic
// terminal status, tears down the transport, and best-effort POSTs
// /reset. Reset failure is warned, never returned (spec.md §4.6, §7).
func (h *Handle) Cancel(ctx context.Context) {
	h.sub.cancel(ctx)
}

// Destroy removes every listener without canceling the submission.
func (h *Handle) Destroy() {
	h.sub.listenMu.Lock()
	h.sub.listeners = make(map[EventType][]Listener)
	h.sub.listenMu.Unlock()
}

func (s *submission) setTeardown(fn func()) {
	s.teardownMu.Lock()
	s.teardown = fn
	s.teardownMu.Unlock()
}

func (s *submission) runTeardown() {
	s.teardownMu.Lock()
	fn := s.teardown
	s.teardown = nil
	s.teardownMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *submission) cancel(ctx context.Context) {
	s.stateMu.Lock()
	if s.canceled {
		s.stateMu.Unlock()
		return
	}
	s.canceled = true
	eventID := s.eventID
	s.stateMu.Unlock()

	s.emit(Event{Type: EventStatus, Status: &StatusEvent{
		Stage:    StageComplete,
		Queue:    false,
		Time:     time.Now(),
		FnIndex:  s.fnIndex,
		Endpoint: s.endpointPath,
	}})

	s.runTeardown()

	if eventID != "" {
		s.client.mux.unregisterEvent(eventID)
		s.client.diffStore.Discard(eventID)
	}

	if err := s.postReset(ctx, eventID); err != nil {
		s.client.logger.Printf("gradio: reset failed for %s: %v", s.endpointPath, err)
	}
}

func (s *submission) postReset(ctx context.Context, eventID string) error {
	var body map[string]any
	if s.transport == transportWS {
		body = map[string]any{"fn_index": s.fnIndex, "session_hash": s.client.sessionHash}
	} else if eventID != "" {
		body = map[string]any{"event_id": eventID}
	} else {
		return nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.config.Root+"/reset", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	s.client.setAuth(req)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("reset returned %d", resp.StatusCode)
	}
	return nil
}

// emit delivers ev to every listener registered for its type, unless the
// submission has already emitted its terminal status (spec.md §7: "once
// a submission has emitted a terminal status, no more events are
// emitted"). The terminal status itself is always allowed through
// exactly once.
func (s *submission) emit(ev Event) {
	s.stateMu.Lock()
	if s.terminal {
		s.stateMu.Unlock()
		return
	}
	if ev.Type == EventStatus && isTerminal(ev.Status.Stage) {
		s.terminal = true
	}
	s.stateMu.Unlock()

	ev.fillDefaults(s)
	s.dispatch(ev)
}

func isTerminal(stage Stage) bool {
	return stage == StageComplete || stage == StageError
}

func (s *submission) dispatch(ev Event) {
	s.listenMu.Lock()
	cbs := append([]Listener(nil), s.listeners[ev.Type]...)
	s.listenMu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

// fillDefaults stamps the FnIndex/Endpoint/Time fields a transport
// handler doesn't always set explicitly.
func (ev *Event) fillDefaults(s *submission) {
	switch ev.Type {
	case EventStatus:
		if ev.Status.Time.IsZero() {
			ev.Status.Time = time.Now()
		}
		ev.Status.FnIndex = s.fnIndex
		ev.Status.Endpoint = s.endpointPath
	case EventData:
		if ev.Data.Time.IsZero() {
			ev.Data.Time = time.Now()
		}
		ev.Data.FnIndex = s.fnIndex
		ev.Data.Endpoint = s.endpointPath
		ev.Data.EventData = s.eventData
		ev.Data.TriggerID = s.triggerID
	case EventLog:
		ev.Log.FnIndex = s.fnIndex
		ev.Log.Endpoint = s.endpointPath
	}
}

func (s *submission) emitStatus(st *StatusEvent) {
	s.stateMu.Lock()
	s.stage = st.Stage
	s.stateMu.Unlock()
	s.client.setStage(s.fnIndex, st.Stage)
	s.emit(Event{Type: EventStatus, Status: st})
}

func (s *submission) emitData(data []any) {
	s.emit(Event{Type: EventData, Data: &DataEvent{Data: data}})
}

func (s *submission) emitLog(level, log string) {
	s.emit(Event{Type: EventLog, Log: &LogEvent{Level: level, Log: log}})
}

func (s *submission) currentStage() Stage {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.stage
}

func (s *submission) setEventID(id string) {
	s.stateMu.Lock()
	s.eventID = id
	s.stateMu.Unlock()
}

// handleFrame is the shared frame-dispatch path for every frame-based
// transport (ws, sse-legacy, sse-mux): interpret the raw bytes against
// this submission's last known stage, then react per spec.md §4.3/§4.6.
// Direct has no frames — it is handled entirely in transport_direct.go.
func (s *submission) handleFrame(raw []byte) frameReaction {
	s.stateMu.Lock()
	if s.terminal || s.canceled {
		s.stateMu.Unlock()
		return frameReaction{}
	}
	prevStage := s.stage
	s.stateMu.Unlock()

	frame, err := Interpret(raw, prevStage)
	if err != nil {
		s.fireUnexpectedError()
		s.finalizeTerminal()
		return frameReaction{terminal: true, closeStream: s.transport == transportSSEMux}
	}

	switch frame.Kind {
	case KindHash:
		return frameReaction{wantsHash: true}

	case KindData:
		if frame.EventID != "" {
			s.setEventID(frame.EventID)
		}
		return frameReaction{wantsDataSend: true}

	case KindHeartbeat:
		return frameReaction{}

	case KindUnexpectedError:
		s.emitStatus(&StatusEvent{Stage: StageError, Queue: true, Message: frame.ErrorText})
		s.finalizeTerminal()
		return frameReaction{terminal: true, closeStream: s.transport == transportSSEMux}

	case KindLog:
		s.emitLog(frame.LogLevel, frame.Log)
		return frameReaction{}

	case KindUpdate:
		s.emitStatus(frame.Status)
		return frameReaction{}

	case KindGenerating:
		s.emitStatus(frame.Status)
		if data, ok := s.fold(frame); ok {
			s.emitData(data)
		}
		return frameReaction{}

	case KindComplete:
		if data, ok := s.fold(frame); ok {
			s.emitData(data)
		}
		s.emitStatus(frame.Status)
		s.finalizeTerminal()
		return frameReaction{terminal: true}

	case KindCloseStream:
		return frameReaction{closeStream: true}
	}
	return frameReaction{}
}

// frameReaction tells a transport what, if anything, it must do in
// response to one frame beyond the events already emitted — replying on
// the socket, closing the stream, sending the data frame, or tearing the
// submission down because it just went terminal.
type frameReaction struct {
	wantsHash     bool
	wantsDataSend bool
	closeStream   bool
	terminal      bool
}

// fold resolves a generating/complete frame's payload. Diff-folding
// (spec.md §4.4) only applies to the sse-mux family's multiplexed event
// stream; ws and sse-legacy always carry a full output array, so they
// read it straight off the frame instead of touching the shared store.
func (s *submission) fold(frame InterpretedFrame) ([]any, bool) {
	if s.transport == transportSSEMux {
		s.stateMu.Lock()
		id := s.eventID
		s.stateMu.Unlock()
		if id == "" {
			return nil, false
		}
		v, ok := s.client.diffStore.Fold(id, frame)
		if !ok {
			return nil, false
		}
		arr, _ := v.([]any)
		return arr, true
	}

	if frame.Data != nil {
		return frame.Data.Data, true
	}
	return nil, false
}

func (s *submission) fireUnexpectedError() {
	s.emitStatus(&StatusEvent{Stage: StageError, Queue: true, Message: unexpectedErrorMsg})
}

func (s *submission) fireBrokenConnection() {
	s.emitStatus(&StatusEvent{Stage: StageError, Queue: true, Broken: true, Message: brokenConnectionMsg})
}

// finalizeTerminal runs the Terminal-state cleanup of spec.md §4.6: drop
// this submission from the multiplexer's registries and discard its
// diff-store snapshot. Transport-specific teardown (closing a dedicated
// WS or SSE connection, unregistering an sse-mux event) is registered
// separately via setTeardown and run by cancel; runWS also runs its own
// when its read loop returns.
func (s *submission) finalizeTerminal() {
	s.stateMu.Lock()
	id := s.eventID
	s.stateMu.Unlock()
	if id != "" {
		s.client.mux.unregisterEvent(id)
		s.client.diffStore.Discard(id)
	}
}
