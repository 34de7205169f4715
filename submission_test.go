package gradio

import (
	"context"
	"log"
	"net/http"
	"testing"
	"time"
)

func testClient() *Client {
	return &Client{
		// Root points at a closed local port so postReset's best-effort
		// POST fails fast instead of hanging on DNS for a fake host.
		config:      &Config{Root: "http://127.0.0.1:1"},
		sessionHash: "testsess",
		httpClient:  &http.Client{Timeout: time.Second},
		diffStore:   NewDiffStore(),
		logger:      log.Default(),
		mux:         newMultiplexer(fakeDialer{}, log.Default()),
		lastStatus:  make(map[int]Stage),
	}
}

func testSubmission(transport transportKind) *submission {
	c := testClient()
	return newSubmission(c, 0, "/predict", nil, Dependency{}, transport, submitParams{})
}

func TestSubmissionEmitDropsEventsAfterTerminal(t *testing.T) {
	s := testSubmission(transportWS)
	var statuses []Stage
	var data int

	h := &Handle{sub: s}
	h.On(EventStatus, func(ev Event) { statuses = append(statuses, ev.Status.Stage) })
	h.On(EventData, func(ev Event) { data++ })

	s.emitStatus(&StatusEvent{Stage: StageComplete})
	s.emitData([]any{"late"})
	s.emitStatus(&StatusEvent{Stage: StageError})

	if len(statuses) != 1 || statuses[0] != StageComplete {
		t.Errorf("statuses = %v, want [complete]", statuses)
	}
	if data != 0 {
		t.Errorf("data events after terminal = %d, want 0", data)
	}
}

func TestSubmissionCompleteEmitsDataBeforeTerminalStatus(t *testing.T) {
	s := testSubmission(transportWS)
	var order []string

	h := &Handle{sub: s}
	h.On(EventData, func(ev Event) { order = append(order, "data") })
	h.On(EventStatus, func(ev Event) {
		if ev.Status.Stage == StageComplete {
			order = append(order, "complete")
		}
	})

	raw := []byte(`{"msg":"process_completed","output":{"data":["hi"]}}`)
	reaction := s.handleFrame(raw)

	if !reaction.terminal {
		t.Fatal("handleFrame on process_completed did not report terminal")
	}
	if len(order) != 2 || order[0] != "data" || order[1] != "complete" {
		t.Errorf("order = %v, want [data complete]", order)
	}
}

func TestSubmissionOffRemovesListenerByIdentity(t *testing.T) {
	s := testSubmission(transportWS)
	h := &Handle{sub: s}

	var calls int
	listener := func(ev Event) { calls++ }

	h.On(EventStatus, listener)
	h.Off(EventStatus, listener)

	s.emitStatus(&StatusEvent{Stage: StagePending})

	if calls != 0 {
		t.Errorf("calls = %d, want 0 after Off", calls)
	}
}

func TestSubmissionCancelIsIdempotent(t *testing.T) {
	s := testSubmission(transportWS)
	h := &Handle{sub: s}

	var statuses []Stage
	h.On(EventStatus, func(ev Event) { statuses = append(statuses, ev.Status.Stage) })

	h.Cancel(context.Background())
	h.Cancel(context.Background())

	if len(statuses) != 1 {
		t.Errorf("statuses = %v, want exactly one cancel status", statuses)
	}
}

func TestSubmissionDestroyClearsListenersWithoutCanceling(t *testing.T) {
	s := testSubmission(transportWS)
	h := &Handle{sub: s}

	var calls int
	h.On(EventStatus, func(ev Event) { calls++ })
	h.Destroy()

	s.emitStatus(&StatusEvent{Stage: StagePending})

	if calls != 0 {
		t.Errorf("calls = %d, want 0 after Destroy", calls)
	}
	s.stateMu.Lock()
	canceled := s.canceled
	s.stateMu.Unlock()
	if canceled {
		t.Error("Destroy canceled the submission, want only listeners cleared")
	}
}

func TestSubmissionUnexpectedErrorFinalizesTerminal(t *testing.T) {
	s := testSubmission(transportSSEMux)
	s.setEventID("E9")
	s.client.mux.registerEvent("E9", func(raw []byte) {})

	reaction := s.handleFrame([]byte(`not json`))

	if !reaction.terminal || !reaction.closeStream {
		t.Errorf("reaction = %+v, want terminal+closeStream for sse-mux decode failure", reaction)
	}
	if _, registered := s.client.mux.callbacks["E9"]; registered {
		t.Error("E9 still registered in mux after finalizeTerminal")
	}
}

func TestSubmissionHandleFrameCapturesEventIDFromSendData(t *testing.T) {
	s := testSubmission(transportSSELegacy)

	reaction := s.handleFrame([]byte(`{"msg":"send_data","event_id":"E7"}`))

	if !reaction.wantsDataSend {
		t.Fatalf("reaction = %+v, want wantsDataSend", reaction)
	}
	s.stateMu.Lock()
	got := s.eventID
	s.stateMu.Unlock()
	if got != "E7" {
		t.Errorf("eventID = %q, want E7", got)
	}
}

func TestSubmissionListenerAddedDuringDispatchSeesOnlySubsequentEvents(t *testing.T) {
	s := testSubmission(transportWS)
	h := &Handle{sub: s}

	var secondCalls int
	h.On(EventStatus, func(ev Event) {
		h.On(EventStatus, func(ev Event) { secondCalls++ })
	})

	s.emitStatus(&StatusEvent{Stage: StagePending})
	if secondCalls != 0 {
		t.Errorf("secondCalls = %d after first emit, want 0", secondCalls)
	}

	s.emitStatus(&StatusEvent{Stage: StageGenerating})
	if secondCalls != 1 {
		t.Errorf("secondCalls = %d after second emit, want 1", secondCalls)
	}
}
