package gradio

import "encoding/json"

// Stage is the lifecycle stage carried on status events, matching
// spec.md's four-value enum exactly. Typed so the terminal status built
// for a complete frame always carries a set value (spec.md §9,
// the "stage: status?.stage!" bug this port avoids by construction).
type Stage string

const (
	StagePending    Stage = "pending"
	StageGenerating Stage = "generating"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
)

// wireFrame is the superset schema of spec.md §6: every field the server
// may send on any of the five transports, decoded once and then
// classified by Interpret.
type wireFrame struct {
	Msg       string          `json:"msg"`
	Stage     string          `json:"stage,omitempty"`
	Code      string          `json:"code,omitempty"`
	Success   *bool           `json:"success,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	QueueSize *int            `json:"queue_size,omitempty"`
	Rank      *int            `json:"rank,omitempty"`
	RankEta   *float64        `json:"rank_eta,omitempty"`
	Eta       *float64        `json:"eta,omitempty"`
	Output    *wireOutput     `json:"output,omitempty"`
	Log       string          `json:"log,omitempty"`
	Level     string          `json:"level,omitempty"`
	Progress  json.RawMessage `json:"progress_data,omitempty"`
	Broken    bool            `json:"broken,omitempty"`
	Message   string          `json:"message,omitempty"`

	// sse_v2/v2.1/v3 diff-stream carriers. A frame that isn't the first for
	// its event_id may omit Output and instead carry Diff, a sequence of
	// (path, op, value) triples applied by the Diff Folder.
	Diff []diffOpWire `json:"diff,omitempty"`
}

type wireOutput struct {
	Data            []any   `json:"data"`
	Error           string  `json:"error,omitempty"`
	AverageDuration float64 `json:"average_duration,omitempty"`
	IsGenerating    bool    `json:"is_generating,omitempty"`
}

type diffOpWire struct {
	Op    string `json:"-"`
	Path  []any  `json:"-"`
	Value any    `json:"-"`
}

// UnmarshalJSON decodes a diff entry shaped as the 3-tuple array
// [op, path, value] that gradio's sse_v2 wire format actually uses rather
// than an object — grounded on the diff-stream description in spec.md
// §4.4 and original_source's JSON-patch-flavored emission.
func (d *diffOpWire) UnmarshalJSON(b []byte) error {
	var tuple [3]json.RawMessage
	if err := json.Unmarshal(b, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &d.Op); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[1], &d.Path); err != nil {
		return err
	}
	return json.Unmarshal(tuple[2], &d.Value)
}

// FrameKind is the classification C3 assigns to one decoded server frame.
type FrameKind string

const (
	KindUpdate          FrameKind = "update"
	KindHash            FrameKind = "hash"
	KindData            FrameKind = "data"
	KindComplete        FrameKind = "complete"
	KindLog             FrameKind = "log"
	KindGenerating      FrameKind = "generating"
	KindHeartbeat       FrameKind = "heartbeat"
	KindUnexpectedError FrameKind = "unexpected_error"
	KindCloseStream     FrameKind = "close_stream"
)

// InterpretedFrame is the pure-function output of the Message Interpreter
// (C3, spec.md §4.3).
type InterpretedFrame struct {
	Kind      FrameKind
	EventID   string
	Status    *StatusEvent
	Data      *wireOutput
	Log       string
	LogLevel  string
	Diff      []diffOpWire
	HasDiff   bool
	ErrorText string
}

// Interpret classifies one decoded server frame. It is a pure function:
// it reads prevStage to decide whether an "estimation"/"process_starts"/
// "progress" frame still counts as pending, and reuses it as the stage of
// a frame whose msg it does not recognise. It never mutates shared state
// (spec.md §4.3: "the caller stores lastStatus itself").
func Interpret(raw []byte, prevStage Stage) (InterpretedFrame, error) {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return InterpretedFrame{}, &ClientException{Cause: err}
	}
	return interpretFrame(wf, prevStage), nil
}

func interpretFrame(wf wireFrame, prevStage Stage) InterpretedFrame {
	switch wf.Msg {
	case "send_hash":
		return InterpretedFrame{Kind: KindHash}

	case "send_data":
		return InterpretedFrame{Kind: KindData, EventID: wf.EventID}

	case "queue_full":
		return InterpretedFrame{
			Kind:      KindUnexpectedError,
			ErrorText: queueFullMsg,
		}

	case "heartbeat":
		return InterpretedFrame{Kind: KindHeartbeat}

	case "unexpected_error":
		msg := wf.Message
		if msg == "" {
			msg = unexpectedErrorMsg
		}
		return InterpretedFrame{Kind: KindUnexpectedError, ErrorText: msg}

	case "close_stream":
		return InterpretedFrame{Kind: KindCloseStream, EventID: wf.EventID}

	case "log":
		return InterpretedFrame{
			Kind:     KindLog,
			EventID:  wf.EventID,
			Log:      wf.Log,
			LogLevel: wf.Level,
		}

	case "process_completed":
		stage := StageComplete
		st := &StatusEvent{Stage: stage, Queue: true}
		if wf.Output != nil {
			if wf.Output.Error != "" {
				st.Stage = StageError
				st.Message = wf.Output.Error
			} else {
				st.Eta = wf.Output.AverageDuration
			}
		}
		return InterpretedFrame{
			Kind:    KindComplete,
			EventID: wf.EventID,
			Status:  st,
			Data:    wf.Output,
			HasDiff: len(wf.Diff) > 0,
			Diff:    wf.Diff,
		}

	case "process_generating":
		st := &StatusEvent{Stage: StageGenerating, Queue: true}
		return InterpretedFrame{
			Kind:    KindGenerating,
			EventID: wf.EventID,
			Status:  st,
			Data:    wf.Output,
			HasDiff: len(wf.Diff) > 0,
			Diff:    wf.Diff,
		}

	case "estimation", "process_starts", "progress":
		st := &StatusEvent{Stage: StagePending, Queue: true}
		if prevStage == StageGenerating {
			st.Stage = StageGenerating
		}
		if wf.QueueSize != nil {
			st.QueueSize = *wf.QueueSize
		}
		if wf.Rank != nil {
			st.Rank = *wf.Rank
		}
		if wf.Eta != nil {
			st.Eta = *wf.Eta
		}
		if len(wf.Progress) > 0 {
			st.Progress = wf.Progress
		}
		return InterpretedFrame{Kind: KindUpdate, EventID: wf.EventID, Status: st}

	default:
		st := &StatusEvent{Stage: prevStage, Queue: true}
		return InterpretedFrame{Kind: KindUpdate, EventID: wf.EventID, Status: st}
	}
}
