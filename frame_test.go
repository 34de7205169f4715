package gradio

import "testing"

func TestInterpretClassifiesFrameKinds(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		prevStage Stage
		wantKind  FrameKind
		wantStage Stage
	}{
		{
			name:     "send_hash",
			raw:      `{"msg":"send_hash"}`,
			wantKind: KindHash,
		},
		{
			name:     "send_data",
			raw:      `{"msg":"send_data","event_id":"E1"}`,
			wantKind: KindData,
		},
		{
			name:      "queue_full",
			raw:       `{"msg":"queue_full"}`,
			wantKind:  KindUnexpectedError,
		},
		{
			name:      "estimation carries pending stage",
			raw:       `{"msg":"estimation","rank":2,"queue_size":5}`,
			prevStage: StagePending,
			wantKind:  KindUpdate,
			wantStage: StagePending,
		},
		{
			name:      "estimation during generating stays generating",
			raw:       `{"msg":"estimation"}`,
			prevStage: StageGenerating,
			wantKind:  KindUpdate,
			wantStage: StageGenerating,
		},
		{
			name:      "process_generating",
			raw:       `{"msg":"process_generating","output":{"data":["hi"]}}`,
			wantKind:  KindGenerating,
			wantStage: StageGenerating,
		},
		{
			name:      "process_completed success",
			raw:       `{"msg":"process_completed","output":{"data":["done"],"average_duration":1.5}}`,
			wantKind:  KindComplete,
			wantStage: StageComplete,
		},
		{
			name:      "process_completed with output error",
			raw:       `{"msg":"process_completed","output":{"error":"boom"}}`,
			wantKind:  KindComplete,
			wantStage: StageError,
		},
		{
			name:     "close_stream",
			raw:      `{"msg":"close_stream"}`,
			wantKind: KindCloseStream,
		},
		{
			name:     "heartbeat",
			raw:      `{"msg":"heartbeat"}`,
			wantKind: KindHeartbeat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Interpret([]byte(tt.raw), tt.prevStage)
			if err != nil {
				t.Fatalf("Interpret() error = %v", err)
			}
			if frame.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", frame.Kind, tt.wantKind)
			}
			if tt.wantStage != "" {
				if frame.Status == nil {
					t.Fatalf("Status = nil, want stage %s", tt.wantStage)
				}
				if frame.Status.Stage != tt.wantStage {
					t.Errorf("Stage = %s, want %s", frame.Status.Stage, tt.wantStage)
				}
			}
		})
	}
}

func TestInterpretDiffFrame(t *testing.T) {
	raw := `{"msg":"process_generating","diff":[["replace",[0],"hi"]]}`
	frame, err := Interpret([]byte(raw), StagePending)
	if err != nil {
		t.Fatalf("Interpret() error = %v", err)
	}
	if !frame.HasDiff {
		t.Fatalf("HasDiff = false, want true")
	}
	if len(frame.Diff) != 1 || frame.Diff[0].Op != "replace" {
		t.Fatalf("Diff = %+v, want one replace op", frame.Diff)
	}
}

func TestInterpretMalformedFrame(t *testing.T) {
	if _, err := Interpret([]byte(`not json`), StagePending); err == nil {
		t.Fatal("expected error for malformed frame")
	}
}
