package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildStatusView(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
		want   StatusView
	}{
		{
			name:   "pending",
			record: &Record{State: StatePending},
			want:   StatusView{TaskID: "h", State: StatePending, Message: "waiting"},
		},
		{
			name:   "progress",
			record: &Record{State: StateProgress, Progress: 60, Step: "Text Chunking"},
			want: StatusView{
				TaskID: "h", State: StateProgress, Progress: 60, Step: "Text Chunking",
				Message: "in progress: Text Chunking",
			},
		},
		{
			name:   "progress without step",
			record: &Record{State: StateProgress, Progress: 0},
			want: StatusView{
				TaskID: "h", State: StateProgress, Step: "Processing",
				Message: "in progress: Processing",
			},
		},
		{
			name:   "success",
			record: &Record{State: StateSuccess, Progress: 80, Result: json.RawMessage(`{"book_id":1}`)},
			want: StatusView{
				TaskID: "h", State: StateSuccess, Progress: 100, Result: json.RawMessage(`{"book_id":1}`),
				Message: "completed",
			},
		},
		{
			name:   "failure",
			record: &Record{State: StateFailure, Progress: 30, Error: "ocr down", Meta: map[string]any{"book_id": 1}},
			want: StatusView{
				TaskID: "h", State: StateFailure, Error: "ocr down", Meta: map[string]any{"book_id": 1},
				Message: "failed",
			},
		},
		{
			name:   "unrecognised state is reported as failure",
			record: &Record{State: State("REVOKED"), Error: "revoked"},
			want:   StatusView{TaskID: "h", State: StateFailure, Error: "revoked", Message: "failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildStatusView("h", tt.record, false))
		})
	}
}

// 記録のないハンドルは PENDING と同じ形になる（未投入と待機中を区別できない既知の曖昧さ）。
func TestBuildStatusViewUnknownHandleLooksPending(t *testing.T) {
	unknown := BuildStatusView("never-issued", nil, false)
	pending := BuildStatusView("never-issued", &Record{State: StatePending}, false)
	assert.Equal(t, pending, unknown)
}

func TestBuildStatusViewStrictUnknown(t *testing.T) {
	view := BuildStatusView("never-issued", nil, true)
	assert.Equal(t, StateUnknown, view.State)
	assert.Equal(t, 0, view.Progress)
	assert.Equal(t, "unknown task", view.Message)
}
