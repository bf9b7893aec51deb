package jobs

import "fmt"

const (
	messagePending  = "waiting"
	messageSuccess  = "completed"
	messageFailure  = "failed"
	messageUnknown  = "unknown task"
	defaultStepName = "Processing"
)

// BuildStatusView は状態レコードをクライアント向けの形に変換します。
//
// 状態ストアに記録のないハンドルは、既定では PENDING と同じ形で返します（未投入と待機中を区別できない）。
// strictUnknown が true の場合のみ UNKNOWN を返します。
func BuildStatusView(handle string, record *Record, strictUnknown bool) StatusView {
	if record == nil {
		if strictUnknown {
			return StatusView{TaskID: handle, State: StateUnknown, Message: messageUnknown}
		}
		return StatusView{TaskID: handle, State: StatePending, Message: messagePending}
	}

	switch record.State {
	case StatePending:
		return StatusView{TaskID: handle, State: StatePending, Message: messagePending}
	case StateProgress:
		step := record.Step
		if step == "" {
			step = defaultStepName
		}
		return StatusView{
			TaskID:   handle,
			State:    StateProgress,
			Progress: record.Progress,
			Step:     step,
			Message:  fmt.Sprintf("in progress: %s", step),
		}
	case StateSuccess:
		return StatusView{
			TaskID:   handle,
			State:    StateSuccess,
			Progress: 100,
			Result:   record.Result,
			Message:  messageSuccess,
		}
	default:
		return StatusView{
			TaskID:  handle,
			State:   StateFailure,
			Error:   record.Error,
			Meta:    record.Meta,
			Message: messageFailure,
		}
	}
}
