package timerange

const (
	StartBeforeEndMessage = "시작 시간은 종료 시간보다 빨라야 합니다."
	EndAfterStartMessage  = "종료 시간은 시작 시간보다 늦어야 합니다."
)

// Errors holds the inline messages for the start and end time fields.
// An empty string means the field has no error.
type Errors struct {
	StartTimeError string `json:"startTimeError,omitempty"`
	EndTimeError   string `json:"endTimeError,omitempty"`
}

// HasError reports whether either field carries a message.
func (e Errors) HasError() bool {
	return e.StartTimeError != "" || e.EndTimeError != ""
}

// TimeErrorMessage validates an HH:MM start/end pair. Both fields report an
// error when start is not strictly before end; an empty field is still being
// typed and never produces an error.
func TimeErrorMessage(start, end string) Errors {
	if start == "" || end == "" {
		return Errors{}
	}
	// Zero-padded HH:MM strings order the same way as the times they name.
	if start >= end {
		return Errors{
			StartTimeError: StartBeforeEndMessage,
			EndTimeError:   EndAfterStartMessage,
		}
	}
	return Errors{}
}
