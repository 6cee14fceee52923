package app

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"exam-session-service/internal/domain"
)

// CheckAnswer compares a submitted payload with the question's correct
// answer. Text answers are trimmed and compared case-insensitively; other
// JSON values are compared structurally.
func CheckAnswer(q domain.Question, answer json.RawMessage) bool {
	if !(domain.Attempt{Answer: answer}).Answered() || len(bytes.TrimSpace(q.CorrectAnswer)) == 0 {
		return false
	}

	var got, want any
	if err := json.Unmarshal(answer, &got); err != nil {
		return bytes.Equal(bytes.TrimSpace(answer), bytes.TrimSpace(q.CorrectAnswer))
	}
	if err := json.Unmarshal(q.CorrectAnswer, &want); err != nil {
		return false
	}

	gs, gotText := got.(string)
	ws, wantText := want.(string)
	if gotText && wantText {
		return strings.EqualFold(strings.TrimSpace(gs), strings.TrimSpace(ws))
	}
	return reflect.DeepEqual(got, want)
}
