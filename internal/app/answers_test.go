package app

import (
	"encoding/json"
	"testing"

	"exam-session-service/internal/domain"
)

func TestCheckAnswer(t *testing.T) {
	cases := []struct {
		name    string
		correct string
		answer  string
		want    bool
	}{
		{"exact option", `"b"`, `"b"`, true},
		{"case and spaces", `"Concise"`, `"  concise "`, true},
		{"wrong option", `"b"`, `"c"`, false},
		{"ordered sequence", `["2","4","1","3"]`, `["2","4","1","3"]`, true},
		{"sequence out of order", `["2","4","1","3"]`, `["4","2","1","3"]`, false},
		{"number vs string", `3`, `"3"`, false},
		{"null answer", `"b"`, `null`, false},
		{"empty answer", `"b"`, ``, false},
		{"no key", ``, `"b"`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := domain.Question{ID: "q1", CorrectAnswer: json.RawMessage(tc.correct)}
			if got := CheckAnswer(q, json.RawMessage(tc.answer)); got != tc.want {
				t.Fatalf("CheckAnswer(%s, %s) = %v, want %v", tc.correct, tc.answer, got, tc.want)
			}
		})
	}
}
