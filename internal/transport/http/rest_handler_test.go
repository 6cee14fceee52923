package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"exam-session-service/internal/app"
	"exam-session-service/internal/scoring"
)

func TestRESTSessionLifecycle(t *testing.T) {
	service := newTestService()
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, 0)))
	defer server.Close()

	id := startSession(t, server.URL, "set-1")

	var progress app.Progress
	decodeBody(t, getJSON(t, server.URL+"/sessions/"+id, http.StatusOK), &progress)
	if progress.Session.ID != id || len(progress.QuestionOrder) != 2 {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	postJSON(t, server.URL+"/sessions/"+id+"/save", nil, http.StatusOK)
	decodeBody(t, postJSON(t, server.URL+"/sessions/"+id+"/submit", nil, http.StatusOK), &progress)
	if progress.Session.CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
	postJSON(t, server.URL+"/sessions/"+id+"/submit", nil, http.StatusConflict)

	var analysis scoring.Analysis
	decodeBody(t, getJSON(t, server.URL+"/sessions/"+id+"/analysis", http.StatusOK), &analysis)
	if analysis.TotalQuestions != 2 || analysis.UnattemptedCount != 2 || analysis.Percentage != 0 {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}

	req, _ := http.NewRequest(http.MethodDelete, server.URL+"/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	// unloaded sessions come back from their checkpoint
	decodeBody(t, getJSON(t, server.URL+"/sessions/"+id, http.StatusOK), &progress)
	if progress.Session.Mode != "solution" {
		t.Fatalf("expected resumed session in review, got %s", progress.Session.Mode)
	}
}

func TestRESTErrors(t *testing.T) {
	service := newTestService()
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, 0)))
	defer server.Close()

	getJSON(t, server.URL+"/sessions/unknown", http.StatusNotFound)
	postJSON(t, server.URL+"/sessions", app.StartRequest{QuestionSetID: "missing", UserID: "u1"}, http.StatusNotFound)
	postJSON(t, server.URL+"/sessions", app.StartRequest{QuestionSetID: "set-1"}, http.StatusBadRequest)

	body := getJSON(t, server.URL+"/healthz", http.StatusOK)
	if string(body) != "ok" {
		t.Fatalf("unexpected health body %q", body)
	}
}

func postJSON(t *testing.T, url string, v any, wantStatus int) []byte {
	t.Helper()
	var body io.Reader = http.NoBody
	if v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	resp, err := http.Post(url, "application/json", body)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return readBody(t, resp, wantStatus)
}

func getJSON(t *testing.T, url string, wantStatus int) []byte {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	return readBody(t, resp, wantStatus)
}

func readBody(t *testing.T, resp *http.Response, wantStatus int) []byte {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d, got %d: %s", wantStatus, resp.StatusCode, raw)
	}
	return raw
}

func decodeBody(t *testing.T, raw []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}
