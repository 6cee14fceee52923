package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"exam-session-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketSessionFlow(t *testing.T) {
	service := newTestService()
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, 0)))
	defer server.Close()

	id := startSession(t, server.URL, "set-1")
	conn := dial(t, server.URL, id)
	defer conn.Close()

	first := readNext(conn, t, "progress")
	if first.Payload["currentQuestionId"] != "q1" {
		t.Fatalf("expected q1 first, got %v", first.Payload["currentQuestionId"])
	}

	send(t, conn, "answer", map[string]any{"answer": "b"})
	msg := readNext(conn, t, "progress")
	current := msg.Payload["current"].(map[string]any)
	if current["user_answer"] != "b" || current["is_correct"] != true {
		t.Fatalf("expected drafted answer on current question, got %v", current)
	}

	send(t, conn, "saveNext", map[string]any{"markForReview": true})
	msg = readNext(conn, t, "progress")
	if msg.Payload["currentQuestionId"] != "q2" {
		t.Fatalf("expected q2 after saveNext, got %v", msg.Payload["currentQuestionId"])
	}
	analysis := msg.Payload["analysis"].(map[string]any)
	if analysis["correctCount"] != float64(1) || analysis["markedForReviewCount"] != float64(1) {
		t.Fatalf("unexpected analysis after saveNext: %v", analysis)
	}

	send(t, conn, "goto", map[string]any{"index": 9})
	readNext(conn, t, "error")

	send(t, conn, "submit", nil)
	msg = readNext(conn, t, "progress")
	session := msg.Payload["session"].(map[string]any)
	if session["status"] != string(domain.StatusCompleted) || session["mode"] != string(domain.ModeSolution) {
		t.Fatalf("expected completed session, got %v", session)
	}

	send(t, conn, "answer", map[string]any{"questionId": "q2", "answer": "x"})
	readNext(conn, t, "error")

	send(t, conn, "dance", nil)
	readNext(conn, t, "error")
}

func TestWebSocketAutoSubmitsOnExpiry(t *testing.T) {
	service := newTestService()
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, 10*time.Millisecond)))
	defer server.Close()

	id := startSession(t, server.URL, "set-timed")
	conn := dial(t, server.URL, id)
	defer conn.Close()

	readNext(conn, t, "progress")

	ticks, noticed := 0, false
	for i := 0; i < 10; i++ {
		msg := readNext(conn, t, "")
		switch msg.Type {
		case "tick":
			ticks++
		case "notice":
			if msg.Payload["message"] != TimeUpNotice {
				t.Fatalf("unexpected notice %v", msg.Payload)
			}
			noticed = true
		case "progress":
			if !noticed {
				t.Fatalf("expected notice before final progress")
			}
			session := msg.Payload["session"].(map[string]any)
			if session["status"] != string(domain.StatusCompleted) {
				t.Fatalf("expected auto-submitted session, got %v", session)
			}
			if ticks != 2 {
				t.Fatalf("expected 2 ticks before expiry, got %d", ticks)
			}
			return
		}
	}
	t.Fatalf("session was not auto-submitted")
}

func TestWebSocketRejectsUnknownSession(t *testing.T) {
	service := newTestService()
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, 0)))
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server.URL, "nope"), nil)
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", resp)
	}
}

func TestDisconnectStoresCheckpoint(t *testing.T) {
	sessions := memory.NewSessionStore()
	checkpoints := memory.NewCheckpointStore()
	service := newServiceWith(sessions, checkpoints)
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, 0)))
	defer server.Close()

	id := startSession(t, server.URL, "set-1")
	conn := dial(t, server.URL, id)
	readNext(conn, t, "progress")
	send(t, conn, "answer", map[string]any{"answer": "a"})
	readNext(conn, t, "progress")
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, live := sessions.Get(id); !live {
			cp, err := checkpoints.LoadCheckpoint(context.Background(), id)
			if err != nil {
				t.Fatalf("load checkpoint: %v", err)
			}
			if len(cp.Attempts) != 1 || string(cp.Attempts[0].Answer) != `"a"` {
				t.Fatalf("expected draft committed on unload, got %+v", cp.Attempts)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session was not unloaded after disconnect")
}

type wsMessage struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) wsMessage {
	t.Helper()
	var msg wsMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%v)", expect, msg.Type, msg.Payload)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func dial(t *testing.T, base, sessionID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base, sessionID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func wsURL(base, sessionID string) string {
	return "ws" + base[len("http"):] + "/ws?sessionId=" + sessionID
}

func startSession(t *testing.T, base, setID string) string {
	t.Helper()
	body := postJSON(t, base+"/sessions", app.StartRequest{QuestionSetID: setID, UserID: "u1", Flow: "mock"}, http.StatusCreated)
	var progress app.Progress
	if err := json.Unmarshal(body, &progress); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	return progress.Session.ID
}

func newTestService() *app.ExamService {
	return newServiceWith(memory.NewSessionStore(), memory.NewCheckpointStore())
}

func newServiceWith(sessions *memory.SessionStore, checkpoints *memory.CheckpointStore) *app.ExamService {
	sets := memory.NewQuestionSetRepository(memory.NewStaticQuestionSetLoader(sampleSets()), time.Minute)
	return app.NewExamService(sessions, sets, checkpoints)
}

func sampleSets() map[string]domain.QuestionSet {
	return map[string]domain.QuestionSet{
		"set-1": {
			ID: "set-1",
			Questions: []domain.Question{
				{ID: "q1", Type: domain.TypeMCQ, Prompt: "Pick one", CorrectAnswer: json.RawMessage(`"b"`)},
				{ID: "q2", Type: domain.TypeOddOneOut, Prompt: "Odd one out", CorrectAnswer: json.RawMessage(`"4"`)},
			},
		},
		"set-timed": {
			ID:               "set-timed",
			TimeLimitSeconds: 2,
			Questions: []domain.Question{
				{ID: "t1", Type: domain.TypeMCQ, Prompt: "Quick", CorrectAnswer: json.RawMessage(`"a"`)},
			},
		},
	}
}
