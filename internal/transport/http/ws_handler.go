package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"github.com/gorilla/websocket"
)

// TimeUpNotice is sent when a timed session is auto-submitted.
const TimeUpNotice = "time is up, your answers were submitted"

type WSHandler struct {
	service      *app.ExamService
	tickInterval time.Duration
	upgrader     websocket.Upgrader
}

// NewWSHandler builds the session channel. A non-positive tickInterval
// disables the timer.
func NewWSHandler(service *app.ExamService, tickInterval time.Duration) *WSHandler {
	return &WSHandler{
		service:      service,
		tickInterval: tickInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type questionPayload struct {
	QuestionID string `json:"questionId"`
}

type answerPayload struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

type confidencePayload struct {
	QuestionID string `json:"questionId"`
	Level      int    `json:"level"`
}

type gotoPayload struct {
	Index int `json:"index"`
}

type saveNextPayload struct {
	MarkForReview *bool `json:"markForReview"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type noticePayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and drives one exam session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	progress, err := h.service.Resume(ctx, sessionID)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	tickerDone := make(chan struct{})

	// single writer; gorilla connections do not allow concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(tickerDone)
		h.runTimer(ctx, sessionID, emit, closeSignals)
	}()

	emit(outboundMessage[any]{Type: "progress", Payload: progress})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		progress, err := h.dispatch(ctx, sessionID, inbound)
		if err != nil {
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			continue
		}
		emit(outboundMessage[any]{Type: "progress", Payload: progress})
		if progress.Notice != "" {
			emit(outboundMessage[any]{Type: "notice", Payload: noticePayload{Message: progress.Notice}})
		}
	}

	close(closeSignals)
	<-tickerDone
	close(send)
	<-writerDone

	// unload: settle the active question and store a last checkpoint
	if err := h.service.Close(context.Background(), sessionID); err != nil {
		log.Printf("unload session %s: %v", sessionID, err)
	}
}

func (h *WSHandler) runTimer(ctx context.Context, sessionID string, emit func(outboundMessage[any]), done <-chan struct{}) {
	if h.tickInterval <= 0 {
		return
	}
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		res, err := h.service.Tick(ctx, sessionID)
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) {
				log.Printf("tick session %s: %v", sessionID, err)
			}
			return
		}
		emit(outboundMessage[any]{Type: "tick", Payload: res})
		if !res.Expired {
			continue
		}
		progress, err := h.service.Submit(ctx, sessionID)
		if err != nil {
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			return
		}
		emit(outboundMessage[any]{Type: "notice", Payload: noticePayload{Message: TimeUpNotice}})
		emit(outboundMessage[any]{Type: "progress", Payload: progress})
		return
	}
}

func (h *WSHandler) dispatch(ctx context.Context, sessionID string, in inboundMessage) (app.Progress, error) {
	s := h.service
	switch in.Type {
	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return app.Progress{}, err
		}
		id, err := h.questionOrCurrent(ctx, sessionID, p.QuestionID)
		if err != nil {
			return app.Progress{}, err
		}
		return s.Answer(ctx, sessionID, id, p.Answer)
	case "confidence":
		var p confidencePayload
		if err := decode(in.Payload, &p); err != nil {
			return app.Progress{}, err
		}
		id, err := h.questionOrCurrent(ctx, sessionID, p.QuestionID)
		if err != nil {
			return app.Progress{}, err
		}
		return s.SetConfidence(ctx, sessionID, id, p.Level)
	case "review", "clear", "rationale":
		var p questionPayload
		if err := decode(in.Payload, &p); err != nil {
			return app.Progress{}, err
		}
		id, err := h.questionOrCurrent(ctx, sessionID, p.QuestionID)
		if err != nil {
			return app.Progress{}, err
		}
		switch in.Type {
		case "review":
			return s.ToggleReview(ctx, sessionID, id)
		case "clear":
			return s.ClearResponse(ctx, sessionID, id)
		default:
			return s.ViewRationale(ctx, sessionID, id)
		}
	case "next":
		return s.Navigate(ctx, sessionID, app.Move{Kind: app.MoveNext})
	case "previous":
		return s.Navigate(ctx, sessionID, app.Move{Kind: app.MovePrevious})
	case "goto":
		var p gotoPayload
		if err := decode(in.Payload, &p); err != nil {
			return app.Progress{}, err
		}
		return s.Navigate(ctx, sessionID, app.Move{Kind: app.MoveGoTo, Index: p.Index})
	case "saveNext":
		var p saveNextPayload
		if err := decode(in.Payload, &p); err != nil {
			return app.Progress{}, err
		}
		return s.SaveAndNext(ctx, sessionID, p.MarkForReview)
	case "save":
		return s.Save(ctx, sessionID)
	case "submit":
		return s.Submit(ctx, sessionID)
	default:
		return app.Progress{}, errors.New("unsupported message type")
	}
}

func (h *WSHandler) questionOrCurrent(ctx context.Context, sessionID, questionID string) (string, error) {
	if questionID != "" {
		return questionID, nil
	}
	progress, err := h.service.Resume(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if progress.CurrentQuestionID == "" {
		return "", domain.ErrInvalidIndex
	}
	return progress.CurrentQuestionID, nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}
