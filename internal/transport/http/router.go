package http

import (
	"net/http"
	"time"

	"exam-session-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the REST routes and the websocket channel.
func NewRouter(service *app.ExamService, ws *WSHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)

	r.Route("/sessions", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/", StartSessionHandler(service))
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", GetSessionHandler(service))
			r.Delete("/", CloseSessionHandler(service))
			r.Get("/analysis", AnalysisHandler(service))
			r.Post("/save", SaveSessionHandler(service))
			r.Post("/submit", SubmitSessionHandler(service))
		})
	})
	return r
}
