package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"exam-session-service/internal/app"
	"exam-session-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

func StartSessionHandler(service *app.ExamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req app.StartRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		progress, err := service.Start(r.Context(), req)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, progress)
	}
}

func GetSessionHandler(service *app.ExamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, err := service.Resume(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, progress)
	}
}

func AnalysisHandler(service *app.ExamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		analysis, err := service.Analysis(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, analysis)
	}
}

func SaveSessionHandler(service *app.ExamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, err := service.Save(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, progress)
	}
}

func SubmitSessionHandler(service *app.ExamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress, err := service.Submit(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, progress)
	}
}

// CloseSessionHandler unloads a live session after a final checkpoint.
func CloseSessionHandler(service *app.ExamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := service.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	respondJSON(w, status, errorPayload{Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuestionSetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrReviewMode):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrMissingSessionID),
		errors.Is(err, domain.ErrUnknownQuestion),
		errors.Is(err, domain.ErrInvalidIndex),
		errors.Is(err, domain.ErrInvalidConfidence),
		errors.Is(err, domain.ErrDuplicateQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
