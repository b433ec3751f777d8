package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/metrics"
	"github.com/edubridge/edubridge-backend/internal/observability"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperr.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrWeakCredential):
		return http.StatusBadRequest
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError отвечает по виду ошибки; неожиданные уходят в лог и Sentry.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		metrics.HandlerErrors.Inc()
		uid := userID(r)
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("user_id", uid),
			zap.Error(err),
		)
		observability.CaptureErrWith(err, map[string]string{"path": r.URL.Path, "user_id": uid})
	}
	writeError(w, status, apperr.CodeOf(err), apperr.MessageOf(err))
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid_json", "request body is not valid JSON")
	}
	return nil
}
