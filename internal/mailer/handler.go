package mailer

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/observability"
)

type sendResponse struct {
	Success   bool   `json:"success,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Relay is a Sender that can tell whether its credentials are present.
type Relay interface {
	Sender
	Configured() bool
}

// Handler serves POST {to, subject, html}; recipients are delivered as blind copies.
func Handler(relay Relay, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeResult(w, http.StatusMethodNotAllowed, sendResponse{Error: "Method Not Allowed"})
			return
		}
		var m Mail
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil || len(m.To) == 0 {
			writeResult(w, http.StatusBadRequest, sendResponse{Error: "Missing recipient email(s)"})
			return
		}
		if !relay.Configured() {
			log.Error("SMTP credentials are not configured")
			writeResult(w, http.StatusInternalServerError, sendResponse{Error: "Server email configuration is missing"})
			return
		}
		id, err := relay.Send(r.Context(), m)
		if err != nil {
			log.Error("email sending error", zap.Int("recipients", len(m.To)), zap.Error(err))
			observability.CaptureErr(err)
			writeResult(w, http.StatusInternalServerError, sendResponse{Error: "Failed to send email"})
			return
		}
		writeResult(w, http.StatusOK, sendResponse{Success: true, MessageID: id})
	})
}

func writeResult(w http.ResponseWriter, status int, body sendResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
