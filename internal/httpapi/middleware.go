package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/ctxutil"
	"github.com/edubridge/edubridge-backend/internal/metrics"
	"github.com/edubridge/edubridge-backend/internal/observability"
	"github.com/edubridge/edubridge-backend/internal/session"
)

type (
	sessionKey struct{}
	// accessKey несёт в access log id пользователя, найденный authMiddleware.
	accessKey struct{}
)

func sessionFrom(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(session.Session)
	return sess, ok
}

// userID: id пользователя текущего запроса; под authMiddleware всегда есть.
func userID(r *http.Request) string {
	id, _ := ctxutil.UserID(r.Context())
	return id
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			// браузер не умеет ставить заголовки на websocket и <img>
			token = r.URL.Query().Get("access_token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token", "authorization required")
			return
		}
		sess, err := s.sessions.Authenticate(r.Context(), token)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		ctx := ctxutil.WithUserID(r.Context(), sess.User.ID)
		ctx = ctxutil.WithSessionID(ctx, sess.ID)
		ctx = context.WithValue(ctx, sessionKey{}, sess)
		if p, ok := r.Context().Value(accessKey{}).(*string); ok {
			*p = sess.User.ID
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		var uid string
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), accessKey{}, &uid)))

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		metrics.ObserveRequest(route, strconv.Itoa(status), d)
		s.log.Info("http",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", d),
			zap.String("user_id", uid),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := fmt.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, rec)
			metrics.HandlerErrors.Inc()
			s.log.Error("panic recovered", zap.Error(err), zap.Stack("stack"))
			observability.CaptureErr(err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}
