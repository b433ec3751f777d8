package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/metrics"
)

// Pinger: всё, что умеет проверить соединение с БД.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPServer struct {
	srv  *http.Server
	done chan struct{}
	err  error
}

// NewMux вешает /healthz и /metrics рядом с API.
func NewMux(db Pinger, api http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		metrics.ObserveDBPing(time.Since(t0))
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", api)
	return mux
}

func StartHTTP(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) *HTTPServer {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h := &HTTPServer{srv: srv, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		log.Info("http listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
			h.err = err
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx) // websocket-соединения закрываются через realtime.Manager
	}()

	return h
}

// Done закрывается, когда сервер перестал принимать соединения.
func (h *HTTPServer) Done() <-chan struct{} { return h.done }

// Err: причина остановки, если это не штатный Shutdown. Читать после Done.
func (h *HTTPServer) Err() error {
	<-h.done
	return h.err
}
