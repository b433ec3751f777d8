// Package httpapi is the JSON and websocket surface over the services.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/board"
	"github.com/edubridge/edubridge-backend/internal/conversation"
	"github.com/edubridge/edubridge-backend/internal/directory"
	"github.com/edubridge/edubridge-backend/internal/logging"
	"github.com/edubridge/edubridge-backend/internal/mailer"
	"github.com/edubridge/edubridge-backend/internal/matcher"
	"github.com/edubridge/edubridge-backend/internal/realtime"
	"github.com/edubridge/edubridge-backend/internal/session"
)

type Deps struct {
	Directory    *directory.Service
	Board        *board.Service
	Matcher      *matcher.Service
	Conversation *conversation.Service
	Sessions     *session.Manager
	Realtime     *realtime.Manager
	Mail         mailer.Relay
	// OAuth is nil when Google sign-in is not configured.
	OAuth       *directory.GoogleOAuth
	CORSOrigins []string
	AppBaseURL  string
	Log         *zap.Logger
}

type Server struct {
	dir      *directory.Service
	board    *board.Service
	matcher  *matcher.Service
	conv     *conversation.Service
	sessions *session.Manager
	rt       *realtime.Manager
	mail     mailer.Relay
	oauth    *directory.GoogleOAuth
	origins  []string
	baseURL  string
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(d Deps) *Server {
	s := &Server{
		dir:      d.Directory,
		board:    d.Board,
		matcher:  d.Matcher,
		conv:     d.Conversation,
		sessions: d.Sessions,
		rt:       d.Realtime,
		mail:     d.Mail,
		oauth:    d.OAuth,
		origins:  d.CORSOrigins,
		baseURL:  d.AppBaseURL,
		log:      logging.OrNop(d.Log),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(s.recoverer)

	r.Handle("/api/send-email", mailer.Handler(s.mail, s.log.Named("send-email")))

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/google", s.handleGoogleToken)
	r.Get("/auth/google/login", s.handleGoogleRedirect)
	r.Get("/auth/google/callback", s.handleGoogleCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/auth/logout", s.handleLogout)
		r.Get("/me", s.handleMe)
		r.Get("/users/{userID}", s.handleGetUser)

		r.Post("/posts", s.handleCreatePost)
		r.Get("/posts/open", s.handleOpenPosts)
		r.Get("/posts/mine", s.handleMyPosts)
		r.Post("/posts/{postID}/matches", s.handlePropose)

		r.Get("/matches/pending", s.handlePendingMatches)
		r.Get("/matches/accepted", s.handleAcceptedMatches)
		r.Post("/matches/{matchID}/accept", s.handleAccept)
		r.Get("/matches/{matchID}/messages", s.handleHistory)
		r.Post("/matches/{matchID}/messages", s.handleSend)
		r.Post("/matches/{matchID}/attachments", s.handleAttach)

		r.Get("/files/*", s.handleFile)

		r.Get("/ws/feed", s.handleFeedWS)
		r.Get("/ws/matches/{matchID}/messages", s.handleMessagesWS)
	})

	return s.cors().Handler(r)
}

func (s *Server) cors() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
