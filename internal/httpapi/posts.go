package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edubridge/edubridge-backend/internal/board"
	"github.com/edubridge/edubridge-backend/internal/models"
)

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var in board.NewPost
	if err := decodeJSON(r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := s.board.CreatePost(r.Context(), userID(r), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleOpenPosts(w http.ResponseWriter, r *http.Request) {
	posts := []models.Post{}
	for p, err := range s.board.ListOpenPosts(r.Context(), userID(r)) {
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		posts = append(posts, p)
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleMyPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.board.ListMyPosts(r.Context(), userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	m, err := s.matcher.Propose(r.Context(), chi.URLParam(r, "postID"), userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handlePendingMatches(w http.ResponseWriter, r *http.Request) {
	ms, err := s.matcher.PendingFor(r.Context(), userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) handleAcceptedMatches(w http.ResponseWriter, r *http.Request) {
	ms, err := s.matcher.AcceptedFor(r.Context(), userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	m, err := s.matcher.AcceptAs(r.Context(), chi.URLParam(r, "matchID"), userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
