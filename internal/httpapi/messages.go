package httpapi

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/conversation"
)

// запас на multipart-обвязку поверх самого файла
const multipartOverhead = 64 << 10

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.conv.History(r.Context(), chi.URLParam(r, "matchID"), userID(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	msg, err := s.conv.Send(r.Context(), chi.URLParam(r, "matchID"), userID(r), req.Text)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// handleAttach принимает multipart-поле "file".
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	limit := int64(conversation.MaxAttachmentBytes + multipartOverhead)
	if r.ContentLength > limit {
		s.writeAppError(w, r, apperr.ErrFileTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.writeAppError(w, r, apperr.ErrFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_upload", "expected multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "expected multipart form with a file field")
		return
	}
	defer file.Close()

	ct := hdr.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	msg, err := s.conv.AttachFile(r.Context(), chi.URLParam(r, "matchID"), userID(r), conversation.Upload{
		Name:        hdr.Filename,
		ContentType: ct,
		Size:        hdr.Size,
		Body:        file,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	objPath := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		// chi матчит по RawPath, если он есть; в бакете имена хранятся без экранирования
		if p, err := url.PathUnescape(objPath); err == nil {
			objPath = p
		}
	}
	rc, obj, err := s.conv.OpenAttachment(r.Context(), userID(r), objPath)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	defer rc.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("file stream interrupted", zap.String("path", obj.Path), zap.Error(err))
	}
}
