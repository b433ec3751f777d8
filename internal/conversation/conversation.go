// Package conversation is the per-match message log with file attachments.
package conversation

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/logging"
	"github.com/edubridge/edubridge-backend/internal/metrics"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
	"github.com/edubridge/edubridge-backend/internal/storage"
)

// MaxAttachmentBytes: 5 MiB, больше не принимаем.
const MaxAttachmentBytes = 5 * 1024 * 1024

const filesPrefix = "chat_files"

// DefaultUploadTimeout: сколько ждём хранилище на одно вложение.
const DefaultUploadTimeout = 2 * time.Minute

type Store interface {
	GetMatch(ctx context.Context, id string) (models.Match, error)
	CreateMessage(ctx context.Context, m models.Message) error
	Messages(ctx context.Context, matchID string) ([]models.Message, error)
}

// UploadGuard хранит флаг "идёт загрузка" на пару (матч, отправитель).
type UploadGuard interface {
	TryAcquire(key string) (release func(), ok bool)
}

// Upload: файл от клиента. Size берётся из заголовков запроса.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Service struct {
	UploadTimeout time.Duration

	store  Store
	bucket storage.Bucket
	guard  UploadGuard
	pub    realtime.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func New(store Store, bucket storage.Bucket, guard UploadGuard, pub realtime.Publisher, log *zap.Logger) *Service {
	return &Service{
		UploadTimeout: DefaultUploadTimeout,
		store:         store,
		bucket:        bucket,
		guard:         guard,
		pub:           pub,
		log:           logging.OrNop(log),
		now:           time.Now,
	}
}

// openChat возвращает матч, если userID его участник и матч принят.
func (s *Service) openChat(ctx context.Context, matchID, userID string) (models.Match, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	if !m.Participant(userID) {
		return models.Match{}, apperr.ErrForbidden
	}
	if m.Status != models.MatchAccepted {
		return models.Match{}, apperr.ErrChatLocked
	}
	return m, nil
}

func (s *Service) Send(ctx context.Context, matchID, senderID, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, apperr.ErrEmptyMessage
	}
	if _, err := s.openChat(ctx, matchID, senderID); err != nil {
		return models.Message{}, err
	}
	msg := models.Message{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		SenderID:  senderID,
		Text:      text,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}
	realtime.Emit(ctx, s.pub, s.log, realtime.MessagesTopic(matchID), "created", msg)
	return msg, nil
}

// AttachFile проверяет размер до любых обращений к хранилищам.
// Если запись сообщения не удалась, загруженный объект остаётся в бакете.
func (s *Service) AttachFile(ctx context.Context, matchID, senderID string, f Upload) (models.Message, error) {
	if f.Size > MaxAttachmentBytes {
		metrics.Uploads.WithLabelValues("too_large").Inc()
		return models.Message{}, apperr.ErrFileTooLarge
	}
	if _, err := s.openChat(ctx, matchID, senderID); err != nil {
		return models.Message{}, err
	}

	release, ok := s.guard.TryAcquire(matchID + "/" + senderID)
	if !ok {
		metrics.Uploads.WithLabelValues("busy").Inc()
		return models.Message{}, apperr.ErrUploadInProgress
	}
	defer release()

	now := s.now().UTC()
	name := safeName(f.Name)
	objPath := ObjectPath(matchID, now, name)
	// тело может оказаться длиннее заявленного
	body := io.LimitReader(f.Body, MaxAttachmentBytes)

	putCtx, cancel := context.WithTimeout(ctx, s.UploadTimeout)
	url, err := s.bucket.Put(putCtx, objPath, f.ContentType, body)
	cancel()
	if err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		return models.Message{}, fmt.Errorf("upload %s: %w", objPath, err)
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		SenderID:  senderID,
		Timestamp: now,
		FileURL:   url,
		FileName:  name,
		FileType:  f.ContentType,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		s.log.Warn("attachment stored without message", zap.String("path", objPath), zap.Error(err))
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}
	metrics.Uploads.WithLabelValues("ok").Inc()
	s.log.Info("attachment uploaded", zap.String("match_id", matchID), zap.String("path", objPath), zap.Int64("size", f.Size))
	realtime.Emit(ctx, s.pub, s.log, realtime.MessagesTopic(matchID), "created", msg)
	return msg, nil
}

// History: сообщения матча по возрастанию времени.
func (s *Service) History(ctx context.Context, matchID, viewerID string) ([]models.Message, error) {
	if _, err := s.openChat(ctx, matchID, viewerID); err != nil {
		return nil, err
	}
	return s.store.Messages(ctx, matchID)
}

// OpenAttachment отдаёт объект только участникам матча из его пути.
func (s *Service) OpenAttachment(ctx context.Context, viewerID, objPath string) (io.ReadCloser, storage.Object, error) {
	matchID, ok := matchOf(objPath)
	if !ok {
		return nil, storage.Object{}, apperr.ErrNotFound
	}
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, storage.Object{}, err
	}
	if !m.Participant(viewerID) {
		return nil, storage.Object{}, apperr.ErrForbidden
	}
	return s.bucket.Open(ctx, objPath)
}

// ObjectPath: chat_files/{matchID}/{epochMillis}_{name}.
func ObjectPath(matchID string, at time.Time, name string) string {
	return path.Join(filesPrefix, matchID, strconv.FormatInt(at.UnixMilli(), 10)+"_"+name)
}

func matchOf(objPath string) (string, bool) {
	parts := strings.Split(objPath, "/")
	if len(parts) != 3 || parts[0] != filesPrefix || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
