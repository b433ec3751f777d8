// Package board stores doubt and offer posts.
package board

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/logging"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
)

type Store interface {
	CreatePost(ctx context.Context, p models.Post) error
	OpenPosts(ctx context.Context, excludeAuthorID string) iter.Seq2[models.Post, error]
	PostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error)
}

// DoubtNotifier is told about every new doubt; it must not block.
type DoubtNotifier interface {
	DoubtPosted(post models.Post)
}

type NewPost struct {
	Type        models.PostType `json:"type" validate:"required,oneof=doubt offer"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Subject     string          `json:"subject" validate:"required"`
}

type Service struct {
	store    Store
	notifier DoubtNotifier
	pub      realtime.Publisher
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func New(store Store, notifier DoubtNotifier, pub realtime.Publisher, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		pub:      pub,
		log:      logging.OrNop(log),
		validate: validator.New(),
		now:      time.Now,
	}
}

// CreatePost stores an open post; a doubt also triggers the peer notification.
func (s *Service) CreatePost(ctx context.Context, authorID string, in NewPost) (models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := s.validate.Struct(in); err != nil {
		return models.Post{}, apperr.Validation("missing_fields", "type, title, description and subject are required")
	}

	p := models.Post{
		ID:          uuid.NewString(),
		Type:        in.Type,
		AuthorID:    authorID,
		Title:       in.Title,
		Description: in.Description,
		Subject:     in.Subject,
		CreatedAt:   s.now().UTC(),
		Status:      models.PostOpen,
	}
	if err := s.store.CreatePost(ctx, p); err != nil {
		return models.Post{}, fmt.Errorf("create post: %w", err)
	}
	s.log.Info("post created", zap.String("post_id", p.ID), zap.String("type", string(p.Type)), zap.String("author_id", authorID))

	if p.Type == models.Doubt && s.notifier != nil {
		s.notifier.DoubtPosted(p)
	}
	realtime.Emit(ctx, s.pub, s.log, realtime.TopicPosts, "created", p)
	return p, nil
}

// ListOpenPosts returns open posts by other authors, newest first.
// The sequence can be ranged once; a second range yields ErrIterationConsumed.
func (s *Service) ListOpenPosts(ctx context.Context, excludeAuthorID string) iter.Seq2[models.Post, error] {
	inner := s.store.OpenPosts(ctx, excludeAuthorID)
	var used atomic.Bool
	return func(yield func(models.Post, error) bool) {
		if used.Swap(true) {
			yield(models.Post{}, apperr.ErrIterationConsumed)
			return
		}
		inner(yield)
	}
}

// CollectOpenPosts: то же, собранное в срез.
func (s *Service) CollectOpenPosts(ctx context.Context, excludeAuthorID string) ([]models.Post, error) {
	out := []models.Post{}
	for p, err := range s.ListOpenPosts(ctx, excludeAuthorID) {
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) ListMyPosts(ctx context.Context, authorID string) ([]models.Post, error) {
	return s.store.PostsByAuthor(ctx, authorID)
}
