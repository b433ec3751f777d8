// Package matcher pairs posts with helpers and runs the accept handshake.
package matcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/logging"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
)

// Tx: записи, которые accept делает атомарно.
type Tx interface {
	AdvanceMatchStatus(ctx context.Context, id string, from, to models.MatchStatus) (models.Match, error)
	AdvancePostStatus(ctx context.Context, id string, from, to models.PostStatus) error
}

type Store interface {
	GetPost(ctx context.Context, id string) (models.Post, error)
	CreateMatch(ctx context.Context, m models.Match) error
	GetMatch(ctx context.Context, id string) (models.Match, error)
	PendingForLearner(ctx context.Context, learnerID string) ([]models.Match, error)
	AcceptedForUser(ctx context.Context, userID string) ([]models.Match, error)
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

type Service struct {
	store Store
	pub   realtime.Publisher
	log   *zap.Logger
	now   func() time.Time
}

func New(store Store, pub realtime.Publisher, log *zap.Logger) *Service {
	return &Service{store: store, pub: pub, log: logging.OrNop(log), now: time.Now}
}

// Propose creates a pending match. The post author is always the learner and
// the counterparty the mentor, whatever the post type.
func (s *Service) Propose(ctx context.Context, postID, counterpartyID string) (models.Match, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return models.Match{}, err
	}
	m := models.Match{
		ID:        uuid.NewString(),
		PostID:    post.ID,
		LearnerID: post.AuthorID,
		MentorID:  counterpartyID,
		Status:    models.MatchPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateMatch(ctx, m); err != nil {
		return models.Match{}, fmt.Errorf("create match: %w", err)
	}
	s.log.Info("match proposed", zap.String("match_id", m.ID), zap.String("post_id", post.ID), zap.String("mentor_id", counterpartyID))
	realtime.Emit(ctx, s.pub, s.log, realtime.TopicMatches, "created", m)
	return m, nil
}

// Accept moves the match to accepted and its post to matched in one
// transaction; if either conditional write fails neither is applied.
func (s *Service) Accept(ctx context.Context, matchID string) (models.Match, error) {
	var accepted models.Match
	err := s.store.WithinTx(ctx, func(tx Tx) error {
		m, err := tx.AdvanceMatchStatus(ctx, matchID, models.MatchPending, models.MatchAccepted)
		if err != nil {
			return err
		}
		if err := tx.AdvancePostStatus(ctx, m.PostID, models.PostOpen, models.PostMatched); err != nil {
			return err
		}
		accepted = m
		return nil
	})
	if err != nil {
		return models.Match{}, fmt.Errorf("accept match %s: %w", matchID, err)
	}
	s.log.Info("match accepted", zap.String("match_id", accepted.ID), zap.String("post_id", accepted.PostID))
	realtime.Emit(ctx, s.pub, s.log, realtime.TopicMatches, "accepted", accepted)
	realtime.Emit(ctx, s.pub, s.log, realtime.TopicPosts, "matched", map[string]string{"id": accepted.PostID})
	return accepted, nil
}

// AcceptAs: accept от имени пользователя: принять может только ученик (автор поста).
func (s *Service) AcceptAs(ctx context.Context, matchID, actorID string) (models.Match, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return models.Match{}, err
	}
	if m.LearnerID != actorID {
		return models.Match{}, apperr.ErrForbidden
	}
	return s.Accept(ctx, matchID)
}

func (s *Service) Get(ctx context.Context, matchID string) (models.Match, error) {
	return s.store.GetMatch(ctx, matchID)
}

func (s *Service) PendingFor(ctx context.Context, learnerID string) ([]models.Match, error) {
	return s.store.PendingForLearner(ctx, learnerID)
}

func (s *Service) AcceptedFor(ctx context.Context, userID string) ([]models.Match, error) {
	return s.store.AcceptedForUser(ctx, userID)
}
