package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edubridge/edubridge-backend/internal/models"
)

type SeedResult struct {
	LearnerID string
	MentorID  string
	Matched   int
}

// Seed добавляет демо-данные: ученика с закрытым вопросом, ментора с открытым
// предложением и принятые матчи ученика со всеми ранее существовавшими пользователями.
func (s *Store) Seed(ctx context.Context, now time.Time) (SeedResult, error) {
	var res SeedResult
	err := s.WithTx(ctx, func(q *Queries) error {
		existing, err := q.ListUsers(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		rating := models.DefaultRating
		suffix := fmt.Sprintf("%d", now.UnixMilli())
		learner := models.User{
			ID:          "user_alex_" + suffix,
			Name:        "Alex from Computer Science",
			Email:       "alex+" + suffix + "@example.com",
			Role:        models.DefaultRole,
			UserType:    models.Student,
			Subjects:    []string{"Calculus", "Python", "Data Structures"},
			Rating:      &rating,
			CollegeID:   "12345",
			CollegeName: "Final College",
		}
		mentor := models.User{
			ID:          "user_sarah_" + suffix,
			Name:        "Sarah Mentor",
			Email:       "sarah+" + suffix + "@example.com",
			Role:        models.DefaultRole,
			UserType:    models.Teacher,
			Subjects:    []string{"React", "JavaScript"},
			Rating:      &rating,
			CollegeID:   "12345",
			CollegeName: "Final College",
		}
		for _, u := range []models.User{learner, mentor} {
			if err := q.CreateUser(ctx, u); err != nil {
				return fmt.Errorf("insert user %s: %w", u.Name, err)
			}
		}

		doubt := models.Post{
			ID:          uuid.NewString(),
			Type:        models.Doubt,
			AuthorID:    learner.ID,
			Title:       "Help with Binary Search Trees",
			Description: "Can someone explain how to balance a binary search tree in Python? I have my midterms tomorrow and am stuck on AVL rotations.",
			Subject:     "Data Structures",
			CreatedAt:   now.Add(-100 * time.Second),
			Status:      models.PostMatched, // уже сматчен, чтобы сразу был чат
		}
		offer := models.Post{
			ID:          uuid.NewString(),
			Type:        models.Offer,
			AuthorID:    mentor.ID,
			Title:       "Offering advanced React help session",
			Description: "I'm a TA for the frontend course. If anyone needs help understanding useEffect or custom hooks, hit me up! I have 2 hours free this evening.",
			Subject:     "React",
			CreatedAt:   now.Add(-50 * time.Second),
			Status:      models.PostOpen,
		}
		for _, p := range []models.Post{doubt, offer} {
			if err := q.CreatePost(ctx, p); err != nil {
				return fmt.Errorf("insert post %q: %w", p.Title, err)
			}
		}

		for _, u := range existing {
			m := models.Match{
				ID:        uuid.NewString(),
				PostID:    doubt.ID,
				LearnerID: learner.ID,
				MentorID:  u.ID,
				Status:    models.MatchAccepted,
				CreatedAt: now,
			}
			if err := q.CreateMatch(ctx, m); err != nil {
				return fmt.Errorf("insert match with %s: %w", u.ID, err)
			}
			res.Matched++
		}
		res.LearnerID, res.MentorID = learner.ID, mentor.ID
		return nil
	})
	return res, err
}
