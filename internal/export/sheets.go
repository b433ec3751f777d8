package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edubridge/edubridge-backend/internal/models"
)

const timeLayout = "2006-01-02 15:04:05"

// Source: выборки всех коллекций для выгрузки.
type Source interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	ListMatches(ctx context.Context) ([]models.Match, error)
	ListMessages(ctx context.Context) ([]models.Message, error)
}

// CollectSheets читает всё из src и раскладывает по листам users/posts/matches/messages.
func CollectSheets(ctx context.Context, src Source) ([]SheetSpec, error) {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: %w", err)
	}
	posts, err := src.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("posts: %w", err)
	}
	matches, err := src.ListMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("matches: %w", err)
	}
	msgs, err := src.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}
	return []SheetSpec{UsersSheet(users), PostsSheet(posts), MatchesSheet(matches), MessagesSheet(msgs)}, nil
}

func UsersSheet(users []models.User) SheetSpec {
	s := SheetSpec{
		Title:  "users",
		Header: []string{"ID", "Name", "Email", "Role", "Type", "Subjects", "Rating", "College ID", "College", "Picture"},
	}
	for _, u := range users {
		rating := ""
		if u.Rating != nil {
			rating = strconv.FormatFloat(*u.Rating, 'f', 1, 64)
		}
		s.Rows = append(s.Rows, []string{
			u.ID, u.Name, u.Email, u.Role, string(u.UserType),
			strings.Join(u.Subjects, ", "), rating, u.CollegeID, u.CollegeName, u.ProfilePic,
		})
	}
	return s
}

func PostsSheet(posts []models.Post) SheetSpec {
	s := SheetSpec{
		Title:  "posts",
		Header: []string{"ID", "Type", "Author", "Title", "Description", "Subject", "Created", "Status"},
	}
	for _, p := range posts {
		s.Rows = append(s.Rows, []string{
			p.ID, string(p.Type), p.AuthorID, p.Title, p.Description, p.Subject,
			formatTime(p.CreatedAt), string(p.Status),
		})
	}
	return s
}

func MatchesSheet(matches []models.Match) SheetSpec {
	s := SheetSpec{
		Title:  "matches",
		Header: []string{"ID", "Post", "Learner", "Mentor", "Status", "Created"},
	}
	for _, m := range matches {
		s.Rows = append(s.Rows, []string{
			m.ID, m.PostID, m.LearnerID, m.MentorID, string(m.Status), formatTime(m.CreatedAt),
		})
	}
	return s
}

func MessagesSheet(msgs []models.Message) SheetSpec {
	s := SheetSpec{
		Title:  "messages",
		Header: []string{"ID", "Match", "Sender", "Text", "Time", "File", "File name", "File type"},
	}
	for _, m := range msgs {
		s.Rows = append(s.Rows, []string{
			m.ID, m.MatchID, m.SenderID, m.Text, formatTime(m.Timestamp), m.FileURL, m.FileName, m.FileType,
		})
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
