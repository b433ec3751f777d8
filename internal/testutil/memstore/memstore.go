// Package memstore is an in-memory implementation of every service store,
// with failure injection for tests.
package memstore

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/matcher"
	"github.com/edubridge/edubridge-backend/internal/models"
)

type Store struct {
	txMu sync.Mutex // транзакции выполняются по одной

	mu       sync.Mutex
	users    map[string]models.User
	hashes   map[string]string
	posts    map[string]models.Post
	matches  map[string]models.Match
	messages []models.Message
	fail     map[string]error
	calls    map[string]int
}

func New() *Store {
	return &Store{
		users:   make(map[string]models.User),
		hashes:  make(map[string]string),
		posts:   make(map[string]models.Post),
		matches: make(map[string]models.Match),
		fail:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// FailOn makes the named operation (method name) return err; nil clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, op)
		return
	}
	s.fail[op] = err
}

// Calls: сколько раз вызывалась операция.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter must be called with s.mu held.
func (s *Store) enter(op string) error {
	s.calls[op]++
	return s.fail[op]
}

func (s *Store) RegisterUser(_ context.Context, u models.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("RegisterUser"); err != nil {
		return err
	}
	u.Email = strings.ToLower(u.Email)
	if _, ok := s.users[u.ID]; ok {
		return apperr.ErrAccountExists
	}
	for _, other := range s.users {
		if other.Email == u.Email {
			return apperr.ErrDuplicateEmail
		}
	}
	if u.Subjects == nil {
		u.Subjects = []string{}
	}
	s.users[u.ID] = u
	if passwordHash != "" {
		s.hashes[u.ID] = passwordHash
	}
	return nil
}

// AddUser: прямое добавление для подготовки тестов.
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	s.users[u.ID] = u
}

func (s *Store) GetUserByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetUserByID"); err != nil {
		return models.User{}, err
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("get user %s: %w", id, apperr.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetUserByEmail"); err != nil {
		return models.User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("get user by email: %w", apperr.ErrNotFound)
}

func (s *Store) PasswordHash(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("PasswordHash"); err != nil {
		return "", err
	}
	return s.hashes[userID], nil
}

func (s *Store) SetProfilePic(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("SetProfilePic"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.ProfilePic = url
	s.users[id] = u
	return nil
}

func (s *Store) CollegePeers(_ context.Context, collegeName, excludeID string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CollegePeers"); err != nil {
		return nil, err
	}
	out := []models.User{}
	for _, u := range s.users {
		if u.ID != excludeID && strings.EqualFold(u.CollegeName, collegeName) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return strings.Compare(a.Email, b.Email) })
	return out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Collect(maps.Values(s.users)), nil
}

func (s *Store) CreatePost(_ context.Context, p models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreatePost"); err != nil {
		return err
	}
	if _, ok := s.users[p.AuthorID]; !ok {
		return fmt.Errorf("author %s: %w", p.AuthorID, apperr.ErrNotFound)
	}
	s.posts[p.ID] = p
	return nil
}

func (s *Store) GetPost(_ context.Context, id string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetPost"); err != nil {
		return models.Post{}, err
	}
	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, fmt.Errorf("get post %s: %w", id, apperr.ErrNotFound)
	}
	return p, nil
}

func newestFirst(a, b models.Post) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func (s *Store) OpenPosts(_ context.Context, excludeAuthorID string) iter.Seq2[models.Post, error] {
	return func(yield func(models.Post, error) bool) {
		s.mu.Lock()
		err := s.enter("OpenPosts")
		var snap []models.Post
		for _, p := range s.posts {
			if p.Status == models.PostOpen && p.AuthorID != excludeAuthorID {
				snap = append(snap, p)
			}
		}
		s.mu.Unlock()
		if err != nil {
			yield(models.Post{}, err)
			return
		}
		slices.SortFunc(snap, newestFirst)
		for _, p := range snap {
			if !yield(p, nil) {
				return
			}
		}
	}
}

func (s *Store) PostsByAuthor(_ context.Context, authorID string) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("PostsByAuthor"); err != nil {
		return nil, err
	}
	out := []models.Post{}
	for _, p := range s.posts {
		if p.AuthorID == authorID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

func (s *Store) AdvancePostStatus(_ context.Context, id string, from, to models.PostStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AdvancePostStatus"); err != nil {
		return err
	}
	p, ok := s.posts[id]
	if !ok || !from.CanAdvanceTo(to) || p.Status != from {
		return fmt.Errorf("post %s: %w", id, apperr.ErrInvalidTransition)
	}
	p.Status = to
	s.posts[id] = p
	return nil
}

func (s *Store) CreateMatch(_ context.Context, m models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateMatch"); err != nil {
		return err
	}
	if _, ok := s.posts[m.PostID]; !ok {
		return fmt.Errorf("post %s: %w", m.PostID, apperr.ErrNotFound)
	}
	if _, ok := s.users[m.MentorID]; !ok {
		return fmt.Errorf("user %s: %w", m.MentorID, apperr.ErrNotFound)
	}
	s.matches[m.ID] = m
	return nil
}

func (s *Store) GetMatch(_ context.Context, id string) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("GetMatch"); err != nil {
		return models.Match{}, err
	}
	m, ok := s.matches[id]
	if !ok {
		return models.Match{}, fmt.Errorf("get match %s: %w", id, apperr.ErrNotFound)
	}
	return m, nil
}

func (s *Store) AdvanceMatchStatus(_ context.Context, id string, from, to models.MatchStatus) (models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AdvanceMatchStatus"); err != nil {
		return models.Match{}, err
	}
	m, ok := s.matches[id]
	if !ok || !from.CanAdvanceTo(to) || m.Status != from {
		return models.Match{}, fmt.Errorf("match %s: %w", id, apperr.ErrInvalidTransition)
	}
	m.Status = to
	s.matches[id] = m
	return m, nil
}

func (s *Store) filterMatches(keep func(models.Match) bool) []models.Match {
	out := []models.Match{}
	for _, m := range s.matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b models.Match) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) PendingForLearner(_ context.Context, learnerID string) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("PendingForLearner"); err != nil {
		return nil, err
	}
	return s.filterMatches(func(m models.Match) bool {
		return m.LearnerID == learnerID && m.Status == models.MatchPending
	}), nil
}

func (s *Store) AcceptedForUser(_ context.Context, userID string) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("AcceptedForUser"); err != nil {
		return nil, err
	}
	return s.filterMatches(func(m models.Match) bool {
		return m.Participant(userID) && m.Status == models.MatchAccepted
	}), nil
}

// WithinTx откатывает посты и матчи к снимку, если fn вернула ошибку.
func (s *Store) WithinTx(ctx context.Context, fn func(matcher.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	posts, matches := maps.Clone(s.posts), maps.Clone(s.matches)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.posts, s.matches = posts, matches
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) CreateMessage(_ context.Context, m models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("CreateMessage"); err != nil {
		return err
	}
	if _, ok := s.matches[m.MatchID]; !ok {
		return fmt.Errorf("match %s: %w", m.MatchID, apperr.ErrNotFound)
	}
	s.messages = append(s.messages, m)
	return nil
}

func (s *Store) Messages(_ context.Context, matchID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("Messages"); err != nil {
		return nil, err
	}
	out := []models.Message{}
	for _, m := range s.messages {
		if m.MatchID == matchID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Post / Match: прямое чтение без учёта FailOn.
func (s *Store) Post(id string) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[id]
}

func (s *Store) Match(id string) models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id]
}

func (s *Store) ListPosts(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListPosts"); err != nil {
		return nil, err
	}
	out := slices.Collect(maps.Values(s.posts))
	slices.SortFunc(out, newestFirst)
	return out, nil
}

func (s *Store) ListMatches(_ context.Context) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListMatches"); err != nil {
		return nil, err
	}
	return s.filterMatches(func(models.Match) bool { return true }), nil
}

func (s *Store) ListMessages(_ context.Context) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("ListMessages"); err != nil {
		return nil, err
	}
	return slices.Clone(s.messages), nil
}
