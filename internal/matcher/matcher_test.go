package matcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/matcher"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
	"github.com/edubridge/edubridge-backend/internal/testutil/memstore"
)

func setup(t *testing.T) (*memstore.Store, *matcher.Service) {
	t.Helper()
	st := memstore.New()
	st.AddUser(models.User{ID: "a", Email: "a@foo.edu"})
	st.AddUser(models.User{ID: "b", Email: "b@foo.edu"})
	st.AddUser(models.User{ID: "c", Email: "c@foo.edu"})
	for _, p := range []models.Post{
		{ID: "doubt", Type: models.Doubt, AuthorID: "a", Status: models.PostOpen, CreatedAt: time.Now()},
		{ID: "offer", Type: models.Offer, AuthorID: "b", Status: models.PostOpen, CreatedAt: time.Now()},
	} {
		if err := st.CreatePost(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	return st, matcher.New(st, nil, nil)
}

func TestPropose_AuthorIsAlwaysLearner(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)

	m, err := svc.Propose(ctx, "doubt", "b")
	if err != nil {
		t.Fatal(err)
	}
	if m.LearnerID != "a" || m.MentorID != "b" || m.Status != models.MatchPending {
		t.Fatalf("match: %+v", m)
	}

	// на оффер откликается a, но ученик всё равно автор поста
	m, err = svc.Propose(ctx, "offer", "a")
	if err != nil {
		t.Fatal(err)
	}
	if m.LearnerID != "b" || m.MentorID != "a" {
		t.Fatalf("offer match: %+v", m)
	}

	if _, err := svc.Propose(ctx, "missing", "b"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAccept_UpdatesMatchAndPost(t *testing.T) {
	ctx := context.Background()
	st, svc := setup(t)
	b := realtime.NewMemoryBroker()
	sub, _ := b.Subscribe(ctx, realtime.TopicMatches, realtime.TopicPosts)
	defer sub.Close()
	svc = matcher.New(st, b, nil)

	m, _ := svc.Propose(ctx, "doubt", "b")
	<-sub.C // created

	got, err := svc.Accept(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.MatchAccepted || st.Post("doubt").Status != models.PostMatched {
		t.Fatalf("match=%s post=%s", got.Status, st.Post("doubt").Status)
	}
	if ev := <-sub.C; ev.Kind != "accepted" {
		t.Fatalf("event: %+v", ev)
	}
}

func TestAccept_SecondWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	st, svc := setup(t)
	m, _ := svc.Propose(ctx, "doubt", "b")

	st.FailOn("AdvancePostStatus", errors.New("write failed"))
	if _, err := svc.Accept(ctx, m.ID); err == nil {
		t.Fatal("expected error")
	}
	if st.Match(m.ID).Status != models.MatchPending {
		t.Fatalf("match must stay pending, got %s", st.Match(m.ID).Status)
	}
	if st.Post("doubt").Status != models.PostOpen {
		t.Fatalf("post must stay open, got %s", st.Post("doubt").Status)
	}

	st.FailOn("AdvancePostStatus", nil)
	if _, err := svc.Accept(ctx, m.ID); err != nil {
		t.Fatalf("retry after rollback must succeed: %v", err)
	}
}

func TestAccept_TwiceIsConflict(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)
	m, _ := svc.Propose(ctx, "doubt", "b")
	if _, err := svc.Accept(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, m.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestAccept_OnlyOneMatchPerPost(t *testing.T) {
	ctx := context.Background()
	st, svc := setup(t)
	m1, _ := svc.Propose(ctx, "doubt", "b")
	m2, _ := svc.Propose(ctx, "doubt", "c")
	if _, err := svc.Accept(ctx, m1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Accept(ctx, m2.ID); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("second accept on a matched post must fail, got %v", err)
	}
	if st.Match(m2.ID).Status != models.MatchPending {
		t.Fatal("losing match must stay pending")
	}
}

func TestAcceptAs_OnlyLearner(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)
	m, _ := svc.Propose(ctx, "doubt", "b")
	if _, err := svc.AcceptAs(ctx, m.ID, "b"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("mentor must not accept, got %v", err)
	}
	if _, err := svc.AcceptAs(ctx, m.ID, "a"); err != nil {
		t.Fatal(err)
	}
}

func TestPendingAndAcceptedLists(t *testing.T) {
	ctx := context.Background()
	_, svc := setup(t)
	m1, _ := svc.Propose(ctx, "doubt", "b")
	_, _ = svc.Propose(ctx, "doubt", "c")

	pending, err := svc.PendingFor(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending: %v", pending)
	}
	if _, err := svc.Accept(ctx, m1.ID); err != nil {
		t.Fatal(err)
	}
	for _, user := range []string{"a", "b"} {
		acc, _ := svc.AcceptedFor(ctx, user)
		if len(acc) != 1 || acc[0].ID != m1.ID {
			t.Fatalf("%s accepted: %v", user, acc)
		}
	}
	if acc, _ := svc.AcceptedFor(ctx, "c"); len(acc) != 0 {
		t.Fatalf("c has no accepted matches: %v", acc)
	}
}
