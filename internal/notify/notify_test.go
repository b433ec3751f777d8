package notify_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edubridge/edubridge-backend/internal/mailer"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/notify"
	"github.com/edubridge/edubridge-backend/internal/testutil/memstore"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Mail
	err  error
}

func (r *recordingMailer) Send(_ context.Context, m mailer.Mail) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return "<id@test>", r.err
}

type recordingAlerter struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingAlerter) Alert(_ context.Context, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func seed(st *memstore.Store) {
	st.AddUser(models.User{ID: "a", Name: "A", Email: "a@foo.edu", CollegeName: "Foo U"})
	st.AddUser(models.User{ID: "b", Name: "B", Email: "b@foo.edu", CollegeName: "foo u"})
	st.AddUser(models.User{ID: "c", Name: "C", Email: "c@foo.edu", CollegeName: "FOO U"})
	st.AddUser(models.User{ID: "d", Name: "D", Email: "d@bar.edu", CollegeName: "Bar U"})
}

func TestNotifyDoubt_OneMailToAllPeers(t *testing.T) {
	st := memstore.New()
	seed(st)
	m := &recordingMailer{}
	n := notify.New(st, m, "https://edu.test", nil, nil)

	post := models.Post{ID: "p1", AuthorID: "a", Title: "Help with BSTs", Description: "AVL", Subject: "DS"}
	count, err := n.NotifyDoubt(context.Background(), post)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 || len(m.sent) != 1 {
		t.Fatalf("count=%d mails=%d", count, len(m.sent))
	}
	to := slices.Clone(m.sent[0].To)
	slices.Sort(to)
	if !slices.Equal(to, []string{"b@foo.edu", "c@foo.edu"}) {
		t.Fatalf("recipients: %v", to)
	}
	html := m.sent[0].HTML
	for _, want := range []string{"Help with BSTs", "AVL", "DS", "https://edu.test/dashboard"} {
		if !strings.Contains(html, want) {
			t.Fatalf("body misses %q: %s", want, html)
		}
	}
}

func TestNotifyDoubt_NoPeersNoMail(t *testing.T) {
	st := memstore.New()
	seed(st)
	m := &recordingMailer{}
	n := notify.New(st, m, "", nil, nil)

	count, err := n.NotifyDoubt(context.Background(), models.Post{ID: "p", AuthorID: "d"})
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 || len(m.sent) != 0 {
		t.Fatalf("no mail expected, got %d", len(m.sent))
	}
}

func TestNotifyDoubt_EscapesHTML(t *testing.T) {
	st := memstore.New()
	seed(st)
	m := &recordingMailer{}
	n := notify.New(st, m, "", nil, nil)
	_, err := n.NotifyDoubt(context.Background(), models.Post{ID: "p", AuthorID: "a", Title: "<script>x</script>"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(m.sent[0].HTML, "<script>") {
		t.Fatal("title must be escaped")
	}
}

func TestDoubtPosted_FailureIsAlertedNotReturned(t *testing.T) {
	st := memstore.New()
	seed(st)
	m := &recordingMailer{err: errors.New("smtp down")}
	al := &recordingAlerter{}
	n := notify.New(st, m, "", al, nil)

	n.DoubtPosted(models.Post{ID: "p9", AuthorID: "a"})
	n.Wait()

	if len(m.sent) != 1 {
		t.Fatalf("one attempt expected, no retry: %d", len(m.sent))
	}
	if len(al.texts) != 1 || !strings.Contains(al.texts[0], "p9") {
		t.Fatalf("alert expected: %v", al.texts)
	}
}

type stallingMailer struct{}

func (stallingMailer) Send(ctx context.Context, _ mailer.Mail) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type ctxAlerter struct {
	mu   sync.Mutex
	errs []error
}

func (c *ctxAlerter) Alert(ctx context.Context, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, ctx.Err())
}

func TestDoubtPosted_AlertSurvivesSendTimeout(t *testing.T) {
	st := memstore.New()
	seed(st)
	al := &ctxAlerter{}
	n := notify.New(st, stallingMailer{}, "https://edu.test", al, nil)
	n.SendTimeout = 20 * time.Millisecond

	n.DoubtPosted(models.Post{ID: "p1", AuthorID: "a", Title: "Help", Subject: "DS"})
	n.Wait()

	al.mu.Lock()
	defer al.mu.Unlock()
	if len(al.errs) != 1 {
		t.Fatalf("alerts = %d, want 1", len(al.errs))
	}
	if al.errs[0] != nil {
		t.Fatalf("alert got a dead context: %v", al.errs[0])
	}
}
