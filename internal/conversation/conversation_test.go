package conversation_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/edubridge/edubridge-backend/internal/app"
	"github.com/edubridge/edubridge-backend/internal/apperr"
	"github.com/edubridge/edubridge-backend/internal/conversation"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/realtime"
	"github.com/edubridge/edubridge-backend/internal/storage"
	"github.com/edubridge/edubridge-backend/internal/testutil/memstore"
)

type fixture struct {
	st     *memstore.Store
	bucket *storage.Memory
	svc    *conversation.Service
}

func setup(t *testing.T, status models.MatchStatus) fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	for _, id := range []string{"learner", "mentor", "stranger"} {
		st.AddUser(models.User{ID: id, Email: id + "@foo.edu"})
	}
	if err := st.CreatePost(ctx, models.Post{ID: "p1", Type: models.Doubt, AuthorID: "learner", Status: models.PostOpen}); err != nil {
		t.Fatal(err)
	}
	m := models.Match{ID: "m1", PostID: "p1", LearnerID: "learner", MentorID: "mentor", Status: status}
	if err := st.CreateMatch(ctx, m); err != nil {
		t.Fatal(err)
	}
	bucket := storage.NewMemory("http://files.test")
	return fixture{st: st, bucket: bucket, svc: conversation.New(st, bucket, app.NewUploadLimiter(), nil, nil)}
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.MatchAccepted)

	msg, err := f.svc.Send(ctx, "m1", "mentor", "  hi there ")
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "hi there" || msg.SenderID != "mentor" || msg.Timestamp.IsZero() {
		t.Fatalf("message: %+v", msg)
	}

	cases := []struct {
		name   string
		sender string
		text   string
		want   error
	}{
		{"blank", "learner", " \n\t", apperr.ErrEmptyMessage},
		{"stranger", "stranger", "hello", apperr.ErrForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := f.svc.Send(ctx, "m1", c.sender, c.text); !errors.Is(err, c.want) {
				t.Fatalf("want %v, got %v", c.want, err)
			}
		})
	}

	if _, err := f.svc.Send(ctx, "nope", "learner", "x"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("unknown match: %v", err)
	}
}

func TestSend_PendingMatchIsLocked(t *testing.T) {
	f := setup(t, models.MatchPending)
	if _, err := f.svc.Send(context.Background(), "m1", "learner", "hi"); !errors.Is(err, apperr.ErrChatLocked) {
		t.Fatalf("want chat locked, got %v", err)
	}
}

func TestSend_Publishes(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.MatchAccepted)
	b := realtime.NewMemoryBroker()
	sub, _ := b.Subscribe(ctx, realtime.MessagesTopic("m1"))
	defer sub.Close()
	svc := conversation.New(f.st, f.bucket, app.NewUploadLimiter(), b, nil)

	if _, err := svc.Send(ctx, "m1", "learner", "hi"); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-sub.C:
		if ev.Kind != "created" {
			t.Fatalf("event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestAttachFile_TooLargeRejectedBeforeStorage(t *testing.T) {
	f := setup(t, models.MatchAccepted)
	_, err := f.svc.AttachFile(context.Background(), "m1", "learner", conversation.Upload{
		Name: "big.pdf", ContentType: "application/pdf",
		Size: conversation.MaxAttachmentBytes + 1,
		Body: bytes.NewReader(nil),
	})
	if !errors.Is(err, apperr.ErrFileTooLarge) {
		t.Fatalf("want too large, got %v", err)
	}
	if f.bucket.Puts() != 0 || f.st.Calls("GetMatch") != 0 || f.st.Calls("CreateMessage") != 0 {
		t.Fatalf("storage touched: puts=%d getMatch=%d", f.bucket.Puts(), f.st.Calls("GetMatch"))
	}
}

func TestAttachFile_ExactLimitAccepted(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.MatchAccepted)
	data := bytes.Repeat([]byte("a"), conversation.MaxAttachmentBytes)

	msg, err := f.svc.AttachFile(ctx, "m1", "learner", conversation.Upload{
		Name: "../notes.txt", ContentType: "text/plain", Size: int64(len(data)), Body: bytes.NewReader(data),
	})
	if err != nil {
		t.Fatal(err)
	}
	if msg.Text != "" || msg.FileName != "notes.txt" || msg.FileType != "text/plain" || !msg.HasAttachment() {
		t.Fatalf("message: %+v", msg)
	}
	paths := f.bucket.Paths()
	if len(paths) != 1 || !strings.HasPrefix(paths[0], "chat_files/m1/") || !strings.HasSuffix(paths[0], "_notes.txt") {
		t.Fatalf("paths: %v", paths)
	}
	if !strings.HasSuffix(msg.FileURL, paths[0]) {
		t.Fatalf("url %q does not point at %q", msg.FileURL, paths[0])
	}

	rc, obj, err := f.svc.OpenAttachment(ctx, "mentor", paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	if obj.Size != int64(len(data)) {
		t.Fatalf("size: %d", obj.Size)
	}
	if _, _, err := f.svc.OpenAttachment(ctx, "stranger", paths[0]); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("stranger: %v", err)
	}
	if _, _, err := f.svc.OpenAttachment(ctx, "mentor", "elsewhere/x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("bad path: %v", err)
	}
}

func TestAttachFile_ConcurrentUploadRejected(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.MatchAccepted)

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.AttachFile(ctx, "m1", "learner", conversation.Upload{Name: "a.txt", Size: 3, Body: pr})
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.bucket.Puts() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first upload never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := f.svc.AttachFile(ctx, "m1", "learner", conversation.Upload{Name: "b.txt", Size: 1, Body: strings.NewReader("b")})
	if !errors.Is(err, apperr.ErrUploadInProgress) {
		t.Fatalf("want upload in progress, got %v", err)
	}
	// у другого участника свой флаг
	if _, err := f.svc.AttachFile(ctx, "m1", "mentor", conversation.Upload{Name: "c.txt", Size: 1, Body: strings.NewReader("c")}); err != nil {
		t.Fatalf("mentor upload: %v", err)
	}

	_, _ = pw.Write([]byte("abc"))
	_ = pw.Close()
	if err := <-done; err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if _, err := f.svc.AttachFile(ctx, "m1", "learner", conversation.Upload{Name: "d.txt", Size: 1, Body: strings.NewReader("d")}); err != nil {
		t.Fatalf("flag must clear after upload: %v", err)
	}
}

func TestAttachFile_StorageFailure(t *testing.T) {
	f := setup(t, models.MatchAccepted)
	f.bucket.FailPuts(errors.New("bucket down"))
	_, err := f.svc.AttachFile(context.Background(), "m1", "learner", conversation.Upload{Name: "a", Size: 1, Body: strings.NewReader("a")})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.st.Calls("CreateMessage") != 0 {
		t.Fatal("no message must be written when upload fails")
	}
}

func TestHistory_Ordered(t *testing.T) {
	ctx := context.Background()
	f := setup(t, models.MatchAccepted)
	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, off := range []int{3, 1, 2} {
		err := f.st.CreateMessage(ctx, models.Message{
			ID: string(rune('a' + i)), MatchID: "m1", SenderID: "learner",
			Text: "x", Timestamp: base.Add(time.Duration(off) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	got, err := f.svc.History(ctx, "m1", "mentor")
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("out of order at %d: %v", i, got)
		}
	}
	if _, err := f.svc.History(ctx, "m1", "stranger"); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("stranger: %v", err)
	}
}

func TestObjectPath(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	if got := conversation.ObjectPath("m9", at, "hw.pdf"); got != "chat_files/m9/1700000000123_hw.pdf" {
		t.Fatalf("path: %s", got)
	}
}

// deadlineBucket запоминает дедлайн контекста, с которым пришёл Put.
type deadlineBucket struct {
	storage.Bucket
	deadline time.Time
	ok       bool
}

func (b *deadlineBucket) Put(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	b.deadline, b.ok = ctx.Deadline()
	return b.Bucket.Put(ctx, path, contentType, r)
}

func TestAttachFile_UploadHasDeadline(t *testing.T) {
	f := setup(t, models.MatchAccepted)
	bucket := &deadlineBucket{Bucket: f.bucket}
	svc := conversation.New(f.st, bucket, app.NewUploadLimiter(), nil, nil)
	svc.UploadTimeout = time.Minute

	start := time.Now()
	// у контекста запроса дедлайна нет
	_, err := svc.AttachFile(context.Background(), "m1", "learner", conversation.Upload{
		Name: "a.txt", ContentType: "text/plain", Size: 2, Body: strings.NewReader("hi"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bucket.ok {
		t.Fatal("bucket.Put got a context without deadline")
	}
	if d := bucket.deadline.Sub(start); d <= 0 || d > time.Minute+time.Second {
		t.Fatalf("deadline in %v, want about 1m", d)
	}
}
