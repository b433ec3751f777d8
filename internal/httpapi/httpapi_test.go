package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edubridge/edubridge-backend/internal/app"
	"github.com/edubridge/edubridge-backend/internal/board"
	"github.com/edubridge/edubridge-backend/internal/conversation"
	"github.com/edubridge/edubridge-backend/internal/directory"
	"github.com/edubridge/edubridge-backend/internal/httpapi"
	"github.com/edubridge/edubridge-backend/internal/mailer"
	"github.com/edubridge/edubridge-backend/internal/matcher"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/notify"
	"github.com/edubridge/edubridge-backend/internal/realtime"
	"github.com/edubridge/edubridge-backend/internal/session"
	"github.com/edubridge/edubridge-backend/internal/storage"
	"github.com/edubridge/edubridge-backend/internal/testutil/memstore"
)

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Mail
}

func (o *outbox) Send(_ context.Context, m mailer.Mail) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return "<test@edubridge>", nil
}

func (o *outbox) Configured() bool { return true }

func (o *outbox) all() []mailer.Mail {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]mailer.Mail(nil), o.sent...)
}

type env struct {
	srv      *httptest.Server
	mail     *outbox
	notifier *notify.Notifier
	bucket   *storage.Memory
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memstore.New()
	broker := realtime.NewMemoryBroker()
	rt := realtime.NewManager(broker)
	mail := &outbox{}
	bucket := storage.NewMemory("http://files.test")
	notifier := notify.New(st, mail, "https://app.test", nil, nil)

	api := httpapi.NewServer(httpapi.Deps{
		Directory:    directory.New(st, nil, broker, nil),
		Board:        board.New(st, notifier, broker, nil),
		Matcher:      matcher.New(st, broker, nil),
		Conversation: conversation.New(st, bucket, app.NewUploadLimiter(), broker, nil),
		Sessions:     session.NewManager("test-secret", "edubridge", time.Hour, session.NewMemoryCache()),
		Realtime:     rt,
		Mail:         mail,
		CORSOrigins:  []string{"*"},
		AppBaseURL:   "https://app.test",
	})
	srv := httptest.NewServer(api.Router())
	t.Cleanup(func() {
		srv.Close()
		rt.Close()
	})
	return &env{srv: srv, mail: mail, notifier: notifier, bucket: bucket}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}

type authResp struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type errResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *env) register(t *testing.T, name, email string) authResp {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name":        name,
		"email":       email,
		"password":    "secret1",
		"collegeId":   "FOO",
		"collegeName": "Foo U",
		"userType":    "student",
		"subjects":    []string{"Computer Science"},
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: %d %s", email, status, body)
	}
	return decode[authResp](t, body)
}

func (e *env) upload(t *testing.T, token, matchID, name string, data []byte) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(data)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/matches/"+matchID+"/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func TestMentorshipScenario(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "Alice", "a@foo.edu")
	b := e.register(t, "Bob", "B@Foo.edu")

	// A публикует вопрос: одно письмо, получатель только B
	status, body := e.do(t, http.MethodPost, "/posts", a.Token, map[string]string{
		"type": "doubt", "title": "Help with BSTs", "description": "insert is broken", "subject": "Computer Science",
	})
	if status != http.StatusCreated {
		t.Fatalf("create post: %d %s", status, body)
	}
	post := decode[models.Post](t, body)
	e.notifier.Wait()
	sent := e.mail.all()
	if len(sent) != 1 || len(sent[0].To) != 1 || sent[0].To[0] != "b@foo.edu" {
		t.Fatalf("notifications: %+v", sent)
	}

	_, body = e.do(t, http.MethodGet, "/posts/open", b.Token, nil)
	if open := decode[[]models.Post](t, body); len(open) != 1 || open[0].ID != post.ID {
		t.Fatalf("B open posts: %s", body)
	}
	_, body = e.do(t, http.MethodGet, "/posts/open", a.Token, nil)
	if open := decode[[]models.Post](t, body); len(open) != 0 {
		t.Fatalf("A must not see own post: %s", body)
	}

	// B предлагает помощь
	status, body = e.do(t, http.MethodPost, "/posts/"+post.ID+"/matches", b.Token, nil)
	if status != http.StatusCreated {
		t.Fatalf("propose: %d %s", status, body)
	}
	m := decode[models.Match](t, body)
	if m.Status != models.MatchPending || m.LearnerID != a.User.ID || m.MentorID != b.User.ID {
		t.Fatalf("match: %+v", m)
	}

	// чат закрыт до принятия
	if status, _ := e.do(t, http.MethodPost, "/matches/"+m.ID+"/messages", b.Token, map[string]string{"text": "hi"}); status != http.StatusConflict {
		t.Fatalf("send before accept: %d", status)
	}
	if status, _ := e.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", b.Token, nil); status != http.StatusForbidden {
		t.Fatalf("mentor accept: %d", status)
	}
	_, body = e.do(t, http.MethodGet, "/matches/pending", a.Token, nil)
	if pending := decode[[]models.Match](t, body); len(pending) != 1 {
		t.Fatalf("pending: %s", body)
	}

	status, body = e.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", a.Token, nil)
	if status != http.StatusOK || decode[models.Match](t, body).Status != models.MatchAccepted {
		t.Fatalf("accept: %d %s", status, body)
	}
	if status, _ := e.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", a.Token, nil); status != http.StatusConflict {
		t.Fatalf("second accept: %d", status)
	}
	_, body = e.do(t, http.MethodGet, "/posts/mine", a.Token, nil)
	if mine := decode[[]models.Post](t, body); len(mine) != 1 || mine[0].Status != models.PostMatched {
		t.Fatalf("my posts: %s", body)
	}
	_, body = e.do(t, http.MethodGet, "/matches/accepted", b.Token, nil)
	if acc := decode[[]models.Match](t, body); len(acc) != 1 || acc[0].ID != m.ID {
		t.Fatalf("accepted: %s", body)
	}

	// переписка и вложения
	if status, body := e.do(t, http.MethodPost, "/matches/"+m.ID+"/messages", b.Token, map[string]string{"text": "show me the code"}); status != http.StatusCreated {
		t.Fatalf("send: %d %s", status, body)
	}
	if status, body := e.do(t, http.MethodPost, "/matches/"+m.ID+"/messages", b.Token, map[string]string{"text": "   "}); status != http.StatusBadRequest || decode[errResp](t, body).Error != "empty_message" {
		t.Fatalf("blank send: %d %s", status, body)
	}

	status, body = e.upload(t, a.Token, m.ID, "bst.go", []byte("package bst"))
	if status != http.StatusCreated {
		t.Fatalf("upload: %d %s", status, body)
	}
	att := decode[models.Message](t, body)
	if att.FileName != "bst.go" || att.Text != "" {
		t.Fatalf("attachment: %+v", att)
	}
	filePath := strings.TrimPrefix(att.FileURL, "http://files.test")
	status, body = e.do(t, http.MethodGet, filePath, b.Token, nil)
	if status != http.StatusOK || string(body) != "package bst" {
		t.Fatalf("download: %d %q", status, body)
	}

	puts := e.bucket.Puts()
	status, body = e.upload(t, a.Token, m.ID, "big.bin", make([]byte, conversation.MaxAttachmentBytes+1))
	if status != http.StatusRequestEntityTooLarge || decode[errResp](t, body).Error != "file_too_large" {
		t.Fatalf("big upload: %d %s", status, body)
	}
	if e.bucket.Puts() != puts {
		t.Fatal("oversized file reached storage")
	}

	_, body = e.do(t, http.MethodGet, "/matches/"+m.ID+"/messages", a.Token, nil)
	history := decode[[]models.Message](t, body)
	if len(history) != 2 || history[0].Text != "show me the code" || history[1].FileName != "bst.go" {
		t.Fatalf("history: %s", body)
	}
}

func TestAuthErrors(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "Alice", "a@foo.edu")

	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{"wrong password", map[string]any{"email": "a@foo.edu", "password": "nope-nope"}, http.StatusUnauthorized, "invalid_credentials"},
		{"unknown email", map[string]any{"email": "ghost@foo.edu", "password": "secret1"}, http.StatusUnauthorized, "invalid_credentials"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			status, body := e.do(t, http.MethodPost, "/auth/login", "", c.body)
			if status != c.status || decode[errResp](t, body).Error != c.code {
				t.Fatalf("%d %s", status, body)
			}
		})
	}

	status, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Again", "email": "A@foo.edu", "password": "secret1", "collegeId": "FOO",
		"collegeName": "Foo U", "userType": "student", "subjects": []string{"Math"},
	})
	if status != http.StatusConflict || decode[errResp](t, body).Error != "email_already_in_use" {
		t.Fatalf("duplicate: %d %s", status, body)
	}
	status, body = e.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"name": "Weak", "email": "w@foo.edu", "password": "123", "collegeId": "FOO",
		"collegeName": "Foo U", "userType": "student", "subjects": []string{"Math"},
	})
	if status != http.StatusBadRequest || decode[errResp](t, body).Error != "weak_password" {
		t.Fatalf("weak: %d %s", status, body)
	}

	if status, _ := e.do(t, http.MethodGet, "/me", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("no token: %d", status)
	}
	status, body = e.do(t, http.MethodGet, "/me", a.Token, nil)
	if status != http.StatusOK || decode[models.User](t, body).Email != "a@foo.edu" {
		t.Fatalf("me: %d %s", status, body)
	}
	if status, _ := e.do(t, http.MethodPost, "/auth/logout", a.Token, nil); status != http.StatusNoContent {
		t.Fatalf("logout: %d", status)
	}
	if status, _ := e.do(t, http.MethodGet, "/me", a.Token, nil); status != http.StatusUnauthorized {
		t.Fatalf("revoked token: %d", status)
	}

	if status, _ := e.do(t, http.MethodGet, "/auth/google/login", "", nil); status != http.StatusNotFound {
		t.Fatalf("google disabled: %d", status)
	}
}

func TestSendEmailEndpointMounted(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(t, http.MethodPost, "/api/send-email", "", map[string]any{
		"to": []string{"x@foo.edu", "y@foo.edu"}, "subject": "hi", "html": "<p>hi</p>",
	})
	if status != http.StatusOK || !strings.Contains(string(body), `"success":true`) {
		t.Fatalf("send-email: %d %s", status, body)
	}
	if status, _ := e.do(t, http.MethodGet, "/api/send-email", "", nil); status != http.StatusMethodNotAllowed {
		t.Fatalf("GET: %d", status)
	}
}

func TestMessagesWebsocketSnapshots(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "Alice", "a@foo.edu")
	b := e.register(t, "Bob", "b@foo.edu")

	_, body := e.do(t, http.MethodPost, "/posts", a.Token, map[string]string{
		"type": "doubt", "title": "Graphs", "description": "BFS vs DFS", "subject": "CS",
	})
	post := decode[models.Post](t, body)
	_, body = e.do(t, http.MethodPost, "/posts/"+post.ID+"/matches", b.Token, nil)
	m := decode[models.Match](t, body)
	e.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", a.Token, nil)
	e.do(t, http.MethodPost, "/matches/"+m.ID+"/messages", a.Token, map[string]string{"text": "first"})

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/matches/" + m.ID + "/messages?access_token=" + b.Token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v (resp %+v)", err, resp)
	}
	defer conn.Close()

	type snapshot struct {
		MatchID  string           `json:"matchId"`
		Messages []models.Message `json:"messages"`
	}
	read := func() snapshot {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		var s snapshot
		if err := conn.ReadJSON(&s); err != nil {
			t.Fatalf("read: %v", err)
		}
		return s
	}

	if s := read(); len(s.Messages) != 1 || s.Messages[0].Text != "first" {
		t.Fatalf("initial snapshot: %+v", s)
	}
	e.do(t, http.MethodPost, "/matches/"+m.ID+"/messages", b.Token, map[string]string{"text": "second"})
	s := read()
	if len(s.Messages) != 2 || s.Messages[1].Text != "second" {
		t.Fatalf("snapshot after send: %+v", s)
	}

	// выход закрывает подписку и сокет
	e.do(t, http.MethodPost, "/auth/logout", b.Token, nil)
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("socket must close after logout")
	}
}

func TestForbiddenWebsocket(t *testing.T) {
	e := newEnv(t)
	a := e.register(t, "Alice", "a@foo.edu")
	c := e.register(t, "Carol", "c@foo.edu")
	b := e.register(t, "Bob", "b@foo.edu")
	_, body := e.do(t, http.MethodPost, "/posts", a.Token, map[string]string{
		"type": "offer", "title": "Calculus tutoring", "description": "evenings", "subject": "Math",
	})
	post := decode[models.Post](t, body)
	_, body = e.do(t, http.MethodPost, "/posts/"+post.ID+"/matches", b.Token, nil)
	m := decode[models.Match](t, body)
	e.do(t, http.MethodPost, "/matches/"+m.ID+"/accept", a.Token, nil)

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/matches/" + m.ID + "/messages?access_token=" + c.Token
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("stranger must not subscribe")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp: %+v", resp)
	}
}
