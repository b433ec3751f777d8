// Package notify emails same-college peers when a doubt is posted.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/logging"
	"github.com/edubridge/edubridge-backend/internal/mailer"
	"github.com/edubridge/edubridge-backend/internal/metrics"
	"github.com/edubridge/edubridge-backend/internal/models"
	"github.com/edubridge/edubridge-backend/internal/observability"
)

type PeerFinder interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
	CollegePeers(ctx context.Context, collegeName, excludeID string) ([]models.User, error)
}

type Alerter interface {
	Alert(ctx context.Context, text string)
}

const (
	sendTimeout  = 30 * time.Second
	alertTimeout = 10 * time.Second
)

var doubtTmpl = template.Must(template.New("doubt").Parse(`<div style="font-family: sans-serif;">
<h2>New doubt in {{.Subject}}</h2>
<p><strong>{{.Author}}</strong> from your college needs help:</p>
<h3>{{.Title}}</h3>
<p>{{.Description}}</p>
<p><a href="{{.Link}}">Open EduBridge to offer help</a></p>
</div>`))

type Notifier struct {
	// SendTimeout ограничивает одну рассылку в DoubtPosted.
	SendTimeout time.Duration

	peers   PeerFinder
	mail    mailer.Sender
	baseURL string
	alerts  Alerter
	log     *zap.Logger

	wg sync.WaitGroup
}

func New(peers PeerFinder, mail mailer.Sender, baseURL string, alerts Alerter, log *zap.Logger) *Notifier {
	return &Notifier{
		SendTimeout: sendTimeout,
		peers:       peers,
		mail:        mail,
		baseURL:     baseURL,
		alerts:      alerts,
		log:         logging.OrNop(log),
	}
}

// DoubtPosted ставит уведомление в фон; ошибки логируются и не возвращаются.
func (n *Notifier) DoubtPosted(post models.Post) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer observability.RecoverAs("doubt notifier")
		ctx, cancel := context.WithTimeout(context.Background(), n.SendTimeout)
		defer cancel()
		if _, err := n.NotifyDoubt(ctx, post); err != nil {
			n.fail(post, err)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (n *Notifier) Wait() { n.wg.Wait() }

// NotifyDoubt sends one email to every other user at the author's college.
// It returns the number of recipients; zero peers means no email.
func (n *Notifier) NotifyDoubt(ctx context.Context, post models.Post) (int, error) {
	author, err := n.peers.GetUserByID(ctx, post.AuthorID)
	if err != nil {
		return 0, fmt.Errorf("load author: %w", err)
	}
	if author.CollegeName == "" {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return 0, nil
	}
	peers, err := n.peers.CollegePeers(ctx, author.CollegeName, author.ID)
	if err != nil {
		return 0, fmt.Errorf("load peers: %w", err)
	}
	to := make([]string, 0, len(peers))
	for _, p := range peers {
		if p.Email != "" {
			to = append(to, p.Email)
		}
	}
	if len(to) == 0 {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return 0, nil
	}

	var body bytes.Buffer
	err = doubtTmpl.Execute(&body, map[string]string{
		"Subject":     post.Subject,
		"Author":      author.Name,
		"Title":       post.Title,
		"Description": post.Description,
		"Link":        n.baseURL + "/dashboard",
	})
	if err != nil {
		return 0, err
	}

	id, err := n.mail.Send(ctx, mailer.Mail{
		To:      to,
		Subject: fmt.Sprintf("New %s doubt: %s", post.Subject, post.Title),
		HTML:    body.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	n.log.Info("doubt notification sent",
		zap.String("post_id", post.ID), zap.Int("recipients", len(to)), zap.String("message_id", id))
	return len(to), nil
}

// fail не наследует контекст рассылки: после таймаута он уже отменён.
func (n *Notifier) fail(post models.Post, err error) {
	metrics.Notifications.WithLabelValues("failed").Inc()
	n.log.Warn("doubt notification failed", zap.String("post_id", post.ID), zap.Error(err))
	observability.CaptureErrWith(err, map[string]string{"op": "notify_doubt", "post_id": post.ID})
	if n.alerts != nil {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		n.alerts.Alert(ctx, fmt.Sprintf("EduBridge: doubt notification failed for post %s: %v", post.ID, err))
	}
}
