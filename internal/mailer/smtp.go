package mailer

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const fromName = "EduBridge Notifications"

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPRelay отправляет письма через SMTP (по умолчанию Gmail).
// Получатели идут только в RCPT TO, заголовка To нет: все адресаты скрыты друг от друга.
type SMTPRelay struct {
	host     string
	port     int
	from     string
	password string
	send     sendFunc
}

func NewSMTPRelay(host string, port int, from, password string) *SMTPRelay {
	return &SMTPRelay{host: host, port: port, from: from, password: password, send: smtp.SendMail}
}

func (r *SMTPRelay) Configured() bool { return r.from != "" && r.password != "" }

func (r *SMTPRelay) Send(ctx context.Context, m Mail) (string, error) {
	if len(m.To) == 0 {
		return "", ErrNoRecipients
	}
	if !r.Configured() {
		return "", ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	domain := r.host
	if at := strings.LastIndex(r.from, "@"); at >= 0 {
		domain = r.from[at+1:]
	}
	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
	msg := buildMessage(r.from, m.Subject, m.HTML, id, time.Now())

	auth := smtp.PlainAuth("", r.from, r.password, r.host)
	addr := net.JoinHostPort(r.host, strconv.Itoa(r.port))
	if err := r.send(addr, auth, r.from, m.To, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return id, nil
}

func buildMessage(from, subject, html, messageID string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", fromName), from)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return b.Bytes()
}
