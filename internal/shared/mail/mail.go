// Package mail sends transactional email.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"

	"intellidoc-backend/internal/shared/telemetry"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP delivers mail through an SMTP relay with STARTTLS and PLAIN auth.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string

	send sendFunc
}

// NewSMTP validates the sender address and returns an SMTP mailer.
func NewSMTP(host, port, username, password, from string) (*SMTP, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("invalid MAIL_FROM %q: %w", from, err)
	}
	if strings.TrimSpace(port) == "" {
		port = "587"
	}
	return &SMTP{Host: host, Port: port, Username: username, Password: password, From: from, send: smtp.SendMail}, nil
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	from, _ := mail.ParseAddress(s.From)

	var auth smtp.Auth
	if s.Password != "" {
		user := s.Username
		if user == "" {
			user = from.Address
		}
		auth = smtp.PlainAuth("", user, s.Password, s.Host)
	}

	if err := s.send(net.JoinHostPort(s.Host, s.Port), auth, from.Address, []string{to.Address}, render(from.String(), to.String(), msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func render(from, to string, msg Message) []byte {
	subject := strings.NewReplacer("\r", " ", "\n", " ").Replace(msg.Subject)
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// Log writes messages to the structured log instead of sending them.
type Log struct{}

func (Log) Send(_ context.Context, msg Message) error {
	telemetry.Info("mail.skipped", map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	})
	return nil
}
