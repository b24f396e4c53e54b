// Package mail delivers invitation and password-reset emails.
package mail

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
)

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures an SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers msg. PLAIN auth is used when a user is configured.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.To}, msg.render(s.cfg.From)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender logs messages instead of delivering them. It is used when no
// mail host is configured.
type LogSender struct{}

// Send logs msg at info level.
func (LogSender) Send(_ context.Context, msg Message) error {
	slog.Info("mail not delivered, no mail host configured",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.HTML,
	)
	return nil
}

func (m Message) render(from string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + m.To + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	return []byte(b.String())
}

// InvitationMessage builds the invitation email with a registration link.
func InvitationMessage(to, siteURL, token string) Message {
	link := buildLink(siteURL, "/register", token)
	return Message{
		To:      to,
		Subject: "You have been invited to snowballR",
		HTML: fmt.Sprintf(
			`<p>You have been invited to join snowballR.</p>`+
				`<p><a href="%s">Complete your registration</a></p>`,
			html.EscapeString(link),
		),
	}
}

// ResetMessage builds the password reset email.
func ResetMessage(to, siteURL, token string) Message {
	link := buildLink(siteURL, "/reset", token)
	return Message{
		To:      to,
		Subject: "Reset your snowballR password",
		HTML: fmt.Sprintf(
			`<p>A password reset was requested for your account.</p>`+
				`<p><a href="%s">Choose a new password</a></p>`+
				`<p>If you did not request this, ignore this email.</p>`,
			html.EscapeString(link),
		),
	}
}

func buildLink(siteURL, path, token string) string {
	return strings.TrimRight(siteURL, "/") + path + "?token=" + url.QueryEscape(token)
}
