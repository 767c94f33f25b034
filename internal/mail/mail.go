// Package mail sends transactional email such as sign-in links.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"textile-store/internal/config"
	"textile-store/internal/logger"

	"go.uber.org/zap"
)

// Mailer delivers a plain-text message to a single recipient
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// New returns an SMTP mailer, or a logging mailer when no host is configured.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		logger.Warn("MAIL_HOST not set, emails will be logged instead of sent")
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

var sendMail = smtp.SendMail

type smtpMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) Mailer {
	if cfg.Port == "" {
		cfg.Port = "587"
	}
	return &smtpMailer{cfg: cfg}
}

func (m *smtpMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("mail: header injection rejected")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	msg := buildMessage(m.cfg.From, to, subject, body, time.Now())
	if err := sendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", to, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string, date time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", date.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

type logMailer struct {
	logger *zap.Logger
}

// NewLogMailer writes messages to the log, for local development.
func NewLogMailer(logger *zap.Logger) Mailer {
	return &logMailer{logger: logger}
}

func (m *logMailer) Send(_ context.Context, to, subject, body string) error {
	m.logger.Info("Email (not sent)",
		logger.Email("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}
