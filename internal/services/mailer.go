package services

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"clinic-management-server/internal/config"

	"go.uber.org/zap"
)

// Mailer sends HTML email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// NewMailer returns an SMTP mailer, or a logging mailer when no SMTP host is
// configured.
func NewMailer(cfg config.MailerConfig, log *zap.Logger) Mailer {
	if cfg.Host == "" {
		return &LogMailer{log: log.Named("mailer")}
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer delivers through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	cfg config.MailerConfig
}

func (m *SMTPMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.DefaultFrom, []string{to}, buildMessage(m.cfg.DefaultFrom, to, subject, htmlBody)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

var headerSanitizer = strings.NewReplacer("\r", "", "\n", "")

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + headerSanitizer.Replace(from) + "\r\n")
	b.WriteString("To: " + headerSanitizer.Replace(to) + "\r\n")
	b.WriteString("Subject: " + headerSanitizer.Replace(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	log *zap.Logger
}

func (m *LogMailer) SendEmail(_ context.Context, to, subject, htmlBody string) error {
	m.log.Info("email not sent, no SMTP host configured",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("bodyBytes", len(htmlBody)))
	return nil
}
