package email

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"idleassets/api/internal/config"
)

// Sender delivers an email. rawMessage is the complete message including headers.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// SMTPSender delivers through the configured relay.
type SMTPSender struct {
	from string
	addr string
	auth smtp.Auth
}

// NewSMTPSender returns an SMTP sender, or a LoggingSender when no SMTP host
// is configured.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, emails will only be logged.")
		return LoggingSender{}
	}
	var auth smtp.Auth
	if cfg.SmtpUsername != "" {
		auth = smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost)
	}
	return &SMTPSender{
		from: cfg.SmtpFromAddress,
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		auth: auth,
	}
}

// Send returns when the relay answers or ctx is done, whichever is first.
// net/smtp cannot be cancelled, so an abandoned send finishes in the
// background.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage)
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp %s: %w", s.addr, err)
		}
		log.Printf("Email %q (%s) sent to %v", subject, templateOf(rawMessage), to)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp %s: %w", s.addr, ctx.Err())
	}
}

// LoggingSender writes a one-line summary of each email to the log.
type LoggingSender struct{}

func (LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	log.Printf("Email not sent (no SMTP): to=%v template=%s subject=%q size=%d", to, templateOf(rawMessage), subject, len(rawMessage))
	return nil
}
