package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/emailauth/emailauth/internal/core/ports"
)

const defaultPort = 587

var ErrNoRecipients = errors.New("mail: no recipient")

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender abstracts the gomail dialer so delivery can be replaced in tests.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer delivers plain-text mail through an SMTP relay.
type SMTPMailer struct {
	sender Sender
	from   string
}

// NewSMTPMailer builds a mailer that dials the configured relay per send.
func NewSMTPMailer(cfg Config) *SMTPMailer {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{
		sender: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   from,
	}
}

// NewMailerWithSender wires a custom Sender.
func NewMailerWithSender(sender Sender, from string) *SMTPMailer {
	return &SMTPMailer{sender: sender, from: from}
}

// Send implements ports.Mailer.
func (s *SMTPMailer) Send(ctx context.Context, m ports.Mail) error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := m.From
	if from == "" {
		from = s.from
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", m.To...)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", m.Body)

	if err := s.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}
