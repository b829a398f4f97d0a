package ports

import (
	"context"
	"errors"
)

// Mail is a single plain-text message.
type Mail struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Mailer delivers mail over some transport.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

var (
	ErrMailQueueFull   = errors.New("mail queue is full")
	ErrMailQueueClosed = errors.New("mail queue is closed")
)

// MailQueue accepts mail for asynchronous delivery. Enqueue never blocks:
// it fails with ErrMailQueueFull or ErrMailQueueClosed instead.
type MailQueue interface {
	Enqueue(m Mail) error
}
