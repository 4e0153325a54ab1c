package email

import (
	"context"
	"fmt"
	"log"
)

// CompositeEmailSender delivers through a primary sender and copies each
// email to any number of secondary senders, such as the development log
// file. Only the primary decides whether the send failed, so an asynq retry
// never re-delivers an email over SMTP because a log copy could not be
// written.
type CompositeEmailSender struct {
	primary     Sender
	secondaries []Sender
}

func NewCompositeEmailSender(primary Sender) *CompositeEmailSender {
	return &CompositeEmailSender{primary: primary}
}

// AddSender adds a secondary sender. nil is ignored.
func (cs *CompositeEmailSender) AddSender(sender Sender) {
	if sender != nil {
		cs.secondaries = append(cs.secondaries, sender)
	}
}

func (cs *CompositeEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if cs.primary == nil {
		return fmt.Errorf("no primary email sender configured")
	}
	if err := cs.primary.Send(ctx, to, subject, rawMessage); err != nil {
		return fmt.Errorf("email to %v: %w", to, err)
	}
	for _, sender := range cs.secondaries {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			log.Printf("CompositeEmailSender: secondary copy of %q to %v failed: %v", subject, to, err)
		}
	}
	return nil
}
