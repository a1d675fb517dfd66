package delivery

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/insighthub/server/pkg/errors"
	"github.com/insighthub/server/pkg/mail"
)

// EmailSink adapts a mail.Mailer to the Sink interface so digests can go out
// over SMTP. The destination is the recipient address.
type EmailSink struct {
	mailer  mail.Mailer
	subject string
}

// NewEmailSink constructs an EmailSink with a fixed subject line.
func NewEmailSink(mailer mail.Mailer, subject string) (*EmailSink, error) {
	if mailer == nil {
		return nil, errors.New("email sink: mailer is required")
	}
	if strings.TrimSpace(subject) == "" {
		subject = "Your news digest"
	}
	return &EmailSink{mailer: mailer, subject: subject}, nil
}

// Name implements Sink.
func (s *EmailSink) Name() string { return "email" }

// Send implements Sink.
func (s *EmailSink) Send(ctx context.Context, destination, text string) error {
	if strings.TrimSpace(destination) == "" {
		return apperrors.NewBadRequest("email recipient is required")
	}

	err := s.mailer.Send(ctx, mail.Message{
		To:      []string{destination},
		Subject: s.subject,
		Body:    text,
	})
	if err != nil {
		if errors.Is(err, mail.ErrSMTPDisabled) {
			return err
		}
		return apperrors.ErrDeliveryFailed.WithInternal(err)
	}
	return nil
}
