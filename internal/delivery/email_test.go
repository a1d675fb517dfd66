package delivery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/insighthub/server/pkg/errors"
	"github.com/insighthub/server/pkg/mail"
)

type fakeMailer struct {
	messages []mail.Message
	err      error
}

func (m *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func TestEmailSinkSend(t *testing.T) {
	mailer := &fakeMailer{}
	sink, err := NewEmailSink(mailer, "Daily digest")
	require.NoError(t, err)
	require.Equal(t, "email", sink.Name())

	require.NoError(t, sink.Send(context.Background(), "user@example.com", "body text"))
	require.Len(t, mailer.messages, 1)
	require.Equal(t, []string{"user@example.com"}, mailer.messages[0].To)
	require.Equal(t, "Daily digest", mailer.messages[0].Subject)
	require.Equal(t, "body text", mailer.messages[0].Body)
}

func TestEmailSinkWrapsFailures(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("connection refused")}
	sink, err := NewEmailSink(mailer, "Daily digest")
	require.NoError(t, err)

	err = sink.Send(context.Background(), "user@example.com", "body")
	require.ErrorIs(t, err, apperrors.ErrDeliveryFailed)
}

func TestEmailSinkPassesThroughDisabledSMTP(t *testing.T) {
	mailer := &fakeMailer{err: mail.ErrSMTPDisabled}
	sink, err := NewEmailSink(mailer, "")
	require.NoError(t, err)

	err = sink.Send(context.Background(), "user@example.com", "body")
	require.ErrorIs(t, err, mail.ErrSMTPDisabled)
}

func TestEmailSinkRequiresRecipient(t *testing.T) {
	sink, err := NewEmailSink(&fakeMailer{}, "s")
	require.NoError(t, err)

	err = sink.Send(context.Background(), " ", "body")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}
