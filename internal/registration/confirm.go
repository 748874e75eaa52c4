package registration

import (
	"context"
	"time"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/firstmail"
	"github.com/VaynZXC/tanki/internal/resilience"
	"github.com/VaynZXC/tanki/internal/trace"
)

// DefaultConfirmPoll spaces mailbox checks so three of them span the
// usual email delivery window.
func DefaultConfirmPoll() resilience.PollConfig {
	return resilience.PollPolicy(60*time.Second, 3*time.Minute)
}

// MailReader fetches the newest message of a mailbox.
type MailReader interface {
	LastMessage(ctx context.Context, email, password string) (*firstmail.Message, error)
}

// Navigator opens a URL in the signup browser session.
type Navigator interface {
	OpenLink(ctx context.Context, link string) error
}

// AwaitConfirmationLink polls the mailbox until a registration link
// shows up. Fetch errors are expected while the email is in transit
// and only end the wait through the poll deadline.
func AwaitConfirmationLink(ctx context.Context, reader MailReader, email, password string, poll resilience.PollConfig) (string, error) {
	log := trace.Logger(ctx)
	var link string
	found, err := resilience.Poll(ctx, poll, func() (bool, error) {
		msg, err := reader.LastMessage(ctx, email, password)
		if err != nil {
			log.Debug("mailbox fetch failed", "email", email, "error", err)
			return false, nil
		}
		if msg == nil {
			return false, nil
		}
		l, ok := ConfirmationLink(msg.HTML, msg.Text, msg.Body)
		if !ok {
			log.Debug("message without registration link", "subject", msg.Subject)
			return false, nil
		}
		link = l
		return true, nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", errors.Newf(errors.Transient, "no confirmation link for %s before deadline", email)
	}
	return link, nil
}

// Confirm completes the registration: wait for the email, then open
// its link in the same browser session that submitted the form.
func Confirm(ctx context.Context, reader MailReader, nav Navigator, email, password string, poll resilience.PollConfig) error {
	link, err := AwaitConfirmationLink(ctx, reader, email, password, poll)
	if err != nil {
		return err
	}
	trace.Logger(ctx).Info("opening confirmation link", "email", email, "link", link)
	return nav.OpenLink(ctx, link)
}
