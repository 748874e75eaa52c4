package registration

import (
	"context"
	"testing"
	"time"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/firstmail"
	"github.com/VaynZXC/tanki/internal/resilience"
)

type fakeReader struct {
	calls    int
	failures int // errors returned before a message is served
	msg      *firstmail.Message
}

func (r *fakeReader) LastMessage(context.Context, string, string) (*firstmail.Message, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, errors.New(errors.Transient, "mailbox still empty")
	}
	return r.msg, nil
}

type fakeNavigator struct {
	opened []string
	err    error
}

func (n *fakeNavigator) OpenLink(_ context.Context, link string) error {
	n.opened = append(n.opened, link)
	return n.err
}

func fastPoll() resilience.PollConfig {
	return resilience.PollConfig{
		Interval: time.Millisecond,
		Timeout:  50 * time.Millisecond,
		Sleep:    func(context.Context, time.Duration) error { return nil },
	}
}

func TestAwaitConfirmationLink(t *testing.T) {
	reader := &fakeReader{
		failures: 2,
		msg: &firstmail.Message{
			Subject: "Confirm",
			HTML:    `<a href="https://eu.wargaming.net/registration/confirm/1/">go</a>`,
		},
	}

	link, err := AwaitConfirmationLink(context.Background(), reader, "a@b.c", "pw", fastPoll())
	if err != nil {
		t.Fatalf("AwaitConfirmationLink() error = %v", err)
	}
	if link != "https://eu.wargaming.net/registration/confirm/1/" {
		t.Errorf("link = %q", link)
	}
	if reader.calls != 3 {
		t.Errorf("mailbox fetches = %d, want 3", reader.calls)
	}
}

func TestAwaitConfirmationLinkDeadline(t *testing.T) {
	reader := &fakeReader{msg: &firstmail.Message{Text: "no links inside"}}

	_, err := AwaitConfirmationLink(context.Background(), reader, "a@b.c", "pw", fastPoll())
	if errors.KindOf(err) != errors.Transient {
		t.Fatalf("error kind = %v, want transient", errors.KindOf(err))
	}
}

func TestConfirmOpensLink(t *testing.T) {
	reader := &fakeReader{
		msg: &firstmail.Message{Text: "visit https://eu.wargaming.net/registration/short/x now"},
	}
	nav := &fakeNavigator{}

	if err := Confirm(context.Background(), reader, nav, "a@b.c", "pw", fastPoll()); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if len(nav.opened) != 1 || nav.opened[0] != "https://eu.wargaming.net/registration/short/x" {
		t.Errorf("opened = %v", nav.opened)
	}
}
