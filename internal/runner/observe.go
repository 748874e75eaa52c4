package runner

import (
	"context"

	"github.com/VaynZXC/tanki/internal/game"
	"github.com/VaynZXC/tanki/internal/status"
	"github.com/VaynZXC/tanki/internal/vision"
)

// observedScreen republishes every classification to the status feed.
type observedScreen struct {
	inner   game.Screen
	feed    *status.Feed
	account string
}

// ObserveScreen wraps screen so the live dashboard sees what the
// classifier sees. feed may be nil, in which case screen is returned
// unchanged.
func ObserveScreen(screen game.Screen, feed *status.Feed, account string) game.Screen {
	if feed == nil {
		return screen
	}
	return &observedScreen{inner: screen, feed: feed, account: account}
}

func (o *observedScreen) Scene(ctx context.Context) (*vision.Match, bool) {
	m, ok := o.inner.Scene(ctx)
	if ok {
		o.feed.Scene(o.account, m.Scene, m.Distance)
	}
	return m, ok
}
