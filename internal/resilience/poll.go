package resilience

import (
	"context"
	"time"
)

// Poll configuration constants
const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultPollTimeout  = 18 * time.Second
)

// PollConfig bounds a repeated probe by interval and total deadline.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	// Sleep is injectable for tests; defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// PollPolicy builds a PollConfig from raw durations, applying defaults.
func PollPolicy(interval, timeout time.Duration) PollConfig {
	return PollConfig{Interval: interval, Timeout: timeout}.withDefaults()
}

// Poll invokes probe every Interval until it reports done, the deadline
// passes, or ctx is canceled. A probe error aborts immediately. Returns
// false with nil error when the deadline expired without success.
func Poll(ctx context.Context, cfg PollConfig, probe func() (bool, error)) (bool, error) {
	cfg = cfg.withDefaults()
	deadline := time.Now().Add(cfg.Timeout)

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		done, err := probe()
		if err != nil {
			return false, err
		}
		if done {
			return true, nil
		}

		if time.Now().Add(cfg.Interval).After(deadline) {
			return false, nil
		}
		if err := cfg.Sleep(ctx, cfg.Interval); err != nil {
			return false, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultPollTimeout
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
	return c
}
