package resilience

import "time"

// Circuit breaker configuration constants
const (
	// Default configuration
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Mail API configuration. The client probes several endpoint
	// variants per call, so one dead endpoint burns multiple
	// executions; the threshold absorbs a full ladder sweep and the
	// reset is short enough to recover within one retry cycle.
	MailThreshold         = 8
	MailResetTimeout      = 20 * time.Second
	MailHalfOpenSuccesses = 2
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// MailAPIConfig returns settings tuned for the mailbox shop endpoints.
func MailAPIConfig() Config {
	return Config{
		Threshold:         MailThreshold,
		ResetTimeout:      MailResetTimeout,
		HalfOpenSuccesses: MailHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
