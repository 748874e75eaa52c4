// Package runner executes the full per-account pipeline: launcher
// login followed by the in-game reward flow, with the retry and
// bucketing policy for batch runs.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/launcher"
	"github.com/VaynZXC/tanki/internal/trace"
)

// Bucket file names under the results directory.
const (
	BucketSuccess = "success.txt"
	BucketInvalid = "invalid.txt"
	BucketFailed  = "failed.txt"
	rewardsFile   = "rewards.txt"
)

// LoginFlow logs one account into the launcher and starts the game.
type LoginFlow interface {
	Run(ctx context.Context, creds launcher.Credentials) error
}

// GameFlow plays the in-game reward flow once. Each Run needs a fresh
// instance; the factory supplies one per attempt.
type GameFlow interface {
	Run(ctx context.Context) ([]string, error)
}

type GameFactory func() GameFlow

type Config struct {
	// GameStartRetries is how many extra login attempts a
	// GameStartTimeout earns. InvalidCredentials is never retried.
	GameStartRetries int
	BucketDir        string
}

func (c Config) withDefaults() Config {
	if c.GameStartRetries < 0 {
		c.GameStartRetries = 0
	}
	if c.BucketDir == "" {
		c.BucketDir = "results"
	}
	return c
}

type Runner struct {
	login LoginFlow
	games GameFactory
	cfg   Config
}

func New(login LoginFlow, games GameFactory, cfg Config) *Runner {
	return &Runner{login: login, games: games, cfg: cfg.withDefaults()}
}

// RunAccount takes one account through login and the game flow.
// A GameStartTimeout restarts the whole attempt, login included,
// up to GameStartRetries extra times. Any other failure is final.
func (r *Runner) RunAccount(ctx context.Context, creds launcher.Credentials) ([]string, error) {
	log := trace.Logger(ctx)

	var lastErr error
	for attempt := 0; attempt <= r.cfg.GameStartRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.Canceled, "run account")
		}
		if attempt > 0 {
			log.Info("retrying after game start timeout",
				"email", creds.Email, "attempt", attempt+1)
		}

		if err := r.login.Run(ctx, creds); err != nil {
			if errors.IsKind(err, errors.GameStartTimeout) {
				lastErr = err
				continue
			}
			return nil, err
		}

		rewards, err := r.games().Run(ctx)
		if err != nil {
			if errors.IsKind(err, errors.GameStartTimeout) {
				lastErr = err
				continue
			}
			return rewards, err
		}
		return rewards, nil
	}
	return nil, lastErr
}

// Outcome names the bucket an attempt lands in.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.IsKind(err, errors.InvalidCredentials):
		return "invalid_credentials"
	case errors.IsKind(err, errors.TimeBudget):
		return "time_budget"
	case errors.IsKind(err, errors.GameStartTimeout):
		return "game_start_timeout"
	case errors.IsKind(err, errors.Canceled):
		return "canceled"
	default:
		return "failed"
	}
}

func bucketFile(outcome string) string {
	switch outcome {
	case "success":
		return BucketSuccess
	case "invalid_credentials":
		return BucketInvalid
	default:
		return BucketFailed
	}
}

// Record files the account into the outcome bucket and, on success,
// appends the claimed rewards to the rewards log. Canceled runs are
// not recorded so the account stays in the source file semantics of
// the caller.
func (r *Runner) Record(creds launcher.Credentials, rewards []string, runErr error) error {
	outcome := Outcome(runErr)
	if outcome == "canceled" {
		return nil
	}

	if err := os.MkdirAll(r.cfg.BucketDir, 0o755); err != nil {
		return errors.Wrap(err, errors.Config, "create bucket dir")
	}

	path := filepath.Join(r.cfg.BucketDir, bucketFile(outcome))
	if err := launcher.AppendAccount(path, creds); err != nil {
		return err
	}

	if outcome == "success" && len(rewards) > 0 {
		line := fmt.Sprintf("%s\t%s\n", creds.Email, strings.Join(rewards, ","))
		if err := appendLine(filepath.Join(r.cfg.BucketDir, rewardsFile), line); err != nil {
			return err
		}
	}
	return nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.Config, "open rewards file")
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(line); err != nil {
		return errors.Wrap(err, errors.Config, "append rewards")
	}
	return nil
}
