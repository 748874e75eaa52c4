// Gameflow plays the in-game reward flow against an already running
// game client and records the claimed rewards.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/VaynZXC/tanki/internal/app"
	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/hotkeys"
	"github.com/VaynZXC/tanki/internal/runner"
	"github.com/VaynZXC/tanki/internal/trace"
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "", "directory containing config.yaml")
	account := flag.String("account", "", "account label for the status feed")
	flag.Parse()

	cfg, cleanup, err := app.Init(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return errors.ExitCode(err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, _ = trace.EnsureContext(ctx)
	log := trace.Logger(ctx)

	tk, err := app.NewToolkit(ctx, cfg)
	if err != nil {
		log.Error("toolkit init failed", "error", err)
		return errors.ExitCode(err)
	}

	switches := hotkeys.New()
	go switches.Monitor(ctx)

	feed := app.StartStatus(ctx, cfg, tk.Desktop)

	flow := tk.GameFlow(switches, feed, *account)
	rewards, runErr := flow.Run(ctx)

	if feed != nil {
		feed.Result(*account, runner.Outcome(runErr), rewards)
	}
	if err := writeResult(cfg.Game.ResultFile, rewards); err != nil {
		log.Warn("result file write failed", "error", err)
	}

	if runErr != nil {
		log.Error("game flow failed", "error", runErr, "rewards", rewards)
		return errors.ExitCode(runErr)
	}
	log.Info("game flow finished", "rewards", rewards)
	return errors.ExitOK
}

// writeResult records the claimed reward IDs, comma-separated and
// deduplicated in claim order.
func writeResult(path string, rewards []string) error {
	if path == "" {
		return nil
	}
	seen := make(map[string]bool, len(rewards))
	var ids []string
	for _, id := range rewards {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return os.WriteFile(path, []byte(strings.Join(ids, ",")+"\n"), 0o644)
}
