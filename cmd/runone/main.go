// Runone takes the next account from the accounts file through the
// full pipeline: launcher login, game start, and the in-game reward
// flow. The account is filed into an outcome bucket afterwards.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/VaynZXC/tanki/internal/app"
	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/hotkeys"
	"github.com/VaynZXC/tanki/internal/launcher"
	"github.com/VaynZXC/tanki/internal/runner"
	"github.com/VaynZXC/tanki/internal/trace"
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "", "directory containing config.yaml")
	accountsFile := flag.String("accounts", "", "accounts file (overrides config)")
	email := flag.String("email", "", "account email (skips the accounts file)")
	password := flag.String("password", "", "account password")
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

	var creds launcher.Credentials
	if *email != "" {
		creds = launcher.Credentials{Email: *email, Password: *password}
	} else {
		path := cfg.Runner.AccountsFile
		if *accountsFile != "" {
			path = *accountsFile
		}
		creds, err = launcher.ConsumeAccount(path)
		if err != nil {
			log.Error("no account available", "file", path, "error", err)
			return errors.ExitCode(err)
		}
	}
	log.Info("account taken", "email", creds.Email)

	tk, err := app.NewToolkit(ctx, cfg)
	if err != nil {
		log.Error("toolkit init failed", "error", err)
		return errors.ExitCode(err)
	}

	switches := hotkeys.New()
	go switches.Monitor(ctx)
	feed := app.StartStatus(ctx, cfg, tk.Desktop)

	r := runner.New(tk.LoginFlow(),
		func() runner.GameFlow { return tk.GameFlow(switches, feed, creds.Email) },
		runner.Config{
			GameStartRetries: cfg.Runner.GameStartRetries,
			BucketDir:        cfg.Runner.BucketDir,
		})

	rewards, runErr := r.RunAccount(ctx, creds)
	outcome := runner.Outcome(runErr)
	if feed != nil {
		feed.Result(creds.Email, outcome, rewards)
	}
	if err := r.Record(creds, rewards, runErr); err != nil {
		log.Warn("bucket write failed", "error", err)
	}

	if runErr != nil {
		log.Error("account failed", "email", creds.Email, "outcome", outcome, "error", runErr)
		return errors.ExitCode(runErr)
	}
	log.Info("account finished", "email", creds.Email, "rewards", rewards)
	return errors.ExitOK
}
