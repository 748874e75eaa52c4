// Loginflow logs one account into the game center and starts the
// game, without playing the in-game flow.
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
	"github.com/VaynZXC/tanki/internal/launcher"
	"github.com/VaynZXC/tanki/internal/trace"
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "", "directory containing config.yaml")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "both -email and -password are required")
		return errors.ExitFailure
	}

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

	creds := launcher.Credentials{Email: *email, Password: *password}
	if err := tk.LoginFlow().Run(ctx, creds); err != nil {
		log.Error("login failed", "email", creds.Email, "error", err)
		return errors.ExitCode(err)
	}
	log.Info("login finished, game started", "email", creds.Email)
	return errors.ExitOK
}
