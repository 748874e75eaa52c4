// Register creates game accounts end to end: buy a mailbox, fill the
// signup form in a browser, confirm via the mailbox, and append the
// finished account to the accounts file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/VaynZXC/tanki/internal/app"
	"github.com/VaynZXC/tanki/internal/config"
	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/firstmail"
	"github.com/VaynZXC/tanki/internal/launcher"
	"github.com/VaynZXC/tanki/internal/registration"
	"github.com/VaynZXC/tanki/internal/resilience"
	"github.com/VaynZXC/tanki/internal/trace"
)

const passwordLength = 12

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "", "directory containing config.yaml")
	count := flag.Int("count", 1, "accounts to register")
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

	proxy := ""
	if len(cfg.Firstmail.Proxies) > 0 {
		proxy = cfg.Firstmail.Proxies[0]
	}
	mail, err := firstmail.NewClient(firstmail.Config{
		BaseURL:  cfg.Firstmail.BaseURL,
		APIKey:   cfg.Firstmail.APIKey,
		ProxyURL: proxy,
	})
	if err != nil {
		log.Error("firstmail client init failed", "error", err)
		return errors.ExitCode(err)
	}

	registered := 0
	for i := 0; i < *count; i++ {
		if ctx.Err() != nil {
			break
		}
		_, span := trace.StartSpan(ctx, "register")
		err := registerOne(ctx, cfg, mail)
		span.End()
		if err != nil {
			log.Error("registration failed", "done", registered, "error", err)
			return errors.ExitCode(err)
		}
		registered++
	}
	log.Info("registration finished", "accounts", registered)
	return errors.ExitOK
}

func registerOne(ctx context.Context, cfg *config.Config, mail *firstmail.Client) error {
	log := trace.Logger(ctx)

	mb, err := mail.BuyMailbox(ctx, firstmail.PermanentMailbox)
	if err != nil {
		return err
	}
	log.Info("mailbox bought", "email", mb.Email)

	password := registration.GeneratePassword(passwordLength)
	username := registration.UsernameFromEmail(mb.Email)

	browser := registration.NewBrowser(registration.Config{
		SignupURL: cfg.Registration.SignupURL,
		Headless:  cfg.Registration.Headless,
	})
	if err := browser.Start(ctx); err != nil {
		return err
	}
	defer browser.Close()

	if err := browser.Register(ctx, mb.Email, password, username); err != nil {
		return err
	}
	log.Info("signup form submitted", "email", mb.Email, "username", username)

	poll := resilience.PollPolicy(cfg.Registration.MailPoll.Interval, cfg.Registration.MailPoll.Timeout)
	if err := registration.Confirm(ctx, mail, browser, mb.Email, mb.Password, poll); err != nil {
		return err
	}
	log.Info("account confirmed", "email", mb.Email)

	return launcher.AppendAccount(cfg.Runner.AccountsFile,
		launcher.Credentials{Email: mb.Email, Password: password})
}
