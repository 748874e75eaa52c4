// Mailbuy purchases mailboxes from the Firstmail shop and appends
// them to the output file in the accounts-file format.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/VaynZXC/tanki/internal/app"
	"github.com/VaynZXC/tanki/internal/config"
	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/firstmail"
	"github.com/VaynZXC/tanki/internal/launcher"
	"github.com/VaynZXC/tanki/internal/trace"
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "", "directory containing config.yaml")
	count := flag.Int("count", 1, "mailboxes to buy")
	drain := flag.Bool("drain", false, "keep buying until the shop runs out")
	mailType := flag.Int("type", firstmail.PermanentMailbox, "mailbox type")
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

	clients, err := buildClients(cfg.Firstmail)
	if err != nil {
		log.Error("firstmail client init failed", "error", err)
		return errors.ExitCode(err)
	}

	// tab-separated, same shape the accounts loader consumes
	var mu sync.Mutex
	sink := func(mb firstmail.Mailbox) error {
		mu.Lock()
		defer mu.Unlock()
		creds := launcher.Credentials{Email: mb.Email, Password: mb.Password}
		if err := launcher.AppendAccount(cfg.Firstmail.OutFile, creds); err != nil {
			return err
		}
		log.Info("mailbox bought", "email", mb.Email, "left", mb.Left)
		return nil
	}

	if *drain {
		bought, err := clients[0].DrainAll(ctx, *mailType, cfg.Firstmail.Workers, sink)
		log.Info("drain finished", "bought", bought)
		if err != nil {
			log.Error("drain failed", "error", err)
			return errors.ExitCode(err)
		}
		return errors.ExitOK
	}

	// counted purchases rotate through the proxy pool
	for i := 0; i < *count; i++ {
		mb, err := clients[i%len(clients)].BuyMailbox(ctx, *mailType)
		if err != nil {
			log.Error("purchase failed", "bought", i, "error", err)
			return errors.ExitCode(err)
		}
		if err := sink(*mb); err != nil {
			return errors.ExitCode(err)
		}
	}
	return errors.ExitOK
}

// buildClients makes one client per configured proxy, or a single
// direct client when none are set.
func buildClients(cfg config.Firstmail) ([]*firstmail.Client, error) {
	proxies := cfg.Proxies
	if len(proxies) == 0 {
		proxies = []string{""}
	}
	clients := make([]*firstmail.Client, 0, len(proxies))
	for _, proxy := range proxies {
		c, err := firstmail.NewClient(firstmail.Config{
			BaseURL:  cfg.BaseURL,
			APIKey:   cfg.APIKey,
			ProxyURL: proxy,
		})
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, nil
}
