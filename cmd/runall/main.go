// Runall drains the accounts file, spawning a runone child per
// account so every attempt starts from a clean process. Outcomes are
// classified from child exit codes; Ctrl+C stops the batch after the
// current account and puts it back into the file.
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
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
	accountsFile := flag.String("accounts", "", "accounts file (overrides config)")
	runoneBin := flag.String("runone", "", "path to the runone binary")
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

	path := cfg.Runner.AccountsFile
	if *accountsFile != "" {
		path = *accountsFile
	}

	bin, err := findRunone(*runoneBin)
	if err != nil {
		log.Error("runone binary not found", "error", err)
		return errors.ExitFailure
	}

	counts := map[string]int{}
	for {
		if ctx.Err() != nil {
			log.Info("batch stopped", "counts", counts)
			break
		}

		creds, err := launcher.ConsumeAccount(path)
		if err != nil {
			if errors.IsKind(err, errors.Config) {
				log.Info("accounts file drained", "counts", counts)
				break
			}
			log.Error("account read failed", "error", err)
			return errors.ExitCode(err)
		}

		spanCtx, span := trace.StartSpan(ctx, "account")
		log.Info("account taken", "email", creds.Email)

		rc := runChild(spanCtx, bin, *configDir, creds)
		outcome := outcomeOf(rc)
		counts[outcome]++
		span.End()

		if ctx.Err() != nil {
			// the child was interrupted mid-run; put the account back
			if err := launcher.AppendAccount(path, creds); err != nil {
				log.Warn("account restore failed", "email", creds.Email, "error", err)
			}
			log.Info("batch stopped", "counts", counts)
			break
		}

		if rc == errors.ExitOK {
			log.Info("account finished", "email", creds.Email)
		} else {
			log.Warn("account failed", "email", creds.Email, "outcome", outcome, "rc", rc)
		}
	}
	return errors.ExitOK
}

// findRunone resolves the child binary: explicit flag, next to this
// executable, then PATH.
func findRunone(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), childName())
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return exec.LookPath(childName())
}

func childName() string {
	if filepath.Ext(os.Args[0]) == ".exe" {
		return "runone.exe"
	}
	return "runone"
}

func runChild(ctx context.Context, bin, configDir string, creds launcher.Credentials) int {
	args := []string{"-email", creds.Email, "-password", creds.Password}
	if configDir != "" {
		args = append(args, "-config", configDir)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = trace.ChildEnv(ctx)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		return errors.ExitFailure
	}
	return errors.ExitOK
}

func outcomeOf(rc int) string {
	kind, failed := errors.KindFromExitCode(rc)
	if !failed {
		return "success"
	}
	return kind.String()
}
