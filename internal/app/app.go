// Package app assembles the desktop automation stack shared by the
// command binaries: configuration, logging, the vision pipeline, and
// the window and input plumbing.
package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/VaynZXC/tanki/internal/config"
	"github.com/VaynZXC/tanki/internal/errors"
	"github.com/VaynZXC/tanki/internal/game"
	"github.com/VaynZXC/tanki/internal/launcher"
	"github.com/VaynZXC/tanki/internal/runner"
	"github.com/VaynZXC/tanki/internal/screen"
	"github.com/VaynZXC/tanki/internal/status"
	"github.com/VaynZXC/tanki/internal/trace"
	"github.com/VaynZXC/tanki/internal/vision"
	"github.com/VaynZXC/tanki/internal/winio"
)

// Init loads configuration and installs the logging setup. The
// returned cleanup flushes the log file.
func Init(configDir string) (*config.Config, func(), error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, err
	}
	cleanup, err := trace.Setup(ParseLevel(cfg.LogLevel), cfg.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Toolkit holds the shared desktop automation stack.
type Toolkit struct {
	Cfg         *config.Config
	Desktop     *screen.Desktop
	Finder      *vision.Finder
	Classifier  *vision.Classifier
	Input       *winio.Robot
	Tray        *winio.Tray
	LauncherWin *winio.Cache
	GameWin     *winio.Cache
	ScrollMem   *game.ScrollMemory
}

// NewToolkit loads the scene dataset and wires capture, matching, and
// input against the launcher and game windows from cfg.
func NewToolkit(ctx context.Context, cfg *config.Config) (*Toolkit, error) {
	idx, err := vision.LoadIndex(ctx, cfg.Vision.DatasetDir)
	if err != nil {
		return nil, err
	}
	if idx.Total() == 0 {
		return nil, errors.New(errors.Config, "scene dataset is empty")
	}
	trace.Logger(ctx).Info("scene dataset loaded",
		"scenes", len(idx.Scenes()), "templates", idx.Total())

	desktop := screen.NewDesktop()
	finder := vision.NewFinder(desktop.Capture, cfg.Vision.TemplatesDir)
	input := winio.NewRobot()

	return &Toolkit{
		Cfg:         cfg,
		Desktop:     desktop,
		Finder:      finder,
		Classifier:  vision.NewClassifier(idx),
		Input:       input,
		Tray:        winio.NewTray(input, finder),
		LauncherWin: winio.NewCache(cfg.Launcher.TitleRegexp()),
		GameWin:     winio.NewCache(cfg.Game.TitleRegexp()),
		ScrollMem:   game.NewScrollMemory(cfg.Game.ScrollMemDir),
	}, nil
}

// LoginFlow builds the launcher login flow.
func (t *Toolkit) LoginFlow() *launcher.LoginFlow {
	desk := launcher.NewDesk(t.LauncherWin, t.GameWin, t.Input, t.Tray,
		t.Desktop, t.Finder, t.Classifier)
	return launcher.NewLoginFlow(desk, launcher.LoginConfig{
		ScenePollDelay:   t.Cfg.Launcher.ScenePoll.Interval,
		LogoutScrolls:    t.Cfg.Launcher.LogoutScrolls,
		GameStartTimeout: t.Cfg.Launcher.GameStartTimeout,
	})
}

// GameFlow builds a fresh in-game flow. When feed is non-nil every
// classified scene and stage transition is republished to it under
// account.
func (t *Toolkit) GameFlow(switches game.Switches, feed *status.Feed, account string) *game.Flow {
	driver := game.NewDriver(t.GameWin, t.Input, t.Desktop, t.Finder, t.Classifier)
	observed := runner.ObserveScreen(driver, feed, account)
	flow := game.NewFlow(observed, driver, t.ScrollMem, switches, game.FlowConfig{
		RewardIDs:      t.Cfg.Game.RewardIDs,
		TerminalScenes: t.Cfg.Game.TerminalScenes,
		StuckThreshold: t.Cfg.Game.StuckThreshold,
		GracePeriod:    t.Cfg.Game.GracePeriod,
		FinalSeenLimit: t.Cfg.Game.FinalSeenLimit,
		TimeBudget:     t.Cfg.Game.TimeBudget,
		TickInterval:   t.Cfg.Game.ScenePoll.Interval,
	})
	if feed != nil {
		flow.WithStageObserver(func(s game.Stage) {
			feed.Stage(account, s.Kind.String())
		})
	}
	return flow
}

// StartStatus serves the live dashboard when enabled. The returned
// feed is nil when the dashboard is off.
func StartStatus(ctx context.Context, cfg *config.Config, desktop *screen.Desktop) *status.Feed {
	if !cfg.Status.Enabled {
		return nil
	}
	feed := status.NewFeed()
	srv := status.New(feed, func() ([]byte, error) {
		img, err := desktop.CaptureDisplay()
		if err != nil {
			return nil, err
		}
		return screen.Thumbnail(img)
	})

	httpSrv := &http.Server{
		Addr:         cfg.Status.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		trace.Logger(ctx).Info("status server listening", "addr", cfg.Status.Addr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			trace.Logger(ctx).Error("status server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()
	return feed
}
