// Package hotkeys installs a global keyboard hook for the operator
// stop and pause switches. F10 stops the run, F9 toggles pause.
package hotkeys

import (
	"context"
	"sync/atomic"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"

	"github.com/VaynZXC/tanki/internal/trace"
)

const eventBuffer = 100

// Switches exposes the stop and pause flags checked once per tick.
// Both are cooperative: an in-flight action completes before the flag
// is observed.
type Switches struct {
	stop   atomic.Bool
	paused atomic.Bool
}

func New() *Switches { return &Switches{} }

// Stopped reports whether the operator requested a stop.
func (s *Switches) Stopped() bool { return s.stop.Load() }

// Paused reports whether ticks should no-op.
func (s *Switches) Paused() bool { return s.paused.Load() }

// Stop sets the stop flag programmatically.
func (s *Switches) Stop() { s.stop.Store(true) }

// Monitor installs the low-level keyboard hook and watches for the
// hotkeys until ctx is canceled. Run it on its own goroutine.
func (s *Switches) Monitor(ctx context.Context) {
	log := trace.Logger(ctx)

	events := make(chan types.KeyboardEvent, eventBuffer)
	if err := keyboard.Install(nil, events); err != nil {
		log.Warn("keyboard hook unavailable", "error", err)
		return
	}
	defer keyboard.Uninstall()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Message != types.WM_KEYDOWN {
				continue
			}
			switch ev.VKCode {
			case types.VK_F10:
				s.stop.Store(true)
				log.Info("stop requested (F10)")
			case types.VK_F9:
				paused := !s.paused.Load()
				s.paused.Store(paused)
				log.Info("pause toggled (F9)", "paused", paused)
			}
		}
	}
}
