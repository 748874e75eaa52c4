package winio

import (
	"testing"
	"time"

	"github.com/lxn/win"
)

func TestCloseSequenceStopsAfterGracefulClose(t *testing.T) {
	var posted []uint32
	killed := false

	closeSequence(
		func() bool { return false }, // gone after the system close
		func(msg uint32, _ uintptr) { posted = append(posted, msg) },
		func() { killed = true },
		func(time.Duration) {},
	)

	if len(posted) != 1 || posted[0] != win.WM_SYSCOMMAND {
		t.Errorf("posted = %v, want only WM_SYSCOMMAND", posted)
	}
	if killed {
		t.Error("kill invoked for a window that closed gracefully")
	}
}

func TestCloseSequenceEscalatesToKill(t *testing.T) {
	var posted []uint32
	killed := false

	closeSequence(
		func() bool { return true }, // ignores every close message
		func(msg uint32, _ uintptr) { posted = append(posted, msg) },
		func() { killed = true },
		func(time.Duration) {},
	)

	if len(posted) != 2 || posted[0] != win.WM_SYSCOMMAND || posted[1] != win.WM_CLOSE {
		t.Errorf("posted = %v, want WM_SYSCOMMAND then WM_CLOSE", posted)
	}
	if !killed {
		t.Error("kill not invoked for a window that survived both close messages")
	}
}
