// Package winio wraps window discovery, activation, and input
// injection for the launcher and game client.
package winio

import (
	"context"
	"image"
	"regexp"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"

	"github.com/VaynZXC/tanki/internal/syncx"
	"github.com/VaynZXC/tanki/internal/trace"
)

var (
	user32               = syscall.NewLazyDLL("user32.dll")
	procEnumWindows      = user32.NewProc("EnumWindows")
	procEnumChildWindows = user32.NewProc("EnumChildWindows")
	procGetWindowText    = user32.NewProc("GetWindowTextW")
	procGetClassName     = user32.NewProc("GetClassNameW")
)

const (
	focusRetries = 3
	// closeGrace is how long a close message gets before escalation.
	closeGrace = 500 * time.Millisecond
	killGrace  = 2 * time.Second
)

// Window wraps a top-level window handle.
type Window struct {
	hwnd win.HWND
}

// FindWindow returns the first visible top-level window whose title
// matches titleRe.
func FindWindow(ctx context.Context, titleRe *regexp.Regexp) (*Window, bool) {
	var found win.HWND

	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		h := win.HWND(hwnd)
		if !win.IsWindowVisible(h) {
			return 1 // continue
		}
		if titleRe.MatchString(windowTitle(h)) {
			found = h
			return 0 // stop
		}
		return 1
	})
	procEnumWindows.Call(cb, 0)

	if found == 0 {
		return nil, false
	}
	trace.Logger(ctx).Debug("window found", "hwnd", uintptr(found), "title", windowTitle(found))
	return &Window{hwnd: found}, true
}

func windowTitle(hwnd win.HWND) string {
	var buf [256]uint16
	n, _, _ := procGetWindowText.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return syscall.UTF16ToString(buf[:n])
}

// Valid reports whether the handle still names a live window.
func (w *Window) Valid() bool {
	return w != nil && w.hwnd != 0 && win.IsWindow(w.hwnd)
}

// Rect returns the window rectangle in screen coordinates.
func (w *Window) Rect() (image.Rectangle, bool) {
	if !w.Valid() {
		return image.Rectangle{}, false
	}
	var r win.RECT
	if !win.GetWindowRect(w.hwnd, &r) {
		return image.Rectangle{}, false
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), true
}

// Focus restores a minimized window and brings it to the foreground.
// Reports whether the window is visible afterwards.
func (w *Window) Focus(ctx context.Context) bool {
	if !w.Valid() {
		trace.Logger(ctx).Debug("focus: invalid hwnd")
		return false
	}
	if win.IsIconic(w.hwnd) {
		win.ShowWindow(w.hwnd, win.SW_RESTORE)
	} else {
		win.ShowWindow(w.hwnd, win.SW_SHOW)
	}
	for i := 0; i < focusRetries; i++ {
		win.SetForegroundWindow(w.hwnd)
		time.Sleep(100 * time.Millisecond)
	}
	visible := win.IsWindowVisible(w.hwnd)
	trace.Logger(ctx).Debug("focus", "visible", visible)
	return visible
}

// Close asks the window to close gracefully: a system close command
// first, then WM_CLOSE, then terminating the owning process if the
// window survives both.
func (w *Window) Close(ctx context.Context) {
	if !w.Valid() {
		return
	}
	trace.Logger(ctx).Info("closing window", "title", windowTitle(w.hwnd))
	closeSequence(
		w.Valid,
		func(msg uint32, wParam uintptr) { win.PostMessage(w.hwnd, msg, wParam, 0) },
		func() { w.kill(ctx) },
		time.Sleep,
	)
}

// closeSequence escalates through the close strategies, stopping as
// soon as the window is gone.
func closeSequence(alive func() bool, post func(msg uint32, wParam uintptr), kill func(), sleep func(time.Duration)) {
	post(win.WM_SYSCOMMAND, win.SC_CLOSE)
	sleep(closeGrace)
	if !alive() {
		return
	}
	post(win.WM_CLOSE, 0)
	sleep(killGrace)
	if alive() {
		kill()
	}
}

// kill terminates the owning process; last resort for a client that
// ignores close messages.
func (w *Window) kill(ctx context.Context) {
	var pid uint32
	win.GetWindowThreadProcessId(w.hwnd, &pid)
	if pid == 0 {
		return
	}
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
	if err != nil {
		trace.Logger(ctx).Warn("open process failed", "pid", pid, "error", err)
		return
	}
	defer func() { _ = windows.CloseHandle(h) }()
	if err := windows.TerminateProcess(h, 1); err != nil {
		trace.Logger(ctx).Warn("terminate process failed", "pid", pid, "error", err)
		return
	}
	trace.Logger(ctx).Info("process terminated", "pid", pid)
}

// editChildren returns the window's first max child controls of class
// Edit, in enumeration order.
func editChildren(parent win.HWND, max int) []win.HWND {
	var edits []win.HWND
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		var buf [64]uint16
		n, _, _ := procGetClassName.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if strings.EqualFold(syscall.UTF16ToString(buf[:n]), "Edit") {
			edits = append(edits, win.HWND(hwnd))
			if len(edits) >= max {
				return 0 // stop
			}
		}
		return 1
	})
	procEnumChildWindows.Call(uintptr(parent), cb, 0)
	return edits
}

// SetTextFields writes values into the window's first text inputs via
// WM_SETTEXT, in document order, skipping input injection entirely.
// Reports false when the window exposes fewer native inputs than
// values; web-view forms have none.
func (w *Window) SetTextFields(ctx context.Context, values ...string) bool {
	if !w.Valid() {
		return false
	}
	edits := editChildren(w.hwnd, len(values))
	if len(edits) < len(values) {
		trace.Logger(ctx).Debug("native text inputs unavailable", "found", len(edits))
		return false
	}
	for i, v := range values {
		p, err := syscall.UTF16PtrFromString(v)
		if err != nil {
			return false
		}
		win.SendMessage(edits[i], win.WM_SETTEXT, 0, uintptr(unsafe.Pointer(p)))
	}
	return true
}

// Cache memoizes a window looked up by title and re-resolves the
// handle when it goes stale.
type Cache struct {
	titleRe *regexp.Regexp
	cur     *syncx.Guard[win.HWND]
}

func NewCache(titleRe *regexp.Regexp) *Cache {
	return &Cache{titleRe: titleRe, cur: syncx.NewGuard(win.HWND(0))}
}

// Get returns the cached window if still valid, otherwise searches
// again and caches the result.
func (c *Cache) Get(ctx context.Context) (*Window, bool) {
	if h := c.cur.Get(); h != 0 {
		w := &Window{hwnd: h}
		if w.Valid() {
			return w, true
		}
		trace.Logger(ctx).Debug("cached window stale, refetching")
		c.cur.Set(0)
	}
	w, ok := FindWindow(ctx, c.titleRe)
	if !ok {
		return nil, false
	}
	c.cur.Set(w.hwnd)
	return w, true
}

// Invalidate drops the cached handle.
func (c *Cache) Invalidate() {
	c.cur.Set(0)
}
