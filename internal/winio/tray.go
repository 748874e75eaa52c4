package winio

import (
	"context"
	"image"
	"syscall"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/lxn/win"

	"github.com/VaynZXC/tanki/internal/trace"
	"github.com/VaynZXC/tanki/internal/vision"
)

// fraction of the taskbar searched for tray icons, from the right edge
const trayRightFraction = 0.6

// Tray locates minimized-to-tray applications when their window cannot
// be found by title. Ladder: icon template on the taskbar, blind
// double-clicks near the notification area, keyboard navigation.
type Tray struct {
	input  Input
	finder *vision.Finder
}

func NewTray(input Input, finder *vision.Finder) *Tray {
	return &Tray{input: input, finder: finder}
}

func taskbarRect() (image.Rectangle, bool) {
	class, _ := syscall.UTF16PtrFromString("Shell_TrayWnd")
	hwnd := win.FindWindow(class, nil)
	if hwnd == 0 {
		return image.Rectangle{}, false
	}
	var r win.RECT
	if !win.GetWindowRect(hwnd, &r) {
		return image.Rectangle{}, false
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), true
}

// DoubleClickIcon searches the right part of the taskbar for the icon
// template and double-clicks it.
func (t *Tray) DoubleClickIcon(ctx context.Context, templateName string) bool {
	rect, ok := taskbarRect()
	if !ok {
		trace.Logger(ctx).Debug("taskbar rect unavailable")
		return false
	}
	region := image.Rect(
		rect.Max.X-int(float64(rect.Dx())*trayRightFraction),
		rect.Min.Y,
		rect.Max.X,
		rect.Max.Y,
	)

	pt, found := t.finder.LocateAny(ctx, region, []string{templateName}, vision.LocateOpts{})
	if !found {
		pt, _, found = t.finder.LocateScaled(ctx, region, templateName, nil, nil)
	}
	if !found {
		return false
	}
	t.input.DoubleClick(pt.X, pt.Y)
	trace.Logger(ctx).Info("tray icon clicked", "template", templateName, "at", pt)
	return true
}

// DoubleClickFirst blindly double-clicks candidate points near the
// notification area. May activate the wrong app if icon order changes.
func (t *Tray) DoubleClickFirst(ctx context.Context) bool {
	w, h := robotgo.GetScreenSize()
	for _, dy := range []int{10, 20, 30} {
		for _, dx := range []int{60, 90, 120, 150} {
			t.input.DoubleClick(w-dx, h-dy)
			t.input.Sleep(150 * time.Millisecond)
		}
	}
	trace.Logger(ctx).Debug("tray coordinate fallback exhausted")
	return true
}

// OpenFirstByKeyboard walks the tray with the keyboard: Win+B focuses
// the notification area, Enter opens overflow, Home+Enter activates
// the first icon.
func (t *Tray) OpenFirstByKeyboard(ctx context.Context) {
	t.input.KeyTap("b", "cmd")
	t.input.Sleep(250 * time.Millisecond)
	t.input.KeyTap("enter")
	t.input.Sleep(250 * time.Millisecond)
	t.input.KeyTap("home")
	t.input.Sleep(100 * time.Millisecond)
	t.input.KeyTap("enter")
	trace.Logger(ctx).Debug("tray keyboard fallback sent")
}
