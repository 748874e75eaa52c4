package launcher

import (
	"context"
	"image"
	"time"

	"github.com/VaynZXC/tanki/internal/resilience"
	"github.com/VaynZXC/tanki/internal/screen"
	"github.com/VaynZXC/tanki/internal/trace"
	"github.com/VaynZXC/tanki/internal/vision"
	"github.com/VaynZXC/tanki/internal/winio"
)

const trayIconTemplate = "wg_icon.png"

// avatarScrollDX shifts the cursor right of the avatar so scroll
// events land on the account list.
const avatarScrollDX = 50

// Windows keeps the launcher window missing this long at most after a
// tray icon is double-clicked.
const visibleWait = 3 * time.Second

// Desk implements Surface against the real launcher window.
type Desk struct {
	win        *winio.Cache
	gameWin    *winio.Cache
	input      winio.Input
	tray       *winio.Tray
	grabber    screen.Grabber
	finder     *vision.Finder
	classifier *vision.Classifier
}

func NewDesk(win, gameWin *winio.Cache, input winio.Input, tray *winio.Tray, grabber screen.Grabber, finder *vision.Finder, classifier *vision.Classifier) *Desk {
	return &Desk{
		win:        win,
		gameWin:    gameWin,
		input:      input,
		tray:       tray,
		grabber:    grabber,
		finder:     finder,
		classifier: classifier,
	}
}

func (d *Desk) rect(ctx context.Context) (image.Rectangle, bool) {
	w, ok := d.win.Get(ctx)
	if !ok {
		return image.Rectangle{}, false
	}
	return w.Rect()
}

// EnsureVisible restores and focuses the launcher window, falling
// back to the taskbar template, tray hints, and finally blind tray
// navigation when the window does not exist yet.
func (d *Desk) EnsureVisible(ctx context.Context) bool {
	log := trace.Logger(ctx)

	if w, ok := d.win.Get(ctx); ok && w.Focus(ctx) {
		return true
	}
	d.win.Invalidate()

	if d.tray.DoubleClickIcon(ctx, trayIconTemplate) {
		if d.awaitWindow(ctx) {
			return true
		}
	}
	if d.tray.DoubleClickFirst(ctx) {
		if d.awaitWindow(ctx) {
			return true
		}
	}
	d.tray.OpenFirstByKeyboard(ctx)
	if d.awaitWindow(ctx) {
		return true
	}

	log.Warn("launcher window could not be brought up")
	return false
}

func (d *Desk) awaitWindow(ctx context.Context) bool {
	ok, err := resilience.Poll(ctx, resilience.PollPolicy(200*time.Millisecond, visibleWait), func() (bool, error) {
		w, found := d.win.Get(ctx)
		return found && w.Focus(ctx), nil
	})
	return err == nil && ok
}

func (d *Desk) Scene(ctx context.Context) (*vision.Match, bool) {
	log := trace.Logger(ctx)
	r, ok := d.rect(ctx)
	if !ok {
		return nil, false
	}
	img, err := d.grabber.Capture(r)
	if err != nil {
		log.Debug("launcher capture failed", "error", err)
		return nil, false
	}
	m, err := d.classifier.Classify(img)
	if err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// FindButton runs the standard ladder: strict color confidences, then
// relaxed grayscale ones.
func (d *Desk) FindButton(ctx context.Context, name string) (image.Point, bool) {
	r, ok := d.rect(ctx)
	if !ok {
		return image.Point{}, false
	}
	for _, conf := range []float64{0.86, 0.84, 0.80} {
		if pt, ok := d.finder.Locate(ctx, r, name, vision.LocateOpts{Confidence: conf}); ok {
			return pt, true
		}
	}
	for _, conf := range []float64{0.84, 0.80, 0.75} {
		if pt, ok := d.finder.Locate(ctx, r, name, vision.LocateOpts{Confidence: conf, Grayscale: true}); ok {
			return pt, true
		}
	}
	return image.Point{}, false
}

func (d *Desk) FindIn(ctx context.Context, name string, panel Panel, confidence float64, grayscale bool) (image.Point, bool) {
	r, ok := d.rect(ctx)
	if !ok {
		return image.Point{}, false
	}
	if panel == PanelLeft {
		r.Max.X = r.Min.X + r.Dx()/2
	}
	return d.finder.Locate(ctx, r, name, vision.LocateOpts{Confidence: confidence, Grayscale: grayscale})
}

func (d *Desk) Click(ctx context.Context, pt image.Point) {
	d.input.Click(pt.X, pt.Y)
}

func (d *Desk) abs(ctx context.Context, rx, ry float64) (image.Point, bool) {
	r, ok := d.rect(ctx)
	if !ok {
		return image.Point{}, false
	}
	return image.Pt(
		r.Min.X+int(rx*float64(r.Dx())),
		r.Min.Y+int(ry*float64(r.Dy())),
	), true
}

func (d *Desk) ClickRelative(ctx context.Context, rx, ry float64) {
	if pt, ok := d.abs(ctx, rx, ry); ok {
		d.input.Click(pt.X, pt.Y)
	}
}

func (d *Desk) HoverRelative(ctx context.Context, rx, ry float64) {
	if pt, ok := d.abs(ctx, rx, ry); ok {
		d.input.Move(pt.X, pt.Y)
	}
}

// SetLoginFields writes both credentials into the login form's first
// two native edit controls. False when the form is rendered in a web
// view, which has no such controls.
func (d *Desk) SetLoginFields(ctx context.Context, email, password string) bool {
	w, ok := d.win.Get(ctx)
	if !ok {
		return false
	}
	return w.SetTextFields(ctx, email, password)
}

func (d *Desk) ScrollFromAvatar(ctx context.Context, amount int) {
	pt, ok := d.abs(ctx, avatarAnchor.X, avatarAnchor.Y)
	if !ok {
		return
	}
	d.input.Move(pt.X+avatarScrollDX, pt.Y)
	d.input.Sleep(100 * time.Millisecond)
	d.input.Scroll(amount)
}

// EnterText clears the focused field and types the value. The
// clipboard path is fast and layout-proof; when its round-trip check
// fails the value is retyped character by character.
func (d *Desk) EnterText(ctx context.Context, text string, verify bool) {
	log := trace.Logger(ctx)
	if d.pasteClipboard(ctx, text, verify) {
		return
	}
	log.Warn("clipboard input not confirmed, typing directly")
	d.clearField()
	d.input.TypeText(text)
}

func (d *Desk) clearField() {
	d.input.KeyTap("a", "ctrl")
	d.input.Sleep(60 * time.Millisecond)
	d.input.KeyTap("backspace")
	d.input.Sleep(60 * time.Millisecond)
}

func (d *Desk) pasteClipboard(ctx context.Context, text string, verify bool) bool {
	log := trace.Logger(ctx)
	if err := d.input.SetClipboard(text); err != nil {
		log.Debug("clipboard unavailable", "error", err)
		return false
	}
	d.clearField()
	d.input.KeyTap("v", "ctrl")
	d.input.Sleep(150 * time.Millisecond)
	if !verify {
		return true
	}

	d.input.KeyTap("a", "ctrl")
	d.input.Sleep(50 * time.Millisecond)
	d.input.KeyTap("c", "ctrl")
	d.input.Sleep(50 * time.Millisecond)
	got, err := d.input.Clipboard()
	if err != nil {
		log.Debug("clipboard read failed", "error", err)
		return false
	}
	return got == text
}

func (d *Desk) GameWindowPresent(ctx context.Context) bool {
	_, ok := d.gameWin.Get(ctx)
	if !ok {
		d.gameWin.Invalidate()
	}
	return ok
}
