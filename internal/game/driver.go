package game

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/VaynZXC/tanki/internal/screen"
	"github.com/VaynZXC/tanki/internal/trace"
	"github.com/VaynZXC/tanki/internal/vision"
	"github.com/VaynZXC/tanki/internal/winio"
)

const (
	scrollTopBursts  = 40
	scrollTopAmount  = 600
	scrollStepAmount = 200
	scrollStepDelay  = 15 * time.Millisecond
	clickRetryDelay  = 60 * time.Millisecond

	// anchor sits left of center, three quarters down, inside the
	// tank list so scroll events land on it
	anchorInsetX    = 20
	anchorOffsetX   = 200
	anchorFractionY = 0.75

	croppedSuffix  = "_obrez"
	selectedSuffix = "_v"
)

// Driver implements Screen and Actor against the live game window.
type Driver struct {
	win        *winio.Cache
	input      winio.Input
	grabber    screen.Grabber
	finder     *vision.Finder
	classifier *vision.Classifier
}

func NewDriver(win *winio.Cache, input winio.Input, grabber screen.Grabber, finder *vision.Finder, classifier *vision.Classifier) *Driver {
	return &Driver{
		win:        win,
		input:      input,
		grabber:    grabber,
		finder:     finder,
		classifier: classifier,
	}
}

func (d *Driver) rect(ctx context.Context) (image.Rectangle, bool) {
	w, ok := d.win.Get(ctx)
	if !ok {
		return image.Rectangle{}, false
	}
	return w.Rect()
}

// Scene captures the window and classifies it.
func (d *Driver) Scene(ctx context.Context) (*vision.Match, bool) {
	log := trace.Logger(ctx)
	r, ok := d.rect(ctx)
	if !ok {
		log.Debug("game window not available")
		return nil, false
	}
	img, err := d.grabber.Capture(r)
	if err != nil {
		log.Debug("capture failed", "error", err)
		return nil, false
	}
	m, err := d.classifier.Classify(img)
	if err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func (d *Driver) PressKey(ctx context.Context, k Key) {
	switch k {
	case KeyEnter:
		d.input.KeyTap("enter")
	case KeyEscape:
		d.input.KeyTap("esc")
	case KeySpace:
		d.input.KeyTap("space")
	}
}

// ladderLocate probes a button template at descending strictness:
// strict color, relaxed grayscale, then the scale-invariant sweep.
func (d *Driver) ladderLocate(ctx context.Context, region image.Rectangle, name string) (image.Point, bool) {
	if pt, ok := d.finder.Locate(ctx, region, name, vision.LocateOpts{Confidence: 0.86}); ok {
		return pt, true
	}
	if pt, ok := d.finder.Locate(ctx, region, name, vision.LocateOpts{Confidence: 0.82, Grayscale: true}); ok {
		return pt, true
	}
	if pt, ok := d.finder.Locate(ctx, region, name, vision.LocateOpts{Confidence: 0.78, Grayscale: true}); ok {
		return pt, true
	}
	if pt, _, ok := d.finder.LocateScaled(ctx, region, name, nil, nil); ok {
		return pt, true
	}
	return image.Point{}, false
}

// ClickTemplate hammers the button until it is found and clicked or
// the window closes. Two clicks in quick succession defeat the UI
// swallowing the first one during animations.
func (d *Driver) ClickTemplate(ctx context.Context, name string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		r, ok := d.rect(ctx)
		if !ok {
			return false
		}
		if pt, ok := d.ladderLocate(ctx, r, name); ok {
			d.input.Click(pt.X, pt.Y)
			d.input.Sleep(clickRetryDelay)
			d.input.Click(pt.X, pt.Y)
			return true
		}
		d.input.Sleep(clickRetryDelay)
	}
	return false
}

// ClickReward clicks the claim button. It sits over a video background
// so the thresholds run lower than the ordinary ladder.
func (d *Driver) ClickReward(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		r, ok := d.rect(ctx)
		if !ok {
			return false
		}
		if pt, ok := d.rewardLocate(ctx, r); ok {
			d.input.Click(pt.X, pt.Y)
			d.input.Sleep(clickRetryDelay)
			d.input.Click(pt.X, pt.Y)
			return true
		}
		d.input.Sleep(clickRetryDelay)
	}
	return false
}

func (d *Driver) rewardLocate(ctx context.Context, region image.Rectangle) (image.Point, bool) {
	if pt, ok := d.finder.Locate(ctx, region, tmplClaimReward, vision.LocateOpts{Confidence: 0.83}); ok {
		return pt, true
	}
	if pt, ok := d.finder.Locate(ctx, region, tmplClaimReward, vision.LocateOpts{Confidence: 0.78, Grayscale: true}); ok {
		return pt, true
	}
	if pt, _, ok := d.finder.LocateScaled(ctx, region, tmplClaimReward, nil, []float64{0.78, 0.74, 0.70}); ok {
		return pt, true
	}
	return image.Point{}, false
}

// LocateIcon finds a reward icon in the tank list. Each icon ships
// with a cropped variant for when the full crop is occluded.
func (d *Driver) LocateIcon(ctx context.Context, id string) (image.Point, bool) {
	r, ok := d.rect(ctx)
	if !ok {
		return image.Point{}, false
	}
	for _, name := range []string{iconTemplate(id), iconTemplate(id + croppedSuffix)} {
		if pt, ok := d.finder.Locate(ctx, r, name, vision.LocateOpts{Confidence: 0.86}); ok {
			return pt, true
		}
		if pt, ok := d.finder.Locate(ctx, r, name, vision.LocateOpts{Confidence: 0.82, Grayscale: true}); ok {
			return pt, true
		}
	}
	return image.Point{}, false
}

// IconSelected reports whether the selected-state marker for the
// reward is on screen.
func (d *Driver) IconSelected(ctx context.Context, id string) bool {
	r, ok := d.rect(ctx)
	if !ok {
		return false
	}
	_, ok = d.finder.Locate(ctx, r, iconTemplate(id+selectedSuffix), vision.LocateOpts{Confidence: 0.80, Grayscale: true})
	return ok
}

func iconTemplate(id string) string {
	if strings.Contains(id, ".") {
		return id
	}
	return id + ".png"
}

func (d *Driver) DoubleClickAt(ctx context.Context, pt image.Point) {
	d.input.DoubleClick(pt.X, pt.Y)
}

func (d *Driver) anchor(r image.Rectangle) image.Point {
	cx := (r.Min.X + r.Max.X) / 2
	x := cx - anchorOffsetX
	if min := r.Min.X + anchorInsetX; x < min {
		x = min
	}
	y := r.Min.Y + int(float64(r.Dy())*anchorFractionY)
	return image.Pt(x, y)
}

func (d *Driver) MoveToAnchor(ctx context.Context) {
	if r, ok := d.rect(ctx); ok {
		pt := d.anchor(r)
		d.input.Move(pt.X, pt.Y)
	}
}

func (d *Driver) MoveToCenter(ctx context.Context) {
	if r, ok := d.rect(ctx); ok {
		d.input.Move((r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2)
	}
}

// ScrollToTop overshoots upward so the list always starts from a known
// position before counted steps are replayed.
func (d *Driver) ScrollToTop(ctx context.Context) {
	d.MoveToAnchor(ctx)
	for i := 0; i < scrollTopBursts; i++ {
		d.input.Scroll(scrollTopAmount)
		d.input.Sleep(10 * time.Millisecond)
	}
	d.input.Sleep(300 * time.Millisecond)
}

func (d *Driver) ScrollDown(ctx context.Context, steps int) {
	for i := 0; i < steps; i++ {
		d.input.Scroll(-scrollStepAmount)
		d.input.Sleep(scrollStepDelay)
	}
}

func (d *Driver) CloseGame(ctx context.Context) {
	if w, ok := d.win.Get(ctx); ok {
		w.Close(ctx)
	}
	d.win.Invalidate()
}
