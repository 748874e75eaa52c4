package vision

import (
	"context"
	"image"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/VaynZXC/tanki/internal/trace"
)

// Click-ladder defaults. Buttons are probed at descending confidence
// so a themed or rescaled UI still matches before giving up.
var (
	DefaultConfidences = []float64{0.86, 0.82, 0.78}
	DefaultScales      = []float64{1.00, 0.97, 1.03, 0.94}
	ScaledConfidences  = []float64{0.86, 0.82, 0.78, 0.74}
)

const defaultConfidence = 0.86

// minimum template side after rescale, in pixels
const minTemplateSide = 8

// CaptureFunc grabs the current pixels of a screen region.
type CaptureFunc func(region image.Rectangle) (image.Image, error)

// Finder locates UI-element crops inside a window region by normalized
// cross-correlation.
type Finder struct {
	capture      CaptureFunc
	templatesDir string
}

func NewFinder(capture CaptureFunc, templatesDir string) *Finder {
	return &Finder{capture: capture, templatesDir: templatesDir}
}

// LocateOpts tunes a single correlation probe.
type LocateOpts struct {
	Confidence float64
	Grayscale  bool
}

func (o LocateOpts) withDefaults() LocateOpts {
	if o.Confidence <= 0 {
		o.Confidence = defaultConfidence
	}
	return o
}

func (f *Finder) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(f.templatesDir, name)
}

// Locate searches region for the named template. Returns the center of
// the best match in screen coordinates when it clears the confidence.
// Failures are per-tick noise: they are debug-logged and reported as
// not found.
func (f *Finder) Locate(ctx context.Context, region image.Rectangle, name string, opts LocateOpts) (image.Point, bool) {
	opts = opts.withDefaults()
	log := trace.Logger(ctx)

	scene, ok := f.captureMat(ctx, region)
	if !ok {
		return image.Point{}, false
	}
	defer scene.Close()

	templ := gocv.IMRead(f.path(name), gocv.IMReadColor)
	if templ.Empty() {
		log.Debug("template unreadable", "template", name)
		return image.Point{}, false
	}
	defer templ.Close()

	if opts.Grayscale {
		gocv.CvtColor(scene, &scene, gocv.ColorBGRToGray)
		gocv.CvtColor(templ, &templ, gocv.ColorBGRToGray)
	}
	if templ.Cols() >= scene.Cols() || templ.Rows() >= scene.Rows() {
		return image.Point{}, false
	}

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(scene, templ, &result, gocv.TmCcoeffNormed, mask)

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	if float64(maxVal) < opts.Confidence {
		return image.Point{}, false
	}
	center := region.Min.Add(maxLoc).Add(image.Pt(templ.Cols()/2, templ.Rows()/2))
	log.Debug("template located", "template", name, "score", maxVal, "at", center)
	return center, true
}

// LocateAny probes each named template in order and returns the first
// hit. Used for buttons that ship with a cropped variant.
func (f *Finder) LocateAny(ctx context.Context, region image.Rectangle, names []string, opts LocateOpts) (image.Point, bool) {
	for _, name := range names {
		if pt, ok := f.Locate(ctx, region, name, opts); ok {
			return pt, true
		}
	}
	return image.Point{}, false
}

// LocateScaled is the scale-invariant fallback: the template is
// rescaled by each factor, matched in grayscale, and the best score
// across scales is checked against the confidence ladder.
func (f *Finder) LocateScaled(ctx context.Context, region image.Rectangle, name string, scales, confidences []float64) (image.Point, float64, bool) {
	if len(scales) == 0 {
		scales = DefaultScales
	}
	if len(confidences) == 0 {
		confidences = ScaledConfidences
	}
	log := trace.Logger(ctx)

	scene, ok := f.captureMat(ctx, region)
	if !ok {
		return image.Point{}, 0, false
	}
	defer scene.Close()
	gocv.CvtColor(scene, &scene, gocv.ColorBGRToGray)

	orig := gocv.IMRead(f.path(name), gocv.IMReadGrayScale)
	if orig.Empty() {
		log.Debug("template unreadable", "template", name)
		return image.Point{}, 0, false
	}
	defer orig.Close()

	bestVal := -1.0
	var bestLoc image.Point
	var bestSize image.Point

	for _, s := range scales {
		tw := int(float64(orig.Cols())*s + 0.5)
		th := int(float64(orig.Rows())*s + 0.5)
		if tw < minTemplateSide || th < minTemplateSide {
			continue
		}
		if tw >= scene.Cols() || th >= scene.Rows() {
			continue
		}

		templ := gocv.NewMat()
		gocv.Resize(orig, &templ, image.Pt(tw, th), 0, 0, gocv.InterpolationArea)

		result := gocv.NewMat()
		mask := gocv.NewMat()
		gocv.MatchTemplate(scene, templ, &result, gocv.TmCcoeffNormed, mask)
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
		if float64(maxVal) > bestVal {
			bestVal = float64(maxVal)
			bestLoc = maxLoc
			bestSize = image.Pt(tw, th)
		}
		mask.Close()
		result.Close()
		templ.Close()
	}

	if bestVal < 0 {
		return image.Point{}, 0, false
	}
	for _, thr := range confidences {
		if bestVal >= thr {
			center := region.Min.Add(bestLoc).Add(image.Pt(bestSize.X/2, bestSize.Y/2))
			log.Debug("template located (scaled)", "template", name, "score", bestVal, "at", center)
			return center, bestVal, true
		}
	}
	log.Debug("template below thresholds", "template", name, "score", bestVal)
	return image.Point{}, bestVal, false
}

func (f *Finder) captureMat(ctx context.Context, region image.Rectangle) (gocv.Mat, bool) {
	log := trace.Logger(ctx)
	img, err := f.capture(region)
	if err != nil {
		log.Debug("capture failed", "error", err)
		return gocv.Mat{}, false
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		log.Debug("mat conversion failed", "error", err)
		return gocv.Mat{}, false
	}
	// same conversion code both directions, swaps R and B
	gocv.CvtColor(mat, &mat, gocv.ColorBGRToRGB)
	return mat, true
}
