// Package screen captures screen regions for classification and the
// live status view.
package screen

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/kbinani/screenshot"
	"github.com/nfnt/resize"
)

const thumbnailWidth = 320

// Grabber captures pixels from the desktop.
type Grabber interface {
	Capture(region image.Rectangle) (image.Image, error)
}

// Desktop grabs from the primary display.
type Desktop struct{}

func NewDesktop() *Desktop { return &Desktop{} }

func (d *Desktop) Capture(region image.Rectangle) (image.Image, error) {
	return screenshot.CaptureRect(region)
}

// CaptureDisplay grabs the whole primary display.
func (d *Desktop) CaptureDisplay() (image.Image, error) {
	return screenshot.CaptureRect(screenshot.GetDisplayBounds(0))
}

// Thumbnail downscales img to the status-view width and encodes JPEG.
func Thumbnail(img image.Image) ([]byte, error) {
	small := resize.Resize(thumbnailWidth, 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
