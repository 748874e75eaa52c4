package screen

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func TestThumbnail(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	for y := 0; y < 720; y += 8 {
		for x := 0; x < 1280; x += 8 {
			img.Set(x, y, color.RGBA{uint8(x % 256), uint8(y % 256), 0, 255})
		}
	}

	data, err := Thumbnail(img)
	if err != nil {
		t.Fatalf("Thumbnail error = %v", err)
	}

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	b := decoded.Bounds()
	if b.Dx() != 320 {
		t.Errorf("thumbnail width = %d, want 320", b.Dx())
	}
	if b.Dy() != 180 {
		t.Errorf("thumbnail height = %d, want 180 (aspect preserved)", b.Dy())
	}
}
