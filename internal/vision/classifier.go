package vision

import (
	"image"

	"github.com/corona10/goimagehash"
)

// Match is the nearest scene for a query image. Distance is the
// Hamming distance to the winning template; the caller decides how
// much to trust it, there is no cutoff here.
type Match struct {
	Scene        string
	Distance     int
	TemplatePath string
}

// Classifier resolves captured frames to known scenes against an Index.
type Classifier struct {
	idx *Index
}

func NewClassifier(idx *Index) *Classifier {
	return &Classifier{idx: idx}
}

// Classify hashes img and returns the nearest scene, or nil when the
// index is empty. For equal distances the earlier-loaded template wins.
func (c *Classifier) Classify(img image.Image) (*Match, error) {
	if c.idx.total == 0 {
		return nil, nil
	}
	h, err := goimagehash.ExtPerceptionHash(img, hashWidth, hashHeight)
	if err != nil {
		return nil, err
	}
	return c.ClassifyHash(h), nil
}

// ClassifyHash performs the linear nearest-neighbor scan for a
// precomputed hash.
func (c *Classifier) ClassifyHash(h *goimagehash.ExtImageHash) *Match {
	var best *Match
	for _, scene := range c.idx.scenes {
		for _, t := range scene.templates {
			d, err := h.Distance(t.Hash)
			if err != nil {
				continue
			}
			if best == nil || d < best.Distance {
				best = &Match{Scene: scene.name, Distance: d, TemplatePath: t.Path}
			}
		}
	}
	return best
}
