// Package vision implements scene recognition for launcher and game
// windows: a perceptual-hash template index with a nearest-neighbor
// classifier, and a pixel-correlation template finder for buttons.
package vision

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"

	"github.com/VaynZXC/tanki/internal/trace"
)

// Hash geometry is fixed; queries and templates must agree on it.
const (
	hashWidth  = 16
	hashHeight = 16
)

// reserved subdirectory holding UI-button crops, not scene templates
const templatesDirName = "templates"

// Template is one reference image reduced to its perceptual hash.
type Template struct {
	Hash *goimagehash.ExtImageHash
	Path string
}

type sceneEntry struct {
	name      string
	templates []Template
}

// Index maps scene names to template hashes. Scenes keep their
// insertion order so classification ties break deterministically.
type Index struct {
	scenes []sceneEntry
	total  int
}

// LoadIndex walks the immediate subdirectories of root (sorted), one
// scene per directory, hashing every supported image inside. Decode
// failures are logged and skipped. Scenes with no valid templates are
// omitted. The caller must refuse to run on an empty index.
func LoadIndex(ctx context.Context, root string) (*Index, error) {
	log := trace.Logger(ctx)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	idx := &Index{}
	for _, e := range entries {
		if !e.IsDir() || strings.EqualFold(e.Name(), templatesDirName) {
			continue
		}
		templates := loadSceneDir(ctx, filepath.Join(root, e.Name()))
		if len(templates) == 0 {
			continue
		}
		idx.scenes = append(idx.scenes, sceneEntry{name: e.Name(), templates: templates})
		idx.total += len(templates)
		log.Info("loaded scene templates", "scene", e.Name(), "count", len(templates))
	}
	return idx, nil
}

func loadSceneDir(ctx context.Context, dir string) []Template {
	log := trace.Logger(ctx)

	files, err := os.ReadDir(dir)
	if err != nil {
		log.Debug("skip scene dir", "dir", dir, "error", err)
		return nil
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	var templates []Template
	for _, f := range files {
		if f.IsDir() || !supportedImage(f.Name()) {
			continue
		}
		path := filepath.Join(dir, f.Name())
		img, err := openImage(path)
		if err != nil {
			log.Debug("skip template", "path", path, "error", err)
			continue
		}
		h, err := goimagehash.ExtPerceptionHash(img, hashWidth, hashHeight)
		if err != nil {
			log.Debug("skip template", "path", path, "error", err)
			continue
		}
		templates = append(templates, Template{Hash: h, Path: path})
	}
	return templates
}

func supportedImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".bmp":
		return true
	}
	return false
}

func openImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// Total returns the number of templates across all scenes.
func (idx *Index) Total() int { return idx.total }

// Scenes returns scene names in insertion order.
func (idx *Index) Scenes() []string {
	names := make([]string, 0, len(idx.scenes))
	for _, s := range idx.scenes {
		names = append(names, s.name)
	}
	return names
}

// add registers templates under a scene name, preserving call order.
// Used by tests to build small indexes without a dataset on disk.
func (idx *Index) add(scene string, templates ...Template) {
	if len(templates) == 0 {
		return
	}
	idx.scenes = append(idx.scenes, sceneEntry{name: scene, templates: templates})
	idx.total += len(templates)
}
