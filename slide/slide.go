// Package slide reads whole-slide histology images in Aperio SVS format.
//
// An SVS file is a (Big)TIFF whose directories hold the resolution pyramid:
// the first directory is the full-resolution image, further tiled
// directories are progressively downsampled levels, and striped directories
// carry associated images (thumbnail, label, macro) that are not part of the
// pyramid. Level metadata is read directly from the directory headers
// without decoding pixel data; pixel access goes through ReadRegion, whose
// implementation is selected at build time (pure Go by default, libvips with
// the vips build tag).
package slide

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"xml2mask/contracts"
)

// Level is one pyramid resolution level, highest resolution first.
type Level struct {
	Width  int
	Height int

	// page is the TIFF directory index backing this level.
	page int
}

// Slide is an open whole-slide image. It holds metadata only; pixel reads
// open the file on demand.
type Slide struct {
	Path        string
	Levels      []Level
	Description string
}

// Open validates the slide path and reads the pyramid metadata. The file
// must exist and carry the .svs extension.
func Open(path string) (*Slide, error) {
	if strings.ToLower(filepath.Ext(path)) != ".svs" {
		return nil, contracts.NewInputError(fmt.Sprintf("slide %s lacks the .svs extension", path))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, contracts.NewInputError(fmt.Sprintf("cannot open slide %s: %v", path, err))
	}
	defer f.Close()

	dirs, err := readDirectories(f)
	if err != nil {
		return nil, contracts.NewInputError(fmt.Sprintf("cannot read slide %s: %v", path, err))
	}

	s := &Slide{Path: path}
	for i, d := range dirs {
		// Directory 0 is always the baseline image; later directories
		// belong to the pyramid only when tiled.
		if i > 0 && !d.tiled {
			continue
		}
		if d.width <= 0 || d.height <= 0 {
			continue
		}
		s.Levels = append(s.Levels, Level{Width: d.width, Height: d.height, page: i})
		if i == 0 {
			s.Description = d.description
		}
	}
	if len(s.Levels) == 0 {
		return nil, contracts.NewInputError(fmt.Sprintf("slide %s contains no image directories", path))
	}
	return s, nil
}

// Dimensions returns the full-resolution image size.
func (s *Slide) Dimensions() contracts.Shape {
	return contracts.Shape{Width: s.Levels[0].Width, Height: s.Levels[0].Height}
}

// LevelDims returns the per-level sizes, highest resolution first.
func (s *Slide) LevelDims() []contracts.Shape {
	dims := make([]contracts.Shape, len(s.Levels))
	for i, l := range s.Levels {
		dims[i] = contracts.Shape{Width: l.Width, Height: l.Height}
	}
	return dims
}

// MPP extracts the microns-per-pixel resolution from the Aperio image
// description, e.g. "... |AppMag = 20|MPP = 0.4990|...".
func (s *Slide) MPP() (float64, bool) {
	for _, field := range strings.Split(s.Description, "|") {
		k, v, ok := strings.Cut(field, "=")
		if !ok || strings.TrimSpace(k) != "MPP" {
			continue
		}
		mpp, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil && mpp > 0 {
			return mpp, true
		}
	}
	return 0, false
}
