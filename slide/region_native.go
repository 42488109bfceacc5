//go:build !vips

package slide

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	"xml2mask/contracts"
)

// ReadRegion decodes the rectangle r, given in coordinates of the requested
// level, and returns it as an image.
//
// The pure-Go reader decodes the baseline directory with x/image/tiff and
// derives lower levels by resampling. It covers deflate/LZW/uncompressed
// slides, which is sufficient for exported and test images; build with the
// vips tag to decode JPEG-compressed clinical slides through libvips.
func (s *Slide) ReadRegion(level int, r image.Rectangle) (image.Image, error) {
	if level < 0 || level >= len(s.Levels) {
		return nil, contracts.NewInputError(fmt.Sprintf("slide has no level %d", level))
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, contracts.NewInputError(fmt.Sprintf("cannot open slide %s: %v", s.Path, err))
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, contracts.NewInputError(fmt.Sprintf("cannot decode slide %s: %v", s.Path, err))
	}

	lv := s.Levels[level]
	if img.Bounds().Dx() != lv.Width || img.Bounds().Dy() != lv.Height {
		img = imaging.Resize(img, lv.Width, lv.Height, imaging.Box)
	}

	r = r.Intersect(image.Rect(0, 0, lv.Width, lv.Height))
	if r.Empty() {
		return nil, contracts.NewGeometryError("requested region lies outside the slide")
	}
	return imaging.Crop(img, r), nil
}
