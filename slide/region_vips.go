//go:build vips

package slide

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"xml2mask/contracts"
)

var vipsStartup sync.Once

// ReadRegion decodes the rectangle r, given in coordinates of the requested
// level, through libvips. Each pyramid level is loaded as its TIFF page, so
// JPEG/JPEG2000-compressed clinical slides decode without reading the whole
// baseline image.
func (s *Slide) ReadRegion(level int, r image.Rectangle) (image.Image, error) {
	if level < 0 || level >= len(s.Levels) {
		return nil, contracts.NewInputError(fmt.Sprintf("slide has no level %d", level))
	}
	vipsStartup.Do(func() {
		vips.Startup(nil)
	})

	lv := s.Levels[level]
	params := vips.NewImportParams()
	params.Page.Set(lv.page)

	ref, err := vips.LoadImageFromFile(s.Path, params)
	if err != nil {
		return nil, contracts.NewInputError(fmt.Sprintf("cannot decode slide %s: %v", s.Path, err))
	}
	defer ref.Close()

	r = r.Intersect(image.Rect(0, 0, ref.Width(), ref.Height()))
	if r.Empty() {
		return nil, contracts.NewGeometryError("requested region lies outside the slide")
	}
	if err := ref.ExtractArea(r.Min.X, r.Min.Y, r.Dx(), r.Dy()); err != nil {
		return nil, fmt.Errorf("cannot extract %v from %s: %w", r, s.Path, err)
	}

	buf, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("cannot export region from %s: %w", s.Path, err)
	}
	return png.Decode(bytes.NewReader(buf))
}
