package converter

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"xml2mask/geometry"
)

// histoCrop extracts the slide region matching the output frame and scales
// it to the exact mask dimensions, so mask and crop share one field of view
// pixel for pixel. Frame parts outside the slide (a tile hanging over the
// edge) are padded with white, the background color of histology scans.
func (j *job) histoCrop(f *geometry.Frame) (image.Image, error) {
	dims := j.sl.LevelDims()
	lv := dims[f.Level]
	full := dims[0]

	// Output pixels per level pixel.
	kx := f.ScaleX * float64(full.Width) / float64(lv.Width)
	ky := f.ScaleY * float64(full.Height) / float64(lv.Height)

	// The frame window in level coordinates.
	x0 := f.OffsetX / kx
	y0 := f.OffsetY / ky
	x1 := (f.OffsetX + float64(f.Width)) / kx
	y1 := (f.OffsetY + float64(f.Height)) / ky

	want := image.Rect(
		int(math.Floor(x0)), int(math.Floor(y0)),
		int(math.Ceil(x1)), int(math.Ceil(y1)),
	)
	visible := want.Intersect(image.Rect(0, 0, lv.Width, lv.Height))

	canvas := imaging.New(f.Width, f.Height, color.White)
	if visible.Empty() {
		return canvas, nil
	}

	region, err := j.sl.ReadRegion(f.Level, visible)
	if err != nil {
		return nil, err
	}

	// Project the visible part back into mask coordinates.
	dstX0 := iround(float64(visible.Min.X)*kx - f.OffsetX)
	dstY0 := iround(float64(visible.Min.Y)*ky - f.OffsetY)
	dstX1 := iround(float64(visible.Max.X)*kx - f.OffsetX)
	dstY1 := iround(float64(visible.Max.Y)*ky - f.OffsetY)
	if dstX1 > f.Width {
		dstX1 = f.Width
	}
	if dstY1 > f.Height {
		dstY1 = f.Height
	}
	if dstX1 <= dstX0 || dstY1 <= dstY0 {
		return canvas, nil
	}

	resized := imaging.Resize(region, dstX1-dstX0, dstY1-dstY0, imaging.Lanczos)
	return imaging.Paste(canvas, resized, image.Pt(dstX0, dstY0)), nil
}

func iround(f float64) int {
	return int(math.Round(f))
}
