// Package rasterizer fills transformed annotation polygons into an 8-bit
// mask raster.
//
// Positive regions are rasterized first and union naturally (any covered
// pixel is foreground); negative regions (Aperio NegativeROA) are rasterized
// afterwards with the background value, which is equivalent to subtracting
// them from the union. Coordinates outside the mask clip silently.
package rasterizer

import (
	"image"
	"math"
	"sort"

	"xml2mask/geometry"
)

// Polygon is one closed region in output-frame coordinates.
type Polygon struct {
	Points   []geometry.Point
	Negative bool
}

// Render rasterizes the polygons into a fresh width x height mask with the
// given foreground value. The mask starts zero-filled; rendering order
// (positives, then negatives) makes the result independent of region order
// within each class.
func Render(width, height int, polys []Polygon, fill uint8) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	for _, p := range polys {
		if !p.Negative {
			fillPolygon(mask, p.Points, fill)
		}
	}
	for _, p := range polys {
		if p.Negative {
			fillPolygon(mask, p.Points, 0)
		}
	}
	return mask
}

// fillPolygon is an even-odd scanline fill. A pixel belongs to the polygon
// when its centre (x+0.5, y+0.5) lies inside; this makes an axis-aligned
// square with corners (a,a)-(b,b) cover exactly (b-a)^2 pixels.
func fillPolygon(mask *image.Gray, pts []geometry.Point, value uint8) {
	if len(pts) < 3 {
		return
	}
	b := mask.Bounds()

	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	yLo := int(math.Floor(minY))
	yHi := int(math.Ceil(maxY))
	if yLo < b.Min.Y {
		yLo = b.Min.Y
	}
	if yHi > b.Max.Y-1 {
		yHi = b.Max.Y - 1
	}

	var xs []float64
	for y := yLo; y <= yHi; y++ {
		cy := float64(y) + 0.5
		xs = crossings(pts, cy, xs[:0])
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			fillSpan(mask, y, xs[i], xs[i+1], value)
		}
	}
}

// crossings collects the x positions where polygon edges cross the
// horizontal line y=cy. The half-open comparison makes vertices count once.
func crossings(pts []geometry.Point, cy float64, xs []float64) []float64 {
	n := len(pts)
	for i := 0; i < n; i++ {
		p1 := pts[i]
		p2 := pts[(i+1)%n]
		if (p1.Y <= cy) == (p2.Y <= cy) {
			continue
		}
		t := (cy - p1.Y) / (p2.Y - p1.Y)
		xs = append(xs, p1.X+t*(p2.X-p1.X))
	}
	return xs
}

// fillSpan sets pixels whose centres fall in [x0, x1) on row y.
func fillSpan(mask *image.Gray, y int, x0, x1 float64, value uint8) {
	b := mask.Bounds()
	lo := int(math.Ceil(x0 - 0.5))
	hi := int(math.Ceil(x1-0.5)) - 1
	if lo < b.Min.X {
		lo = b.Min.X
	}
	if hi > b.Max.X-1 {
		hi = b.Max.X - 1
	}
	if hi < lo {
		return
	}
	row := mask.Pix[(y-b.Min.Y)*mask.Stride:]
	for x := lo; x <= hi; x++ {
		row[x-b.Min.X] = value
	}
}

// ForegroundCount returns the number of non-background pixels, used for the
// run summary and sanity checks.
func ForegroundCount(mask *image.Gray) int {
	n := 0
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[(y-b.Min.Y)*mask.Stride : (y-b.Min.Y)*mask.Stride+b.Dx()]
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
	}
	return n
}
