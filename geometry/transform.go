// Package geometry resolves the output coordinate frame of a conversion run
// and maps annotation vertices into it.
//
// The output frame is derived from, in order of precedence: an explicit
// target shape (which overrides any scale factors), scale factors applied to
// the selected pyramid resolution level, or the tight bounding box of the
// annotation selection when no image reference is available. An optional
// tile window crops the scaled frame to a sub-rectangle.
package geometry

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"xml2mask/contracts"
)

// Point is a 2D coordinate, either in the source (full-resolution) frame or
// in the output frame.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis-aligned rectangle with inclusive float bounds.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// Params collects everything the frame resolution depends on.
type Params struct {
	// LevelDims are the pyramid level sizes, highest resolution first.
	// Nil when no slide is referenced.
	LevelDims []contracts.Shape

	// ImageShape is an explicit full-resolution size used instead of a
	// pyramid (single-level).
	ImageShape *contracts.Shape

	Resolution string
	ScaleX     float64
	ScaleY     float64
	Target     *contracts.Shape
	Tile       *contracts.Tile

	// Bounds of the selection in source coordinates; required when
	// neither LevelDims nor ImageShape is set (tight bounding-box mode).
	Bounds *Rect
}

// Frame is the resolved output coordinate frame. Mapping a source point p
// into the frame is (p.X*ScaleX - OffsetX, p.Y*ScaleY - OffsetY); the mask
// covers [0,Width) x [0,Height) of that space.
type Frame struct {
	// FullWidth and FullHeight span the whole scaled frame before any
	// tile crop.
	FullWidth  int
	FullHeight int

	// Width and Height are the final mask dimensions.
	Width  int
	Height int

	ScaleX float64
	ScaleY float64

	OffsetX float64
	OffsetY float64

	// Level is the pyramid level backing the frame, -1 without a slide.
	Level int
}

// Resolve computes the output frame per the documented precedence rules.
func Resolve(p Params) (*Frame, error) {
	if p.LevelDims != nil && len(p.LevelDims) == 0 {
		return nil, contracts.NewInputError("slide reports no resolution levels")
	}

	f := &Frame{Level: -1}
	switch {
	case p.LevelDims != nil:
		if err := resolveFromPyramid(p, f); err != nil {
			return nil, err
		}
	case p.ImageShape != nil:
		resolveFromShape(p, f)
	default:
		if p.Bounds == nil {
			return nil, contracts.NewConfigurationError("no output shape specification given: " +
				"one of --image, --target or --scale is required")
		}
		resolveFromBounds(p, f)
	}

	if f.FullWidth < 1 || f.FullHeight < 1 {
		return nil, contracts.NewConfigurationError(fmt.Sprintf(
			"computed output frame %dx%d is empty; scale factors too small", f.FullWidth, f.FullHeight))
	}

	f.Width = f.FullWidth
	f.Height = f.FullHeight
	if p.Tile != nil {
		if err := applyTile(p.Tile, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func resolveFromPyramid(p Params, f *Frame) error {
	level, err := selectLevel(p.Resolution, len(p.LevelDims), p.Tile != nil)
	if err != nil {
		return err
	}
	f.Level = level

	w0 := float64(p.LevelDims[0].Width)
	h0 := float64(p.LevelDims[0].Height)
	if p.Target != nil {
		// Explicit target shape overrides the scale factors.
		f.ScaleX = float64(p.Target.Width) / w0
		f.ScaleY = float64(p.Target.Height) / h0
		f.FullWidth = p.Target.Width
		f.FullHeight = p.Target.Height
		return nil
	}
	// Scale factors compose with the selected level: identity scale at
	// level L yields exactly the level's native dimensions.
	f.ScaleX = float64(p.LevelDims[level].Width) / w0 * p.ScaleX
	f.ScaleY = float64(p.LevelDims[level].Height) / h0 * p.ScaleY
	f.FullWidth = iround(float64(p.LevelDims[level].Width) * p.ScaleX)
	f.FullHeight = iround(float64(p.LevelDims[level].Height) * p.ScaleY)
	return nil
}

func resolveFromShape(p Params, f *Frame) {
	w0 := float64(p.ImageShape.Width)
	h0 := float64(p.ImageShape.Height)
	if p.Target != nil {
		f.ScaleX = float64(p.Target.Width) / w0
		f.ScaleY = float64(p.Target.Height) / h0
		f.FullWidth = p.Target.Width
		f.FullHeight = p.Target.Height
		return
	}
	f.ScaleX = p.ScaleX
	f.ScaleY = p.ScaleY
	f.FullWidth = iround(w0 * p.ScaleX)
	f.FullHeight = iround(h0 * p.ScaleY)
}

// resolveFromBounds confines the mask to the selection's bounding box, the
// behavior of runs without any image reference.
func resolveFromBounds(p Params, f *Frame) {
	b := p.Bounds
	if p.Target != nil {
		f.ScaleX = float64(p.Target.Width) / (b.MaxX - b.MinX + 1)
		f.ScaleY = float64(p.Target.Height) / (b.MaxY - b.MinY + 1)
		f.OffsetX = math.Round(b.MinX * f.ScaleX)
		f.OffsetY = math.Round(b.MinY * f.ScaleY)
		f.FullWidth = p.Target.Width
		f.FullHeight = p.Target.Height
		return
	}
	f.ScaleX = p.ScaleX
	f.ScaleY = p.ScaleY
	xmin := math.Round(b.MinX * f.ScaleX)
	ymin := math.Round(b.MinY * f.ScaleY)
	xmax := math.Round(b.MaxX * f.ScaleX)
	ymax := math.Round(b.MaxY * f.ScaleY)
	f.OffsetX = xmin
	f.OffsetY = ymin
	f.FullWidth = int(xmax-xmin) + 1
	f.FullHeight = int(ymax-ymin) + 1
}

// applyTile crops the frame to the tile window. Partial overlap is allowed
// (the mask keeps the exact tile shape, padded with background); a tile with
// no overlap at all is a GeometryError.
func applyTile(t *contracts.Tile, f *Frame) error {
	if t.X+t.Width <= 0 || t.Y+t.Height <= 0 || t.X >= f.FullWidth || t.Y >= f.FullHeight {
		return contracts.NewGeometryError(fmt.Sprintf(
			"tile (%d,%d %dx%d) lies entirely outside the %dx%d output frame",
			t.X, t.Y, t.Width, t.Height, f.FullWidth, f.FullHeight))
	}
	f.OffsetX += float64(t.X)
	f.OffsetY += float64(t.Y)
	f.Width = t.Width
	f.Height = t.Height
	return nil
}

// selectLevel resolves the --resolution value. Auto picks the full
// resolution when a tile is requested (tiles address small windows of the
// scaled frame) and the lowest resolution otherwise.
func selectLevel(resolution string, levels int, hasTile bool) (int, error) {
	switch resolution {
	case "", contracts.ResolutionAuto:
		if hasTile {
			return 0, nil
		}
		return levels - 1, nil
	case contracts.ResolutionHigh:
		return 0, nil
	case contracts.ResolutionLow:
		return levels - 1, nil
	}
	n, err := strconv.Atoi(resolution)
	if err != nil {
		return 0, contracts.NewConfigurationError(fmt.Sprintf(
			"invalid --resolution value %q: expected auto, high, low or a level index", resolution))
	}
	if n < 0 || n >= levels {
		return 0, contracts.NewConfigurationError(fmt.Sprintf(
			"resolution level %d out of range: slide has %d levels", n, levels))
	}
	return n, nil
}

// MapPoints transforms source-frame points into the output frame.
func (f *Frame) MapPoints(pts []Point) []Point {
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.X
		ys[i] = p.Y
	}
	floats.Scale(f.ScaleX, xs)
	floats.AddConst(-f.OffsetX, xs)
	floats.Scale(f.ScaleY, ys)
	floats.AddConst(-f.OffsetY, ys)
	out := make([]Point, len(pts))
	for i := range out {
		out[i] = Point{X: xs[i], Y: ys[i]}
	}
	return out
}

// BoundsOf returns the joint bounding box of the given polygons in their own
// coordinate frame.
func BoundsOf(polys [][]Point) (Rect, bool) {
	var xs, ys []float64
	for _, poly := range polys {
		for _, p := range poly {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	if len(xs) == 0 {
		return Rect{}, false
	}
	return Rect{
		MinX: floats.Min(xs),
		MinY: floats.Min(ys),
		MaxX: floats.Max(xs),
		MaxY: floats.Max(ys),
	}, true
}

// Area computes the enclosed area of a polygon by the shoelace formula.
func Area(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	xs := make([]float64, n)
	dy := make([]float64, n)
	for i, p := range pts {
		xs[i] = p.X
	}
	for i := range pts {
		next := pts[(i+1)%n].Y
		prev := pts[(i-1+n)%n].Y
		dy[i] = next - prev
	}
	return math.Abs(floats.Dot(xs, dy)) / 2
}

func iround(f float64) int {
	return int(math.Round(f))
}
