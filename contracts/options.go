package contracts

// Shape is a raster size in pixels.
type Shape struct {
	Width  int
	Height int
}

// Tile is a rectangular window in the scaled output frame.
type Tile struct {
	X      int
	Y      int
	Width  int
	Height int
}

// OutputFormat selects the encoding of the mask and histology files.
type OutputFormat string

const (
	FormatTIFF OutputFormat = "tif"
	FormatPNG  OutputFormat = "png"
	FormatWebP OutputFormat = "webp"
)

// Resolution selection keywords. An explicit pyramid level index is also
// accepted.
const (
	ResolutionAuto = "auto"
	ResolutionHigh = "high"
	ResolutionLow  = "low"
)

// Options is the closed configuration of a single conversion run. One of
// ImagePath, ImageShape, Target or Scale must determine the output frame;
// Validate reports a ConfigurationError otherwise.
type Options struct {
	XMLPaths []string

	// ImagePath is the histology image path, or "auto" to derive it from
	// the XML path by swapping the extension for .svs.
	ImagePath string

	// ImageShape is an explicit full-resolution image size, used instead
	// of opening a slide.
	ImageShape *Shape

	// Resolution selects the pyramid level: "auto", "high", "low", or a
	// level index in decimal.
	Resolution string

	// ScaleX and ScaleY apply relative to the selected resolution level.
	// ScaleSet records whether the user asked for scaling explicitly;
	// the implicit identity scale does not count as an output shape
	// specification on its own.
	ScaleX   float64
	ScaleY   float64
	ScaleSet bool

	// Target fixes the output shape exactly; it overrides Scale.
	Target *Shape

	Tile *Tile

	OutDir string

	Histo       bool
	Report      bool
	SplitLayers bool

	FillValue uint8
	Format    OutputFormat

	SaveCSV      bool
	SaveMask     bool
	SavePolygons bool

	Verbose int
}

// DefaultOptions mirrors the historical tool defaults: identity scale,
// automatic resolution, fill value 255, 8-bit TIFF masks, all side outputs
// enabled.
func DefaultOptions() Options {
	return Options{
		Resolution:   ResolutionAuto,
		ScaleX:       1,
		ScaleY:       1,
		FillValue:    255,
		Format:       FormatTIFF,
		SaveCSV:      true,
		SaveMask:     true,
		SavePolygons: true,
	}
}

// HasImage reports whether the run references a slide or an explicit image
// shape.
func (o *Options) HasImage() bool {
	return o.ImagePath != "" || o.ImageShape != nil
}

// Validate checks option combinations that cannot be judged per-flag.
func (o *Options) Validate() error {
	if len(o.XMLPaths) == 0 {
		return NewInputError("no XML annotation file given")
	}
	if !o.HasImage() && o.Target == nil && !o.ScaleSet {
		return NewConfigurationError("no output shape specification given: " +
			"one of --image, --target or --scale is required")
	}
	if o.ScaleX <= 0 || o.ScaleY <= 0 {
		return NewConfigurationError("scale factors must be positive")
	}
	if o.Target != nil && (o.Target.Width <= 0 || o.Target.Height <= 0) {
		return NewConfigurationError("target shape must be positive")
	}
	if o.Tile != nil {
		if !o.HasImage() {
			return NewConfigurationError("the --image option must be specified if the --tile option is used")
		}
		if o.Tile.Width <= 0 || o.Tile.Height <= 0 {
			return NewConfigurationError("tile width and height must be positive")
		}
	}
	switch o.Format {
	case FormatTIFF, FormatPNG, FormatWebP:
	default:
		return NewConfigurationError("unknown output format " + string(o.Format))
	}
	return nil
}
