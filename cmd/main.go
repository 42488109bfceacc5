// Command xml2mask converts Aperio Image Analysis XML annotation files to
// binary raster masks aligned with the annotated whole-slide image.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"xml2mask/config"
	"xml2mask/contracts"
	"xml2mask/converter"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("xml2mask", flag.ContinueOnError)

	imageArg := fs.String("image", "", "histology image: path to the .svs file, \"auto\" to use the XML base name, or an explicit full-resolution size WxH")
	resolution := fs.String("resolution", "", "pyramid level: auto, high, low, or a level index (auto picks level 0 with --tile, the lowest level otherwise)")
	scaleArg := fs.String("scale", "", "output scale factors sx,sy relative to the selected resolution level")
	targetArg := fs.String("target", "", "exact output shape W,H; overrides --scale")
	tileArg := fs.String("tile", "", "tile window x,y,w,h in the scaled output frame; requires --image")
	outDir := fs.String("out", "", "output directory (created if missing); default: directory of the input file")
	histo := fs.Bool("histo", false, "also save the matching histology crop for visual verification")
	reportPDF := fs.Bool("report", false, "also save a PDF report with mask and histology pages")
	splitLayers := fs.Bool("split-layers", false, "write one mask per annotation layer into AnnotationLayer_NN subdirectories")
	fill := fs.Int("fill", 255, "mask fill value for the ROI, 1-255")
	format := fs.String("format", "", "output raster format: tif, png or webp (default tif)")
	noCSV := fs.Bool("nocsv", false, "do not save vertex data in CSV format")
	noMask := fs.Bool("nomask", false, "do not save the binary ROI mask")
	noPoly := fs.Bool("nopoly", false, "do not save the polygonal selection JSON")
	configPath := fs.String("config", "", "YAML file with default options")
	verbose := fs.Int("verbose", 0, "verbosity level 0-3 (default 1)")

	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: xml2mask [options] <xml_file> [xml_file...]")
		fmt.Fprintln(fs.Output(), "Convert Aperio Image Analysis XML histology annotation files to binary masks.")
		fmt.Fprintln(fs.Output(), "")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fail(err)
	}
	opts := contracts.DefaultOptions()
	cfg.Apply(&opts)
	opts.XMLPaths = fs.Args()

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["image"] {
		if shape, ok := parseShapeArg(*imageArg); ok {
			opts.ImageShape = shape
		} else {
			opts.ImagePath = *imageArg
		}
	}
	if set["resolution"] {
		opts.Resolution = *resolution
	}
	if set["scale"] {
		sx, sy, err := parseScale(*scaleArg)
		if err != nil {
			return fail(err)
		}
		opts.ScaleX, opts.ScaleY = sx, sy
		opts.ScaleSet = true
	}
	if set["target"] {
		vals, err := parseInts(*targetArg, 2, "--target")
		if err != nil {
			return fail(err)
		}
		opts.Target = &contracts.Shape{Width: vals[0], Height: vals[1]}
	}
	if set["tile"] {
		vals, err := parseInts(*tileArg, 4, "--tile")
		if err != nil {
			return fail(err)
		}
		opts.Tile = &contracts.Tile{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
	}
	if set["out"] {
		opts.OutDir = *outDir
	}
	if set["fill"] {
		if *fill < 1 || *fill > 255 {
			return fail(contracts.NewConfigurationError("--fill must be between 1 and 255"))
		}
		opts.FillValue = uint8(*fill)
	}
	if set["format"] {
		opts.Format = contracts.OutputFormat(strings.ToLower(*format))
	}
	if set["verbose"] {
		opts.Verbose = *verbose
	}
	opts.Histo = opts.Histo || *histo
	opts.Report = opts.Report || *reportPDF
	opts.SplitLayers = opts.SplitLayers || *splitLayers
	if *noCSV {
		opts.SaveCSV = false
	}
	if *noMask {
		opts.SaveMask = false
	}
	if *noPoly {
		opts.SavePolygons = false
	}

	if err := converter.ConvertAll(opts); err != nil {
		return fail(err)
	}
	if opts.Verbose > 0 {
		fmt.Println("Task complete. Check the output directory.")
	}
	return 0
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "xml2mask: %v\n", err)
	return 1
}

// parseShapeArg recognizes an explicit WxH (or W,H) image size; anything
// else is treated as a file path.
func parseShapeArg(s string) (*contracts.Shape, bool) {
	sep := "x"
	if strings.Contains(s, ",") {
		sep = ","
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return nil, false
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return nil, false
	}
	return &contracts.Shape{Width: w, Height: h}, true
}

func parseScale(s string) (float64, float64, error) {
	parts := strings.Split(s, ",")
	switch len(parts) {
	case 1:
		// A single factor applies isotropically.
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil || v <= 0 {
			return 0, 0, contracts.NewConfigurationError(fmt.Sprintf("invalid --scale value %q", s))
		}
		return v, v, nil
	case 2:
		sx, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		sy, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil || sx <= 0 || sy <= 0 {
			return 0, 0, contracts.NewConfigurationError(fmt.Sprintf("invalid --scale value %q", s))
		}
		return sx, sy, nil
	}
	return 0, 0, contracts.NewConfigurationError("--scale expects sx,sy")
}

func parseInts(s string, n int, flagName string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, contracts.NewConfigurationError(fmt.Sprintf("%s expects %d comma-separated integers, got %q", flagName, n, s))
	}
	vals := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, contracts.NewConfigurationError(fmt.Sprintf("%s expects integers, got %q", flagName, s))
		}
		vals[i] = v
	}
	return vals, nil
}
