// Package converter runs the annotation-to-mask pipeline: parse the XML,
// resolve the output frame, rasterize the selection and write the output
// set. A run either writes its complete output set or fails without leaving
// a mask behind.
package converter

import (
	"errors"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"xml2mask/annotation"
	"xml2mask/contracts"
	"xml2mask/geometry"
	"xml2mask/mask_writer"
	"xml2mask/rasterizer"
	"xml2mask/report"
	"xml2mask/slide"
)

// ConvertAll processes every XML file in the option set. Multiple files are
// converted concurrently, bounded by the CPU count; each file is still an
// independent single-pass conversion.
func ConvertAll(opts contracts.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if opts.OutDir != "" {
		if err := mask_writer.EnsureOutDir(opts.OutDir); err != nil {
			return err
		}
	}

	if len(opts.XMLPaths) == 1 {
		return Convert(opts, opts.XMLPaths[0])
	}

	maxWorkers := runtime.NumCPU() - 1
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	sem := make(chan struct{}, maxWorkers)

	var wg sync.WaitGroup
	errs := make([]error, len(opts.XMLPaths))
	for i, path := range opts.XMLPaths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := Convert(opts, path); err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
			}
		}(i, path)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Convert runs the pipeline for one XML file.
func Convert(opts contracts.Options, xmlPath string) error {
	j := &job{opts: opts, xmlPath: xmlPath}

	outdir := opts.OutDir
	if outdir == "" {
		outdir = filepath.Dir(xmlPath)
	}
	base := strings.TrimSuffix(filepath.Base(xmlPath), filepath.Ext(xmlPath))

	if opts.ImagePath != "" {
		imgPath := opts.ImagePath
		if strings.EqualFold(imgPath, "auto") {
			imgPath = strings.TrimSuffix(xmlPath, filepath.Ext(xmlPath)) + ".svs"
		}
		sl, err := slide.Open(imgPath)
		if err != nil {
			return err
		}
		j.sl = sl
		j.logf(2, "slide %s: %d levels, %dx%d at level 0",
			imgPath, len(sl.Levels), sl.Dimensions().Width, sl.Dimensions().Height)
		if mpp, ok := sl.MPP(); ok {
			j.mpp = mpp
		} else if mppX, _, err := slide.ResolutionMPP(imgPath); err == nil {
			j.mpp = mppX
		}
	}

	doc, err := annotation.Parse(xmlPath)
	if err != nil {
		return err
	}
	j.doc = doc
	for _, w := range doc.Warnings {
		j.logf(1, "%s: %s", xmlPath, w)
	}
	if j.mpp == 0 {
		j.mpp = doc.MicronsPerPixel
	}
	j.logf(2, "%s: %d annotation layer(s), %d polygon(s), %.4f um/px",
		xmlPath, len(doc.Layers), len(doc.Polygons(-1)), j.mpp)

	// Rasterize everything before writing anything, so a geometry failure
	// in one layer leaves no partial output set behind.
	var sets []*maskSet
	if opts.SplitLayers {
		for _, layer := range doc.Layers {
			if len(layer.Regions) == 0 {
				continue
			}
			set, err := j.buildSet(layer.Regions)
			if err != nil {
				return fmt.Errorf("annotation layer %d: %w", layer.Index, err)
			}
			if set == nil {
				j.logf(1, "annotation layer %d has no polygonal selection, skipping", layer.Index)
				continue
			}
			set.layer = layer.Index
			sets = append(sets, set)
		}
		if len(sets) == 0 {
			return contracts.NewParseError(fmt.Sprintf("%s contains no positive region in any layer", xmlPath), nil)
		}
	} else {
		set, err := j.buildSet(doc.Polygons(-1))
		if err != nil {
			return err
		}
		if set == nil {
			return contracts.NewParseError(fmt.Sprintf("%s contains no positive (non-NegativeROA) region", xmlPath), nil)
		}
		set.layer = -1
		sets = append(sets, set)
	}

	if opts.SaveCSV {
		if err := annotation.WriteTables(doc, filepath.Join(outdir, base)); err != nil {
			return err
		}
	}
	for _, set := range sets {
		if err := j.writeSet(set, outdir, base); err != nil {
			return err
		}
	}
	return nil
}

type job struct {
	opts    contracts.Options
	xmlPath string
	doc     *annotation.Document
	sl      *slide.Slide
	mpp     float64
}

// maskSet is one rasterized selection plus everything needed to write its
// output files.
type maskSet struct {
	layer   int // -1 for the combined mask
	regions []annotation.Region
	frame   *geometry.Frame
	mask    *image.Gray
	histo   image.Image
}

// buildSet resolves the frame and rasterizes one region set. It returns
// (nil, nil) when the set has no positive region.
func (j *job) buildSet(regions []annotation.Region) (*maskSet, error) {
	var polys []rasterizer.Polygon
	var positives [][]geometry.Point
	for _, r := range regions {
		pts := make([]geometry.Point, len(r.Vertices))
		for i, v := range r.Vertices {
			pts[i] = geometry.Point{X: v.X, Y: v.Y}
		}
		if geometry.Area(pts) == 0 {
			j.logf(1, "region %s is degenerate (zero area), skipping", r.ID)
			continue
		}
		polys = append(polys, rasterizer.Polygon{Points: pts, Negative: r.NegativeROA})
		if !r.NegativeROA {
			positives = append(positives, pts)
		}
	}
	if len(positives) == 0 {
		return nil, nil
	}

	params := geometry.Params{
		ImageShape: j.opts.ImageShape,
		Resolution: j.opts.Resolution,
		ScaleX:     j.opts.ScaleX,
		ScaleY:     j.opts.ScaleY,
		Target:     j.opts.Target,
		Tile:       j.opts.Tile,
	}
	if j.sl != nil {
		params.LevelDims = j.sl.LevelDims()
	}
	if params.LevelDims == nil && params.ImageShape == nil {
		if b, ok := geometry.BoundsOf(positives); ok {
			params.Bounds = &b
		}
	}

	frame, err := geometry.Resolve(params)
	if err != nil {
		return nil, err
	}
	j.logf(2, "output frame %dx%d (full %dx%d), scale %.6gx%.6g, level %d",
		frame.Width, frame.Height, frame.FullWidth, frame.FullHeight,
		frame.ScaleX, frame.ScaleY, frame.Level)

	for i := range polys {
		polys[i].Points = frame.MapPoints(polys[i].Points)
	}
	mask := rasterizer.Render(frame.Width, frame.Height, polys, j.opts.FillValue)

	set := &maskSet{regions: regions, frame: frame, mask: mask}
	if (j.opts.Histo || j.opts.Report) && j.sl != nil {
		histo, err := j.histoCrop(frame)
		if err != nil {
			return nil, err
		}
		set.histo = histo
	}
	return set, nil
}

// writeSet writes the output files of one mask set. In split-layers mode
// each set lands in its own AnnotationLayer_NN subdirectory.
func (j *job) writeSet(set *maskSet, outdir, base string) error {
	dir := outdir
	if set.layer >= 0 {
		var err error
		dir, err = mask_writer.LayerDir(outdir, set.layer)
		if err != nil {
			return err
		}
	}
	outbase := filepath.Join(dir, base)
	ext := mask_writer.Ext(j.opts.Format)

	summary := &mask_writer.Summary{
		XMLFile:          j.xmlPath,
		Width:            set.frame.Width,
		Height:           set.frame.Height,
		ForegroundPixels: rasterizer.ForegroundCount(set.mask),
		FillValue:        j.opts.FillValue,
		ScaleX:           set.frame.ScaleX,
		ScaleY:           set.frame.ScaleY,
		Level:            set.frame.Level,
		MicronsPerPixel:  j.mpp,
	}

	if j.opts.SaveMask {
		summary.MaskFile = outbase + "_mask" + ext
		if err := mask_writer.WriteMask(set.mask, summary.MaskFile, j.opts.Format); err != nil {
			return err
		}
		j.logf(1, "wrote %s (%dx%d, %d foreground px)",
			summary.MaskFile, set.frame.Width, set.frame.Height, summary.ForegroundPixels)
	}
	if j.opts.Histo && set.histo != nil {
		summary.HistoFile = outbase + "_histo" + ext
		if err := mask_writer.WriteHisto(set.histo, summary.HistoFile, j.opts.Format); err != nil {
			return err
		}
		j.logf(1, "wrote %s", summary.HistoFile)
	}
	if j.opts.SavePolygons {
		if err := annotation.WriteSelection(j.doc, set.regions, outbase+"_selection.json"); err != nil {
			return err
		}
	}
	if j.opts.Report {
		if err := report.Write(outbase+"_report.pdf", set.mask, set.histo); err != nil {
			return err
		}
		j.logf(1, "wrote %s", outbase+"_report.pdf")
	}
	return mask_writer.WriteSummary(summary, outbase+"_summary.json")
}

func (j *job) logf(level int, format string, args ...any) {
	if j.opts.Verbose >= level {
		log.Printf(format, args...)
	}
}
