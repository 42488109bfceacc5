// Package mask_writer manages the output directory and encodes the mask,
// histology crop and run summary files.
package mask_writer

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"golang.org/x/image/tiff"

	"xml2mask/contracts"
)

// EnsureOutDir validates the output directory path and creates it if
// missing. The path must not point to an existing file and must not look
// like a file path (carry an extension).
func EnsureOutDir(dir string) error {
	if st, err := os.Stat(dir); err == nil {
		if !st.IsDir() {
			return contracts.NewConfigurationError(fmt.Sprintf("output directory %s points to an existing file", dir))
		}
		return nil
	}
	if filepath.Ext(dir) != "" {
		return contracts.NewConfigurationError(fmt.Sprintf("output directory %s must be a directory path, not a file path with an extension", dir))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return contracts.NewConfigurationError(fmt.Sprintf("cannot create output directory %s: %v", dir, err))
	}
	return nil
}

// LayerDir creates and returns the per-layer subdirectory used in
// split-layers mode, e.g. AnnotationLayer_02.
func LayerDir(outdir string, layer int) (string, error) {
	dir := filepath.Join(outdir, fmt.Sprintf("AnnotationLayer_%02d", layer))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create layer directory %s: %w", dir, err)
	}
	return dir, nil
}

// Ext returns the file extension for an output format.
func Ext(format contracts.OutputFormat) string {
	return "." + string(format)
}

// WriteMask encodes the 8-bit mask raster. TIFF output uses deflate
// compression; all encoders here are deterministic, so identical runs
// produce byte-identical files.
func WriteMask(mask *image.Gray, path string, format contracts.OutputFormat) error {
	return writeImage(mask, path, format)
}

// WriteHisto encodes the RGB histology companion crop.
func WriteHisto(img image.Image, path string, format contracts.OutputFormat) error {
	return writeImage(img, path, format)
}

func writeImage(img image.Image, path string, format contracts.OutputFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}

	switch format {
	case contracts.FormatTIFF:
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case contracts.FormatPNG:
		err = png.Encode(f, img)
	case contracts.FormatWebP:
		err = webp.Encode(f, img, &webp.Options{Lossless: true})
	default:
		err = contracts.NewConfigurationError("unknown output format " + string(format))
	}
	if err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}
	return f.Close()
}

// Summary records what a run produced, for QA and downstream scripting.
type Summary struct {
	XMLFile          string  `json:"xmlFile"`
	MaskFile         string  `json:"maskFile,omitempty"`
	HistoFile        string  `json:"histoFile,omitempty"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	ForegroundPixels int     `json:"foregroundPixels"`
	FillValue        uint8   `json:"fillValue"`
	ScaleX           float64 `json:"scaleX"`
	ScaleY           float64 `json:"scaleY"`
	Level            int     `json:"level"`
	MicronsPerPixel  float64 `json:"micronsPerPixel,omitempty"`
}

// WriteSummary saves the run summary as indented JSON.
func WriteSummary(s *Summary, path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
