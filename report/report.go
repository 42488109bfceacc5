// Package report renders the verification PDF: the binary mask and, when
// available, the matching histology crop on equally sized pages, so mask
// alignment can be reviewed in any PDF viewer.
package report

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/phpdave11/gofpdf"
)

// Pages are laid out at 96 pixels per inch.
const mmPerPixel = 25.4 / 96

// Write creates the report PDF at path. histo may be nil, leaving a
// mask-only report.
func Write(path string, mask *image.Gray, histo image.Image) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "mm"})
	pdf.SetMargins(0, 0, 0)

	pages := []struct {
		name string
		img  image.Image
	}{
		{"mask", mask},
	}
	if histo != nil {
		pages = append(pages, struct {
			name string
			img  image.Image
		}{"histology", histo})
	}

	for _, page := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, page.img); err != nil {
			return fmt.Errorf("cannot encode %s page: %w", page.name, err)
		}

		bounds := page.img.Bounds()
		w := float64(bounds.Dx()) * mmPerPixel
		h := float64(bounds.Dy()) * mmPerPixel

		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		pdf.RegisterImageOptionsReader(
			page.name,
			gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false},
			&buf,
		)
		pdf.ImageOptions(page.name, 0, 0, w, h, false,
			gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}, 0, "")
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("cannot save report %s: %w", path, err)
	}
	return nil
}
