package slide

import (
	"fmt"
	"os"

	"github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
)

// ResolutionMPP derives microns-per-pixel from the XResolution/YResolution
// tags of the slide, the fallback for slides whose Aperio description lacks
// an MPP field. Aperio writes resolution as pixels per centimeter; inch
// units are converted.
func ResolutionMPP(path string) (float64, float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}

	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return 0, 0, fmt.Errorf("no resolution metadata: %w", err)
	}

	im := exifcommon.NewIfdMapping()
	ti := exif.NewTagIndex()
	if err := exifcommon.LoadStandardIfds(im); err != nil {
		return 0, 0, err
	}

	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		return 0, 0, err
	}

	resX, okX := rationalTag(index, "XResolution")
	resY, okY := rationalTag(index, "YResolution")
	if !okX || !okY || resX <= 0 || resY <= 0 {
		return 0, 0, fmt.Errorf("slide %s carries no usable resolution tags", path)
	}

	// Microns per unit: default unit is centimeter for Aperio slides,
	// ResolutionUnit 2 switches to inch.
	// SHORT tags decode as a []uint16 slice.
	perUnit := 10000.0
	if tag, err := index.RootIfd.FindTagWithName("ResolutionUnit"); err == nil && len(tag) > 0 {
		if val, err := tag[0].Value(); err == nil {
			if units, ok := val.([]uint16); ok && len(units) > 0 && units[0] == 2 {
				perUnit = 25400.0
			}
		}
	}
	return perUnit / resX, perUnit / resY, nil
}

func rationalTag(index exif.IfdIndex, name string) (float64, bool) {
	tag, err := index.RootIfd.FindTagWithName(name)
	if err != nil || len(tag) == 0 {
		return 0, false
	}
	val, err := tag[0].Value()
	if err != nil {
		return 0, false
	}
	rats, ok := val.([]exifcommon.Rational)
	if !ok || len(rats) == 0 || rats[0].Denominator == 0 {
		return 0, false
	}
	return float64(rats[0].Numerator) / float64(rats[0].Denominator), true
}
