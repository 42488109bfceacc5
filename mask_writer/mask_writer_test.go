package mask_writer

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/image/tiff"

	"xml2mask/contracts"
)

func TestEnsureOutDir(t *testing.T) {
	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out", "masks")
		if err := EnsureOutDir(dir); err != nil {
			t.Fatalf("EnsureOutDir failed: %v", err)
		}
		st, err := os.Stat(dir)
		if err != nil || !st.IsDir() {
			t.Errorf("directory not created: %v", err)
		}
	})

	t.Run("existing directory is fine", func(t *testing.T) {
		if err := EnsureOutDir(t.TempDir()); err != nil {
			t.Errorf("EnsureOutDir failed: %v", err)
		}
	})

	t.Run("existing file is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "taken")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		err := EnsureOutDir(path)
		var cfgErr *contracts.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("got %v, want ConfigurationError", err)
		}
	})

	t.Run("file-looking path is rejected", func(t *testing.T) {
		err := EnsureOutDir(filepath.Join(t.TempDir(), "mask.tif"))
		var cfgErr *contracts.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("got %v, want ConfigurationError", err)
		}
	})
}

func TestLayerDir(t *testing.T) {
	out := t.TempDir()
	dir, err := LayerDir(out, 3)
	if err != nil {
		t.Fatalf("LayerDir failed: %v", err)
	}
	if filepath.Base(dir) != "AnnotationLayer_03" {
		t.Errorf("layer directory = %s, want AnnotationLayer_03", filepath.Base(dir))
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		t.Errorf("layer directory not created: %v", err)
	}
}

func TestExt(t *testing.T) {
	if got := Ext(contracts.FormatTIFF); got != ".tif" {
		t.Errorf("Ext(tif) = %s", got)
	}
	if got := Ext(contracts.FormatWebP); got != ".webp" {
		t.Errorf("Ext(webp) = %s", got)
	}
}

func testMask() *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, 32, 24))
	for y := 8; y < 16; y++ {
		for x := 8; x < 16; x++ {
			mask.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return mask
}

func TestWriteMask(t *testing.T) {
	t.Run("tif roundtrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "m.tif")
		if err := WriteMask(testMask(), path, contracts.FormatTIFF); err != nil {
			t.Fatalf("WriteMask failed: %v", err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		img, err := tiff.Decode(f)
		if err != nil {
			t.Fatalf("decoding written mask: %v", err)
		}
		if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
			t.Errorf("decoded size = %dx%d, want 32x24", img.Bounds().Dx(), img.Bounds().Dy())
		}
		r, _, _, _ := img.At(10, 10).RGBA()
		if r != 0xffff {
			t.Errorf("foreground pixel = %d, want white", r)
		}
	})

	t.Run("png roundtrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "m.png")
		if err := WriteMask(testMask(), path, contracts.FormatPNG); err != nil {
			t.Fatalf("WriteMask failed: %v", err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			t.Fatalf("decoding written mask: %v", err)
		}
		if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 24 {
			t.Errorf("decoded size = %dx%d, want 32x24", img.Bounds().Dx(), img.Bounds().Dy())
		}
	})

	t.Run("deterministic output", func(t *testing.T) {
		dir := t.TempDir()
		for _, format := range []contracts.OutputFormat{contracts.FormatTIFF, contracts.FormatPNG} {
			a := filepath.Join(dir, "a"+Ext(format))
			b := filepath.Join(dir, "b"+Ext(format))
			if err := WriteMask(testMask(), a, format); err != nil {
				t.Fatalf("WriteMask failed: %v", err)
			}
			if err := WriteMask(testMask(), b, format); err != nil {
				t.Fatalf("WriteMask failed: %v", err)
			}
			da, _ := os.ReadFile(a)
			db, _ := os.ReadFile(b)
			if !bytes.Equal(da, db) {
				t.Errorf("%s output is not byte-identical across runs", format)
			}
		}
	})

	t.Run("unknown format leaves no file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "m.bmp")
		if err := WriteMask(testMask(), path, contracts.OutputFormat("bmp")); err == nil {
			t.Fatal("expected an error")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("failed write left a file behind")
		}
	})
}

func TestWriteSummary(t *testing.T) {
	in := &Summary{
		XMLFile:          "slide_07.xml",
		MaskFile:         "slide_07_mask.tif",
		Width:            500,
		Height:           375,
		ForegroundPixels: 10000,
		FillValue:        255,
		ScaleX:           0.125,
		ScaleY:           0.125,
		Level:            2,
		MicronsPerPixel:  0.499,
	}
	path := filepath.Join(t.TempDir(), "summary.json")
	if err := WriteSummary(in, path); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var out Summary
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if diff := cmp.Diff(in, &out); diff != "" {
		t.Errorf("summary roundtrip mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Contains(data, []byte(`"foregroundPixels": 10000`)) {
		t.Error("summary JSON misses the foregroundPixels field")
	}
}
