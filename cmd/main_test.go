package main

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"xml2mask/contracts"
)

func TestParseShapeArg(t *testing.T) {
	cases := []struct {
		in    string
		shape *contracts.Shape
		ok    bool
	}{
		{"4000x3000", &contracts.Shape{Width: 4000, Height: 3000}, true},
		{"4000,3000", &contracts.Shape{Width: 4000, Height: 3000}, true},
		{" 400 x 300 ", &contracts.Shape{Width: 400, Height: 300}, true},
		{"slide_07.svs", nil, false},
		{"auto", nil, false},
		{"0x100", nil, false},
		{"-5x100", nil, false},
		{"100x", nil, false},
		{"100x200x300", nil, false},
	}
	for _, tc := range cases {
		shape, ok := parseShapeArg(tc.in)
		if ok != tc.ok {
			t.Errorf("parseShapeArg(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && (shape.Width != tc.shape.Width || shape.Height != tc.shape.Height) {
			t.Errorf("parseShapeArg(%q) = %+v, want %+v", tc.in, shape, tc.shape)
		}
	}
}

func TestParseScale(t *testing.T) {
	t.Run("pair", func(t *testing.T) {
		sx, sy, err := parseScale("0.5,0.25")
		if err != nil || sx != 0.5 || sy != 0.25 {
			t.Errorf("parseScale = %g,%g,%v", sx, sy, err)
		}
	})
	t.Run("single factor is isotropic", func(t *testing.T) {
		sx, sy, err := parseScale("0.1")
		if err != nil || sx != 0.1 || sy != 0.1 {
			t.Errorf("parseScale = %g,%g,%v", sx, sy, err)
		}
	})
	t.Run("rejects", func(t *testing.T) {
		for _, in := range []string{"", "0", "-1,1", "1,0", "a,b", "1,2,3"} {
			if _, _, err := parseScale(in); err == nil {
				t.Errorf("parseScale(%q) accepted", in)
			}
		}
	})
}

func TestParseInts(t *testing.T) {
	vals, err := parseInts("10, 20,30,40", 4, "--tile")
	if err != nil {
		t.Fatalf("parseInts failed: %v", err)
	}
	want := []int{10, 20, 30, 40}
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("vals[%d] = %d, want %d", i, vals[i], want[i])
		}
	}

	for _, in := range []string{"1,2,3", "1,2,3,4,5", "a,b,c,d", ""} {
		if _, err := parseInts(in, 4, "--tile"); err == nil {
			t.Errorf("parseInts(%q) accepted", in)
		}
	}
}

// writeFixture lays out a square annotation and a matching 400x300 slide
// under the auto-discovery naming scheme.
func writeFixture(t *testing.T) (dir, xmlPath string) {
	t.Helper()
	dir = t.TempDir()
	xmlPath = filepath.Join(dir, "slide_07.xml")
	xml := `<?xml version="1.0"?>
<Annotations MicronsPerPixel="0.4990">
  <Annotation Id="1" Name="Tumor">
    <Regions>
      <Region Id="1" NegativeROA="0">
        <Vertices>
          <Vertex X="100" Y="100"/>
          <Vertex X="200" Y="100"/>
          <Vertex X="200" Y="200"/>
          <Vertex X="100" Y="200"/>
        </Vertices>
      </Region>
    </Regions>
  </Annotation>
</Annotations>`
	if err := os.WriteFile(xmlPath, []byte(xml), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 400, 300)), nil); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "slide_07.svs"), buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return dir, xmlPath
}

func maskValueAt(t *testing.T, path string, x, y int) uint8 {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening mask: %v", err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		t.Fatalf("decoding mask: %v", err)
	}
	gray, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("mask decoded as %T, want *image.Gray", img)
	}
	return gray.GrayAt(x, y).Y
}

func TestRunFillValue(t *testing.T) {
	t.Run("default is 255", func(t *testing.T) {
		dir, xmlPath := writeFixture(t)
		if code := run([]string{"--image", "auto", "--verbose", "0", xmlPath}); code != 0 {
			t.Fatalf("run = %d, want 0", code)
		}
		if got := maskValueAt(t, filepath.Join(dir, "slide_07_mask.tif"), 150, 150); got != 255 {
			t.Errorf("fill value = %d, want 255", got)
		}
	})

	t.Run("explicit fill", func(t *testing.T) {
		dir, xmlPath := writeFixture(t)
		if code := run([]string{"--image", "auto", "--fill", "7", "--verbose", "0", xmlPath}); code != 0 {
			t.Fatalf("run = %d, want 0", code)
		}
		if got := maskValueAt(t, filepath.Join(dir, "slide_07_mask.tif"), 150, 150); got != 7 {
			t.Errorf("fill value = %d, want 7", got)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		_, xmlPath := writeFixture(t)
		for _, v := range []string{"0", "300"} {
			if code := run([]string{"--image", "auto", "--fill", v, xmlPath}); code != 1 {
				t.Errorf("run with --fill %s = %d, want 1", v, code)
			}
		}
	})
}

func TestRunUsage(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Errorf("run with no arguments = %d, want 2", code)
	}
	if code := run([]string{"-badflag"}); code != 2 {
		t.Errorf("run with unknown flag = %d, want 2", code)
	}
}

func TestRunMissingShape(t *testing.T) {
	// An XML argument without any shape option must fail configuration,
	// not produce a surprise bounding-box mask.
	if code := run([]string{"annotations.xml"}); code != 1 {
		t.Errorf("run without shape options = %d, want 1", code)
	}
}
