// Package annotation reads Aperio Image Analysis XML annotation files.
//
// The Aperio schema nests Annotation (layer) > Regions > Region > Vertices >
// Vertex elements; vertex coordinates are pixel positions in the slide's
// full-resolution frame. Regions flagged NegativeROA are excluded areas that
// punch holes into the positive selection.
package annotation

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"

	"xml2mask/contracts"
)

// Vertex is one polygon point in full-resolution pixel coordinates.
type Vertex struct {
	X float64
	Y float64
	Z float64
}

// Region is a closed polygonal annotation.
type Region struct {
	Layer         int
	ID            string
	Type          string
	Text          string
	Zoom          float64
	Area          float64
	Length        float64
	AreaMicrons   float64
	LengthMicrons float64
	Selected      bool
	NegativeROA   bool
	Vertices      []Vertex
}

// Layer is one Annotation element: a named group of regions.
type Layer struct {
	Index     int
	ID        string
	Name      string
	LineColor string
	Regions   []Region
}

// Document is the parsed content of one annotation file. Warnings carries
// notes about content that was dropped during parsing, for the caller to
// surface at its own verbosity.
type Document struct {
	MicronsPerPixel float64
	Layers          []Layer
	Warnings        []string
}

type xmlVertex struct {
	X string `xml:"X,attr"`
	Y string `xml:"Y,attr"`
	Z string `xml:"Z,attr"`
}

type xmlRegion struct {
	ID            string      `xml:"Id,attr"`
	Type          string      `xml:"Type,attr"`
	Text          string      `xml:"Text,attr"`
	Zoom          string      `xml:"Zoom,attr"`
	Area          string      `xml:"Area,attr"`
	Length        string      `xml:"Length,attr"`
	AreaMicrons   string      `xml:"AreaMicrons,attr"`
	LengthMicrons string      `xml:"LengthMicrons,attr"`
	Selected      string      `xml:"Selected,attr"`
	NegativeROA   string      `xml:"NegativeROA,attr"`
	Vertices      []xmlVertex `xml:"Vertices>Vertex"`
}

type xmlAnnotation struct {
	ID        string      `xml:"Id,attr"`
	Name      string      `xml:"Name,attr"`
	LineColor string      `xml:"LineColor,attr"`
	Regions   []xmlRegion `xml:"Regions>Region"`
}

type xmlAnnotations struct {
	XMLName         xml.Name        `xml:"Annotations"`
	MicronsPerPixel string          `xml:"MicronsPerPixel,attr"`
	Annotations     []xmlAnnotation `xml:"Annotation"`
}

// Parse reads an Aperio XML file. Regions with fewer than three vertices
// cannot form a polygon and are dropped, recording a document warning; if
// no region survives anywhere in the file, Parse reports a ParseError.
func Parse(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, contracts.NewInputError(fmt.Sprintf("cannot read annotation file %s: %v", path, err))
	}
	return parseBytes(path, data)
}

func parseBytes(path string, data []byte) (*Document, error) {
	var raw xmlAnnotations
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, contracts.NewParseError(fmt.Sprintf("malformed XML in %s", path), err)
	}

	doc := &Document{
		MicronsPerPixel: parseFloat(raw.MicronsPerPixel),
	}
	total := 0
	for i, a := range raw.Annotations {
		layer := Layer{
			Index:     i,
			ID:        a.ID,
			Name:      a.Name,
			LineColor: a.LineColor,
		}
		for _, r := range a.Regions {
			if len(r.Vertices) < 3 {
				doc.Warnings = append(doc.Warnings, fmt.Sprintf(
					"region %s in annotation layer %d omitted for having fewer than 3 points", r.ID, i))
				continue
			}
			region := Region{
				Layer:         i,
				ID:            r.ID,
				Type:          r.Type,
				Text:          r.Text,
				Zoom:          parseFloat(r.Zoom),
				Area:          parseFloat(r.Area),
				Length:        parseFloat(r.Length),
				AreaMicrons:   parseFloat(r.AreaMicrons),
				LengthMicrons: parseFloat(r.LengthMicrons),
				Selected:      parseBool(r.Selected),
				NegativeROA:   parseBool(r.NegativeROA),
			}
			region.Vertices = make([]Vertex, 0, len(r.Vertices))
			for _, v := range r.Vertices {
				region.Vertices = append(region.Vertices, Vertex{
					X: parseFloat(v.X),
					Y: parseFloat(v.Y),
					Z: parseFloat(v.Z),
				})
			}
			layer.Regions = append(layer.Regions, region)
			total++
		}
		doc.Layers = append(doc.Layers, layer)
	}
	if total == 0 {
		return nil, contracts.NewParseError(fmt.Sprintf("%s contains no polygonal region with at least 3 vertices", path), nil)
	}
	return doc, nil
}

// Polygons returns the regions of the given layer index, or of all layers
// when layer is negative, in document order.
func (d *Document) Polygons(layer int) []Region {
	var out []Region
	for _, l := range d.Layers {
		if layer >= 0 && l.Index != layer {
			continue
		}
		out = append(out, l.Regions...)
	}
	return out
}

// Aperio writes numeric attributes inconsistently (empty, integer, or
// decimal); treat anything unparseable as zero.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseBool(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return f != 0
}
