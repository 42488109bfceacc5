package annotation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// WriteTables exports the parsed document as three relational CSV tables
// next to outbase: points, regions and annotations. The tables share the
// annotation and region indices as keys, so the original vertex data stays
// recoverable from the mask output directory.
func WriteTables(doc *Document, outbase string) error {
	if err := writePointsTable(doc, outbase+"_points.csv"); err != nil {
		return err
	}
	if err := writeRegionsTable(doc, outbase+"_regions.csv"); err != nil {
		return err
	}
	return writeAnnotationsTable(doc, outbase+"_annotations.csv")
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create table %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func writePointsTable(doc *Document, path string) error {
	header := []string{"Point_ID", "Annotation", "Region", "X", "Y", "Z"}
	var rows [][]string
	id := 0
	for _, l := range doc.Layers {
		for ri, r := range l.Regions {
			for _, v := range r.Vertices {
				rows = append(rows, []string{
					strconv.Itoa(id),
					strconv.Itoa(l.Index),
					strconv.Itoa(ri),
					formatFloat(v.X),
					formatFloat(v.Y),
					formatFloat(v.Z),
				})
				id++
			}
		}
	}
	return writeCSV(path, header, rows)
}

func writeRegionsTable(doc *Document, path string) error {
	header := []string{"Region_ID", "Annotation", "Id", "Type", "Text",
		"Zoom", "Length", "Area", "LengthMicrons", "AreaMicrons",
		"Selected", "NegativeROA", "Vertices"}
	var rows [][]string
	id := 0
	for _, l := range doc.Layers {
		for _, r := range l.Regions {
			rows = append(rows, []string{
				strconv.Itoa(id),
				strconv.Itoa(l.Index),
				r.ID,
				r.Type,
				r.Text,
				formatFloat(r.Zoom),
				formatFloat(r.Length),
				formatFloat(r.Area),
				formatFloat(r.LengthMicrons),
				formatFloat(r.AreaMicrons),
				formatBool(r.Selected),
				formatBool(r.NegativeROA),
				strconv.Itoa(len(r.Vertices)),
			})
			id++
		}
	}
	return writeCSV(path, header, rows)
}

func writeAnnotationsTable(doc *Document, path string) error {
	header := []string{"Annotation_ID", "Id", "Name", "LineColor", "Regions"}
	var rows [][]string
	for _, l := range doc.Layers {
		rows = append(rows, []string{
			strconv.Itoa(l.Index),
			l.ID,
			l.Name,
			l.LineColor,
			strconv.Itoa(len(l.Regions)),
		})
	}
	return writeCSV(path, header, rows)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

type selectionPolygon struct {
	Layer    int          `json:"layer"`
	Region   string       `json:"region"`
	Negative bool         `json:"negative"`
	Points   [][2]float64 `json:"points"`
}

type selectionFile struct {
	MicronsPerPixel float64            `json:"micronsPerPixel,omitempty"`
	Polygons        []selectionPolygon `json:"polygons"`
}

// WriteSelection saves the polygonal selection of the given regions as JSON,
// the portable replacement for the original tool's pickled selection object.
func WriteSelection(doc *Document, regions []Region, path string) error {
	sel := selectionFile{MicronsPerPixel: doc.MicronsPerPixel}
	for _, r := range regions {
		p := selectionPolygon{
			Layer:    r.Layer,
			Region:   r.ID,
			Negative: r.NegativeROA,
		}
		for _, v := range r.Vertices {
			p.Points = append(p.Points, [2]float64{v.X, v.Y})
		}
		sel.Polygons = append(sel.Polygons, p)
	}
	data, err := json.MarshalIndent(&sel, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
