package pdftext

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

type bboxWord struct {
	xMin, yMin, xMax, yMax float64
	text                   string
}

func (w bboxWord) midY() float64   { return (w.yMin + w.yMax) / 2 }
func (w bboxWord) height() float64 { return w.yMax - w.yMin }

// RowsFromBBox rebuilds table-like rows from `pdftotext -bbox-layout`
// output. Words sharing a baseline form one row; wide horizontal gaps
// become " | " cell separators so columns survive for the parser.
func RowsFromBBox(doc []byte) (string, error) {
	pages, err := parseBBox(doc)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i, words := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		for j, row := range groupRows(words) {
			if j > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(joinRow(row))
		}
	}
	return b.String(), nil
}

func parseBBox(doc []byte) ([][]bboxWord, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	var (
		pages   [][]bboxWord
		current *bboxWord
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse bbox layout: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "page":
				pages = append(pages, nil)
			case "word":
				w := bboxWord{}
				for _, a := range t.Attr {
					v, _ := strconv.ParseFloat(a.Value, 64)
					switch a.Name.Local {
					case "xMin":
						w.xMin = v
					case "yMin":
						w.yMin = v
					case "xMax":
						w.xMax = v
					case "yMax":
						w.yMax = v
					}
				}
				current = &w
			}
		case xml.CharData:
			if current != nil {
				current.text += string(t)
			}
		case xml.EndElement:
			if t.Name.Local == "word" && current != nil {
				current.text = strings.TrimSpace(current.text)
				if current.text != "" {
					if len(pages) == 0 {
						pages = append(pages, nil)
					}
					pages[len(pages)-1] = append(pages[len(pages)-1], *current)
				}
				current = nil
			}
		}
	}
	return pages, nil
}

func groupRows(words []bboxWord) [][]bboxWord {
	sorted := make([]bboxWord, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].midY() != sorted[j].midY() {
			return sorted[i].midY() < sorted[j].midY()
		}
		return sorted[i].xMin < sorted[j].xMin
	})

	var rows [][]bboxWord
	var rowMid float64
	for _, w := range sorted {
		n := len(rows)
		if n > 0 && math.Abs(w.midY()-rowMid) <= math.Max(w.height(), 1)/2 {
			rows[n-1] = append(rows[n-1], w)
			continue
		}
		rows = append(rows, []bboxWord{w})
		rowMid = w.midY()
	}
	for _, r := range rows {
		sort.SliceStable(r, func(i, j int) bool { return r[i].xMin < r[j].xMin })
	}
	return rows
}

func joinRow(row []bboxWord) string {
	var b strings.Builder
	for i, w := range row {
		if i > 0 {
			prev := row[i-1]
			gap := w.xMin - prev.xMax
			if gap > math.Max(prev.height(), 1)*1.5 {
				b.WriteString(" | ")
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.text)
	}
	return b.String()
}
