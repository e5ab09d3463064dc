package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"p9e.in/lppsync/models"
)

// headerScanRows is how far down a template the header row is looked for.
const headerScanRows = 20

var (
	ErrNoHeaderRow     = errors.New("no header row with Nº. or DESIGNAÇÃO in the first 20 rows")
	ErrMissingKeyCells = errors.New("template lacks ROW_KIND, TIPO_KEY or ELEMENTO_KEY columns")
)

// LPPResult reports what BuildLPP changed.
type LPPResult struct {
	Sheet    string   `json:"sheet"`
	Anchors  int      `json:"anchors"`
	Removed  int      `json:"removed"`
	Inserted int      `json:"inserted"`
	Unplaced []string `json:"unplaced"`
}

type anchor struct {
	row        int
	typeKey    string
	elementKey string
}

type lppLayout struct {
	sheet   string
	header  int
	columns map[string]int
}

func (l lppLayout) cell(rows [][]string, row int, name string) string {
	col, ok := l.columns[name]
	if !ok || row-1 >= len(rows) {
		return ""
	}
	r := rows[row-1]
	if col-1 >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col-1])
}

// BuildLPP fills an LPP workbook with drawings. With a nil template a blank
// one is generated from the drawings' own sections.
//
// Under every ELEMENTO anchor row the contiguous DESENHO rows of the same
// type and element are removed and the matching drawings are inserted in
// their place, in the order given. Drawings whose section has no anchor are
// listed in the result and left out of the sheet.
func BuildLPP(template io.Reader, drawings []models.Drawing) (*excelize.File, *LPPResult, error) {
	var (
		f   *excelize.File
		err error
	)
	if template == nil {
		f, err = NewTemplate(GroupsOf(drawings))
	} else {
		f, err = excelize.OpenReader(template)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open LPP template: %w", err)
	}

	layout, rows, err := readLayout(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	anchors := findAnchors(layout, rows)
	byKey := make(map[[2]string][]models.Drawing)
	for _, d := range drawings {
		k := [2]string{d.TypeKey, d.ElementKey}
		byKey[k] = append(byKey[k], d)
	}

	res := &LPPResult{Sheet: layout.sheet, Anchors: len(anchors), Unplaced: []string{}}
	placed := make(map[[2]string]bool)

	// bottom-up, so edits below an anchor never move the anchors above it
	for i := len(anchors) - 1; i >= 0; i-- {
		a := anchors[i]
		stale := countStaleRows(layout, rows, a)
		for n := 0; n < stale; n++ {
			if err := f.RemoveRow(layout.sheet, a.row+1); err != nil {
				f.Close()
				return nil, nil, err
			}
		}
		res.Removed += stale

		k := [2]string{a.typeKey, a.elementKey}
		group := byKey[k]
		placed[k] = true
		if len(group) == 0 {
			continue
		}
		if err := f.InsertRows(layout.sheet, a.row+1, len(group)); err != nil {
			f.Close()
			return nil, nil, err
		}
		for j, d := range group {
			writeDrawingRow(f, layout, a.row+1+j, d)
		}
		res.Inserted += len(group)
	}

	for _, d := range drawings {
		if !placed[[2]string{d.TypeKey, d.ElementKey}] {
			res.Unplaced = append(res.Unplaced, d.LayoutName)
		}
	}

	zap.L().Info("LPP built",
		zap.Int("anchors", res.Anchors),
		zap.Int("removed", res.Removed),
		zap.Int("inserted", res.Inserted),
		zap.Int("unplaced", len(res.Unplaced)),
	)
	return f, res, nil
}

func readLayout(f *excelize.File) (lppLayout, [][]string, error) {
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return lppLayout{}, nil, err
	}

	l := lppLayout{sheet: sheet, columns: map[string]int{}}
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		for _, v := range rows[i] {
			if v := strings.TrimSpace(v); v == ColNumber || v == ColDesignation {
				l.header = i + 1
				break
			}
		}
		if l.header > 0 {
			break
		}
	}
	if l.header == 0 {
		return lppLayout{}, nil, ErrNoHeaderRow
	}

	for i, v := range rows[l.header-1] {
		if name := strings.TrimSpace(v); name != "" {
			l.columns[name] = i + 1
		}
	}
	for _, name := range []string{ColRowKind, ColTypeKey, ColElementKey} {
		if _, ok := l.columns[name]; !ok {
			return lppLayout{}, nil, ErrMissingKeyCells
		}
	}
	return l, rows, nil
}

func findAnchors(l lppLayout, rows [][]string) []anchor {
	var out []anchor
	for row := l.header + 1; row <= len(rows); row++ {
		if l.cell(rows, row, ColRowKind) != RowKindElement {
			continue
		}
		out = append(out, anchor{
			row:        row,
			typeKey:    l.cell(rows, row, ColTypeKey),
			elementKey: l.cell(rows, row, ColElementKey),
		})
	}
	return out
}

// countStaleRows counts the DESENHO rows of the anchor's section directly
// below it.
func countStaleRows(l lppLayout, rows [][]string, a anchor) int {
	n := 0
	for row := a.row + 1; row <= len(rows); row++ {
		if l.cell(rows, row, ColRowKind) != RowKindDrawing ||
			l.cell(rows, row, ColTypeKey) != a.typeKey ||
			l.cell(rows, row, ColElementKey) != a.elementKey {
			break
		}
		n++
	}
	return n
}

func writeDrawingRow(f *excelize.File, l lppLayout, row int, d models.Drawing) {
	number := d.DrawingNumber
	if d.ElementKey != "" {
		number = d.ElementKey + " " + d.DrawingNumber
	}
	designation := d.ElementTitle
	if designation == "" {
		designation = d.TypeDisplay
	}

	values := map[string]string{
		ColNumber:      number,
		ColDesignation: designation,
		ColFile:        d.LayoutName,
		ColRev:         d.Revision,
		ColDate:        d.Date,
		ColRowKind:     RowKindDrawing,
		ColTypeKey:     d.TypeKey,
		ColElementKey:  d.ElementKey,
	}
	for name, v := range values {
		if col, ok := l.columns[name]; ok {
			setRowValue(f, l.sheet, row, col, v)
		}
	}
}
