package export

import (
	"sort"

	"github.com/xuri/excelize/v2"
	"p9e.in/lppsync/models"
)

// LPP sheet columns.
const (
	ColNumber      = "Nº."
	ColDesignation = "DESIGNAÇÃO"
	ColFile        = "FICHEIRO"
	ColRev         = "Rev"
	ColDate        = "DATA"
	ColRowKind     = "ROW_KIND"
	ColTypeKey     = "TIPO_KEY"
	ColElementKey  = "ELEMENTO_KEY"
)

// ROW_KIND values.
const (
	RowKindType    = "TIPO"
	RowKindElement = "ELEMENTO"
	RowKindDrawing = "DESENHO"
)

// LPPSheet is the sheet name of generated templates.
const LPPSheet = "LPP"

var lppHeaders = []string{ColNumber, ColDesignation, ColFile, ColRev, ColDate, ColRowKind, ColTypeKey, ColElementKey}

var lppWidths = []float64{15, 40, 30, 8, 15, 12, 20, 15}

// Group is one (type, element) section of the LPP.
type Group struct {
	TypeKey     string `json:"tipo_key"`
	TypeDisplay string `json:"tipo_display"`
	ElementKey  string `json:"elemento_key"`
	Element     string `json:"elemento"`
}

// GroupsOf returns the distinct sections used by drawings, sorted by type
// key then element key.
func GroupsOf(drawings []models.Drawing) []Group {
	seen := make(map[[2]string]bool)
	var out []Group
	for _, d := range drawings {
		k := [2]string{d.TypeKey, d.ElementKey}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Group{TypeKey: d.TypeKey, TypeDisplay: d.TypeDisplay, ElementKey: d.ElementKey, Element: d.Element})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TypeKey != out[j].TypeKey {
			return out[i].TypeKey < out[j].TypeKey
		}
		return out[i].ElementKey < out[j].ElementKey
	})
	return out
}

// NewTemplate builds a blank LPP workbook: a header row, then a TIPO row per
// type and an ELEMENTO anchor row per element. The key columns F to H are
// hidden and only the visible columns of section rows are merged, so the
// keys survive in their cells.
func NewTemplate(groups []Group) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), LPPSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"366092"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: thinBorder(),
	})
	if err != nil {
		return nil, err
	}
	typeStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"D9D9D9"}, Pattern: 1},
		Border: thinBorder(),
	})
	if err != nil {
		return nil, err
	}
	elementStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 10},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E7E6E6"}, Pattern: 1},
		Border: thinBorder(),
	})
	if err != nil {
		return nil, err
	}

	for i, h := range lppHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(LPPSheet, cell, h)
		f.SetCellStyle(LPPSheet, cell, cell, headerStyle)
		f.SetColWidth(LPPSheet, col, col, lppWidths[i])
	}
	if err := f.SetColVisible(LPPSheet, "F:H", false); err != nil {
		return nil, err
	}

	row := 2
	lastType := "\x00"
	for _, g := range groups {
		if g.TypeKey != lastType {
			lastType = g.TypeKey
			label := g.TypeDisplay
			if label == "" {
				label = g.TypeKey
			}
			if err := sectionRow(f, row, label, RowKindType, g.TypeKey, "", typeStyle); err != nil {
				return nil, err
			}
			row++
		}
		if err := sectionRow(f, row, elementLabel(g), RowKindElement, g.TypeKey, g.ElementKey, elementStyle); err != nil {
			return nil, err
		}
		row++
	}

	if err := f.SetPanes(LPPSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}
	return f, nil
}

func sectionRow(f *excelize.File, row int, label, kind, typeKey, elementKey string, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(5, row)
	f.SetCellValue(LPPSheet, first, label)
	f.SetCellStyle(LPPSheet, first, last, style)
	if err := f.MergeCell(LPPSheet, first, last); err != nil {
		return err
	}
	setRowValue(f, LPPSheet, row, 6, kind)
	setRowValue(f, LPPSheet, row, 7, typeKey)
	if elementKey != "" {
		setRowValue(f, LPPSheet, row, 8, elementKey)
	}
	return nil
}

func elementLabel(g Group) string {
	switch {
	case g.ElementKey == "":
		return "(sem elemento)"
	case g.Element == "" || g.Element == g.ElementKey:
		return g.ElementKey
	default:
		return g.ElementKey + " - " + g.Element
	}
}

func setRowValue(f *excelize.File, sheet string, row, col int, v interface{}) {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	f.SetCellValue(sheet, cell, v)
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}
