// Package export writes the register back out: the CSV layout read by the
// CAD add-in and the LPP drawing-list workbook.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"p9e.in/lppsync/models"
)

// CADColumns is the column layout of the CSV re-imported by the CAD add-in.
// Order is part of the contract with the add-in.
var CADColumns = func() []string {
	cols := []string{
		"PROJ_NUM", "PROJ_NOME", "CLIENTE", "OBRA", "LOCALIZACAO", "ESPECIALIDADE", "PROJETOU",
		"FASE", "FASE_PFIX", "EMISSAO", "DATA", "PFIX",
		"TAG DO LAYOUT", "DES_NUM", "TIPO", "ELEMENTO", "TITULO",
	}
	for _, l := range models.RevisionLetters {
		u := strings.ToUpper(l)
		cols = append(cols, "REV_"+u, "DATA_"+u, "DESC_"+u)
	}
	return append(cols, "DWG_SOURCE", "ID_CAD")
}()

// CADRow lays out one drawing in CADColumns order. p may be nil when the
// drawing's project is not registered. Stored revisions fill slots A to E in
// stored order.
func CADRow(d models.Drawing, p *models.Project) []string {
	var proj models.Project
	if p != nil {
		proj = *p
	}
	row := []string{
		d.ProjectNumber, proj.Name, proj.Client, proj.Site, proj.Location, proj.Specialty, proj.Designer,
		d.Phase, d.PhasePrefix, d.Emission, d.Date, d.Prefix,
		d.LayoutName, d.DrawingNumber, d.TypeDisplay, d.Element, d.Title,
	}
	for i := range models.RevisionLetters {
		if i < len(d.Revisions) {
			r := d.Revisions[i]
			row = append(row, r.Code, r.Date, r.Description)
		} else {
			row = append(row, "", "", "")
		}
	}
	return append(row, d.DWGSource, d.CADID)
}

// WriteCADCSV writes drawings as a semicolon-delimited UTF-8 file with a BOM.
// projects is keyed by project number.
func WriteCADCSV(w io.Writer, drawings []models.Drawing, projects map[string]models.Project) error {
	if _, err := w.Write([]byte("\ufeff")); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(CADColumns); err != nil {
		return err
	}
	for _, d := range drawings {
		var p *models.Project
		if proj, ok := projects[d.ProjectNumber]; ok {
			p = &proj
		}
		if err := cw.Write(CADRow(d, p)); err != nil {
			return fmt.Errorf("failed to write %s: %w", d.LayoutName, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
