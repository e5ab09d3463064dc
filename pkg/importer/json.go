package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"p9e.in/lppsync/models"
)

// UnknownDWG is used when a JSON export names no drawing file.
const UnknownDWG = "UNKNOWN"

type jsonExport struct {
	DWGSource string        `json:"dwg_source"`
	DWGName   string        `json:"dwg_name"`
	Drawings  []jsonDrawing `json:"desenhos"`
}

type jsonDrawing struct {
	LayoutName string                 `json:"layout_name"`
	Attributes map[string]interface{} `json:"attributes"`
	Revisions  []jsonRevision         `json:"revisoes"`
}

type jsonRevision struct {
	Code        string `json:"rev_code"`
	Rev         string `json:"rev"`
	Date        string `json:"rev_date"`
	Data        string `json:"data"`
	Description string `json:"rev_desc"`
	Desc        string `json:"desc"`
}

func (r jsonRevision) slot() models.RevisionSlot {
	return models.RevisionSlot{
		Code:        firstNonEmpty(r.Code, r.Rev),
		Date:        firstNonEmpty(r.Date, r.Data),
		Description: firstNonEmpty(r.Description, r.Desc),
	}
}

// ReadJSON reads the add-in's JSON export: a drawing file name and its list
// of layouts with attributes and revisions.
func ReadJSON(r io.Reader) (*Result, error) {
	var doc jsonExport
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	dwg := firstNonEmpty(doc.DWGSource, doc.DWGName, UnknownDWG)
	res := &Result{Encoding: "utf-8", DWGSource: dwg}

	for i, d := range doc.Drawings {
		rec := &models.Record{}
		currentRev := ""
		for k, v := range d.Attributes {
			field := models.CanonicalField(k)
			if field == "r" {
				currentRev = stringify(v)
				continue
			}
			rec.Set(field, stringify(v))
		}
		if d.LayoutName != "" {
			rec.Set("layout_name", d.LayoutName)
		}
		if rec.DWGSource == "" {
			rec.DWGSource = dwg
		}

		if len(d.Revisions) > len(rec.Revisions) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("desenho %d (%s): %d revisions, only the first %d kept",
				i+1, rec.LayoutName, len(d.Revisions), len(rec.Revisions)))
		}
		for j, jr := range d.Revisions {
			if j >= len(rec.Revisions) {
				break
			}
			rec.Revisions[j] = jr.slot()
		}
		// a bare R attribute stands in for an empty revision list
		if len(d.Revisions) == 0 && currentRev != "" {
			rec.Revisions[0] = models.RevisionSlot{Code: currentRev}
		}

		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers: keep integers free of a decimal point
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
