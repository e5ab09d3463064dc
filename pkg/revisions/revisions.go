// Package revisions reads the lettered revision slots of an imported record.
package revisions

import (
	"strings"

	"p9e.in/lppsync/models"
)

// Placeholder is written by the CAD add-in in unused revision slots.
const Placeholder = "-"

// Revision is one lettered issue of a drawing.
type Revision struct {
	Code        string `json:"rev_code"`
	Date        string `json:"rev_date"`
	Description string `json:"rev_desc"`
}

// IsEmpty reports whether a revision code carries no value.
func IsEmpty(code string) bool {
	c := strings.TrimSpace(code)
	return c == "" || c == Placeholder
}

// Extract returns the filled revision slots of rec in A to E order. Slots
// whose code is empty or a placeholder are skipped; the result is not sorted
// by date.
func Extract(rec *models.Record) []Revision {
	if rec == nil {
		return nil
	}
	var out []Revision
	for _, slot := range rec.Revisions {
		if IsEmpty(slot.Code) {
			continue
		}
		out = append(out, Revision{
			Code:        strings.TrimSpace(slot.Code),
			Date:        strings.TrimSpace(slot.Date),
			Description: strings.TrimSpace(slot.Description),
		})
	}
	return out
}

// Current returns the revision in force, which is the last element of list.
// List order is taken to be chronological; an empty list yields the zero
// value.
func Current(list []Revision) Revision {
	if len(list) == 0 {
		return Revision{}
	}
	return list[len(list)-1]
}

// FromModels converts stored rows back into revisions, keeping their order.
func FromModels(rows []models.Revision) []Revision {
	out := make([]Revision, 0, len(rows))
	for _, r := range rows {
		out = append(out, Revision{Code: r.Code, Date: r.Date, Description: r.Description})
	}
	return out
}
