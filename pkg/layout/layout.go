// Package layout keeps a drawing's layout tag in step with the drawing
// number and revision edited in the register.
//
// A tag is positional and hyphen-delimited:
//
//	{project}-{discipline}-{number}-{phase}-{emission}[-{revision}]
package layout

import (
	"strings"

	"p9e.in/lppsync/pkg/revisions"
)

const (
	sep = "-"

	minSegments = 5
	numberIndex = 2
	revIndex    = 5
)

// Parts is a tag split into its positional segments.
type Parts struct {
	Project    string `json:"project"`
	Discipline string `json:"discipline"`
	Number     string `json:"number"`
	Phase      string `json:"phase"`
	Emission   string `json:"emission"`
	Revision   string `json:"revision,omitempty"`
}

// Parse splits tag into Parts. ok is false when the tag has fewer than five
// segments. Segments past the sixth are ignored.
func Parse(tag string) (Parts, bool) {
	seg := strings.Split(tag, sep)
	if len(seg) < minSegments {
		return Parts{}, false
	}
	p := Parts{
		Project:    seg[0],
		Discipline: seg[1],
		Number:     seg[2],
		Phase:      seg[3],
		Emission:   seg[4],
	}
	if len(seg) > revIndex {
		p.Revision = seg[revIndex]
	}
	return p, true
}

// Build joins p back into a tag. The revision segment is omitted when empty.
func Build(p Parts) string {
	seg := []string{p.Project, p.Discipline, p.Number, p.Phase, p.Emission}
	if !revisions.IsEmpty(p.Revision) {
		seg = append(seg, p.Revision)
	}
	return strings.Join(seg, sep)
}

// Reconcile rewrites tag after a drawing number or revision edit and reports
// whether it changed. Tags with fewer than five segments are returned as is.
//
// The number segment is replaced when newNumber is set and differs from
// oldNumber. The revision suffix is only touched when the revision itself
// changed: a new revision is appended to a five-segment tag or replaces the
// sixth segment, and a cleared revision drops the suffix of a six-segment tag.
func Reconcile(tag, oldNumber, newNumber, oldRev, newRev string) (string, bool) {
	seg := strings.Split(tag, sep)
	if len(seg) < minSegments {
		return tag, false
	}

	changed := false
	if newNumber != "" && newNumber != oldNumber {
		seg[numberIndex] = newNumber
		changed = true
	}

	if oldRev != newRev {
		switch {
		case !revisions.IsEmpty(newRev):
			if len(seg) == minSegments {
				seg = append(seg, newRev)
			} else {
				seg[revIndex] = newRev
			}
			changed = true
		case len(seg) == minSegments+1:
			seg = seg[:minSegments]
			changed = true
		}
	}

	if !changed {
		return tag, false
	}
	return strings.Join(seg, sep), true
}
