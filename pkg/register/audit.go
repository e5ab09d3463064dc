package register

import (
	"fmt"

	"gorm.io/gorm"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/keys"
	"p9e.in/lppsync/pkg/layout"
	"p9e.in/lppsync/pkg/revisions"
)

// Audit problems.
const (
	ProblemBadLayout        = "layout name has fewer than five segments"
	ProblemNumberMismatch   = "layout number segment differs from des_num"
	ProblemTypeKeyDrift     = "tipo_key does not match tipo_display"
	ProblemElementKeyDrift  = "elemento_key does not match elemento"
	ProblemRevisionMismatch = "r differs from the last stored revision"
)

// AuditIssue is one inconsistency found in a stored drawing.
type AuditIssue struct {
	DrawingID  uint   `json:"drawing_id"`
	LayoutName string `json:"layout_name"`
	Problem    string `json:"problem"`
}

// AuditReport is the outcome of Audit.
type AuditReport struct {
	Drawings int          `json:"drawings"`
	Issues   []AuditIssue `json:"issues"`
}

// Audit checks the stored drawings of a project (all when projNum is empty)
// for derived values that no longer agree with their source.
func (s *DrawingService) Audit(projNum string) (*AuditReport, error) {
	db := s.db.Preload("Revisions", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") })
	if projNum != "" {
		db = db.Where("proj_num = ?", projNum)
	}
	var list []models.Drawing
	if err := db.Order("layout_name").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to load drawings: %w", err)
	}

	rep := &AuditReport{Drawings: len(list), Issues: []AuditIssue{}}
	add := func(d models.Drawing, problem string) {
		rep.Issues = append(rep.Issues, AuditIssue{DrawingID: d.ID, LayoutName: d.LayoutName, Problem: problem})
	}
	for _, d := range list {
		if p, ok := layout.Parse(d.LayoutName); !ok {
			add(d, ProblemBadLayout)
		} else if d.DrawingNumber != "" && p.Number != d.DrawingNumber {
			add(d, ProblemNumberMismatch)
		}
		if d.TypeKey != keys.NormalizeType(d.TypeDisplay) {
			add(d, ProblemTypeKeyDrift)
		}
		if d.ElementKey != keys.NormalizeElement(d.Element) {
			add(d, ProblemElementKeyDrift)
		}
		if cur := revisions.Current(revisions.FromModels(d.Revisions)); cur.Code != d.Revision {
			add(d, ProblemRevisionMismatch)
		}
	}
	return rep, nil
}
