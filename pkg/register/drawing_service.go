// Package register owns the drawing register: upserts from imports, user
// edits with their audit trail, project bookkeeping and deletes.
package register

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/keys"
	"p9e.in/lppsync/pkg/layout"
	"p9e.in/lppsync/pkg/revisions"
	"p9e.in/lppsync/pkg/workflow"
)

// SystemAuthor signs history entries written without a user.
const SystemAuthor = "system"

// DrawingService handles drawing persistence.
type DrawingService struct {
	db *gorm.DB
}

// NewDrawingService creates a new drawing service instance
func NewDrawingService(db *gorm.DB) *DrawingService {
	return &DrawingService{db: db}
}

// StateUpdate carries the optional workflow fields of an edit. Nil fields
// keep their stored value.
type StateUpdate struct {
	State       *workflow.State
	Comment     *string
	Deadline    *string
	Responsible *string
	Author      string
}

// DrawingEdit is a save from the register grid. Nil fields keep their stored
// value.
type DrawingEdit struct {
	DrawingNumber       *string `json:"des_num"`
	Revision            *string `json:"r"`
	RevisionDate        *string `json:"r_data"`
	RevisionDescription *string `json:"r_desc"`
	Title               *string `json:"titulo"`
	TypeDisplay         *string `json:"tipo_display"`
	Element             *string `json:"elemento"`
	Phase               *string `json:"fase"`
	Emission            *string `json:"emissao"`
	Date                *string `json:"data"`
	DWGSource           *string `json:"dwg_source"`

	State       *workflow.State `json:"estado_interno"`
	Comment     *string         `json:"comentario"`
	Deadline    *string         `json:"data_limite"`
	Responsible *string         `json:"responsavel"`

	Author string `json:"-"`
}

func (e DrawingEdit) stateUpdate() StateUpdate {
	return StateUpdate{
		State:       e.State,
		Comment:     e.Comment,
		Deadline:    e.Deadline,
		Responsible: e.Responsible,
		Author:      e.Author,
	}
}

// UpsertDrawing inserts or updates the drawing identified by the record's
// layout name and replaces its revision set, in one transaction. Workflow
// fields of an existing drawing are left as they are.
func (s *DrawingService) UpsertDrawing(rec *models.Record) (uint, error) {
	if rec == nil || strings.TrimSpace(rec.LayoutName) == "" {
		return 0, ErrMissingLayout
	}
	revs := revisions.Extract(rec)

	var id uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var d models.Drawing
		err := tx.Where("layout_name = ?", strings.TrimSpace(rec.LayoutName)).First(&d).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			d = models.Drawing{State: workflow.DefaultState}
			applyRecord(&d, rec)
			if err := tx.Create(&d).Error; err != nil {
				return fmt.Errorf("failed to create drawing: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to look up drawing: %w", err)
		default:
			applyRecord(&d, rec)
			if err := tx.Save(&d).Error; err != nil {
				return fmt.Errorf("failed to update drawing: %w", err)
			}
		}
		id = d.ID
		return replaceRevisions(tx, d.ID, revs)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func applyRecord(d *models.Drawing, rec *models.Record) {
	d.LayoutName = strings.TrimSpace(rec.LayoutName)
	d.ProjectNumber = rec.ProjectNumber
	d.DWGSource = rec.DWGSource
	d.Phase = rec.Phase
	d.PhasePrefix = rec.PhasePrefix
	d.Emission = rec.Emission
	d.Date = rec.Date
	d.Prefix = rec.Prefix
	d.DrawingNumber = rec.DrawingNumber
	d.TypeDisplay = rec.TypeDisplay
	d.TypeKey = keys.NormalizeType(rec.TypeDisplay)
	d.Element = rec.Element
	d.ElementKey = keys.NormalizeElement(rec.Element)
	d.Title = rec.Title
	d.ElementTitle = rec.ElementTitle()
	d.CADID = rec.CADID

	d.Extra = nil
	if len(rec.Extra) > 0 {
		d.Extra = make(datatypes.JSONMap, len(rec.Extra))
		for k, v := range rec.Extra {
			d.Extra[k] = v
		}
	}
}

// ReplaceRevisions deletes every stored revision of a drawing and inserts
// list in its place. The drawing's current revision columns follow the new
// set.
func (s *DrawingService) ReplaceRevisions(drawingID uint, list []revisions.Revision) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Drawing{}).Where("id = ?", drawingID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return replaceRevisions(tx, drawingID, list)
	})
}

func replaceRevisions(tx *gorm.DB, drawingID uint, list []revisions.Revision) error {
	if err := tx.Where("drawing_id = ?", drawingID).Delete(&models.Revision{}).Error; err != nil {
		return fmt.Errorf("failed to delete revisions: %w", err)
	}

	// one row per letter; a repeated code keeps its first slot
	seen := make(map[string]bool, len(list))
	kept := make([]revisions.Revision, 0, len(list))
	for _, r := range list {
		code := strings.ToUpper(strings.TrimSpace(r.Code))
		if revisions.IsEmpty(code) || seen[code] {
			continue
		}
		seen[code] = true
		kept = append(kept, r)
	}

	if len(kept) > 0 {
		rows := make([]models.Revision, 0, len(kept))
		for _, r := range kept {
			rows = append(rows, models.Revision{
				DrawingID:   drawingID,
				Code:        r.Code,
				Date:        r.Date,
				Description: r.Description,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert revisions: %w", err)
		}
	}

	cur := revisions.Current(kept)
	return tx.Model(&models.Drawing{}).Where("id = ?", drawingID).Updates(map[string]interface{}{
		"r":      cur.Code,
		"r_data": cur.Date,
		"r_desc": cur.Description,
	}).Error
}

// UpdateStateAndComment applies a workflow edit. A history entry holding the
// previous values is written only when the state or the comment changes.
func (s *DrawingService) UpdateStateAndComment(id uint, upd StateUpdate) (*models.Drawing, error) {
	if upd.State != nil && !upd.State.Valid() {
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidState, *upd.State)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var d models.Drawing
		if err := tx.First(&d, id).Error; err != nil {
			return notFound(err)
		}
		return applyStateUpdate(tx, &d, upd)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

func applyStateUpdate(tx *gorm.DB, d *models.Drawing, upd StateUpdate) error {
	newState := d.State
	if upd.State != nil {
		newState = *upd.State
	}
	if newState != d.State && d.State.Valid() && !workflow.CanTransition(d.State, newState) {
		return fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidState, d.State, newState)
	}
	newComment := d.Comment
	if upd.Comment != nil {
		newComment = *upd.Comment
	}
	newDeadline := d.Deadline
	if upd.Deadline != nil {
		newDeadline = strings.TrimSpace(*upd.Deadline)
	}
	newResponsible := d.Responsible
	if upd.Responsible != nil {
		newResponsible = strings.TrimSpace(*upd.Responsible)
	}

	if newState != d.State || newComment != d.Comment {
		author := upd.Author
		if author == "" {
			author = SystemAuthor
		}
		entry := models.WorkflowHistory{
			DrawingID:       d.ID,
			PrevState:       d.State,
			NewState:        newState,
			PrevComment:     d.Comment,
			NewComment:      newComment,
			PrevDeadline:    d.Deadline,
			PrevResponsible: d.Responsible,
			Author:          author,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to write history: %w", err)
		}
	}

	return tx.Model(d).Updates(map[string]interface{}{
		"estado_interno": newState,
		"comentario":     newComment,
		"data_limite":    newDeadline,
		"responsavel":    newResponsible,
	}).Error
}

// EditDrawing saves a register edit. A changed drawing number or revision
// rewrites the layout name; the new name must not belong to another drawing.
func (s *DrawingService) EditDrawing(id uint, edit DrawingEdit) (*models.Drawing, error) {
	if edit.State != nil && !edit.State.Valid() {
		return nil, fmt.Errorf("%w: %q", workflow.ErrInvalidState, *edit.State)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var d models.Drawing
		if err := tx.First(&d, id).Error; err != nil {
			return notFound(err)
		}

		newNumber := d.DrawingNumber
		if edit.DrawingNumber != nil {
			newNumber = strings.TrimSpace(*edit.DrawingNumber)
		}
		newRev := d.Revision
		if edit.Revision != nil {
			newRev = strings.TrimSpace(*edit.Revision)
		}

		tag, changed := layout.Reconcile(d.LayoutName, d.DrawingNumber, newNumber, d.Revision, newRev)
		if changed {
			var n int64
			if err := tx.Model(&models.Drawing{}).Where("layout_name = ? AND id <> ?", tag, d.ID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: %s", ErrLayoutConflict, tag)
			}
			zap.L().Info("Layout name rewritten",
				zap.Uint("drawing_id", d.ID),
				zap.String("from", d.LayoutName),
				zap.String("to", tag),
			)
		}

		updates := map[string]interface{}{
			"layout_name": tag,
			"des_num":     newNumber,
			"r":           newRev,
		}
		setIf(updates, "r_data", edit.RevisionDate)
		setIf(updates, "r_desc", edit.RevisionDescription)
		setIf(updates, "fase", edit.Phase)
		setIf(updates, "emissao", edit.Emission)
		setIf(updates, "data", edit.Date)
		setIf(updates, "dwg_source", edit.DWGSource)
		if edit.TypeDisplay != nil {
			updates["tipo_display"] = *edit.TypeDisplay
			updates["tipo_key"] = keys.NormalizeType(*edit.TypeDisplay)
		}
		if edit.Element != nil || edit.Title != nil {
			rec := models.Record{Element: d.Element, Title: d.Title}
			if edit.Element != nil {
				rec.Element = strings.TrimSpace(*edit.Element)
				updates["elemento"] = rec.Element
				updates["elemento_key"] = keys.NormalizeElement(rec.Element)
			}
			if edit.Title != nil {
				rec.Title = strings.TrimSpace(*edit.Title)
				updates["titulo"] = rec.Title
			}
			updates["elemento_titulo"] = rec.ElementTitle()
		}

		// history compares against the row as it was before this save
		before := d
		if err := tx.Model(&d).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update drawing: %w", err)
		}
		return applyStateUpdate(tx, &before, edit.stateUpdate())
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

func setIf(updates map[string]interface{}, column string, v *string) {
	if v != nil {
		updates[column] = strings.TrimSpace(*v)
	}
}

// SyncOverdue persists the automatic overdue transition for every drawing
// whose effective state at now differs from the stored one. Each change is
// recorded in the history as authored by the system.
func (s *DrawingService) SyncOverdue(now time.Time) (int, error) {
	var candidates []models.Drawing
	if err := s.db.Where("estado_interno = ? AND data_limite <> ''", workflow.StateNeedsRevision).
		Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("failed to load drawings: %w", err)
	}

	changed := 0
	for _, d := range candidates {
		eff := workflow.EffectiveState(d.State, d.Deadline, now)
		if eff == d.State {
			continue
		}
		applied := false
		err := s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Drawing{}).
				Where("id = ? AND estado_interno = ?", d.ID, d.State).
				Update("estado_interno", eff)
			if res.Error != nil || res.RowsAffected == 0 {
				return res.Error
			}
			applied = true
			return tx.Create(&models.WorkflowHistory{
				DrawingID:       d.ID,
				PrevState:       d.State,
				NewState:        eff,
				PrevComment:     d.Comment,
				NewComment:      d.Comment,
				PrevDeadline:    d.Deadline,
				PrevResponsible: d.Responsible,
				Author:          SystemAuthor,
			}).Error
		})
		if err != nil {
			return changed, fmt.Errorf("failed to mark drawing %d overdue: %w", d.ID, err)
		}
		if applied {
			changed++
		}
	}

	if changed > 0 {
		zap.L().Info("Overdue drawings updated", zap.Int("count", changed))
	}
	return changed, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
