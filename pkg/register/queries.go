package register

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"p9e.in/lppsync/models"
	"p9e.in/lppsync/pkg/keys"
	"p9e.in/lppsync/pkg/workflow"
)

// DrawingQuery is the filter and sort state of one register view.
type DrawingQuery struct {
	ProjectNumber string
	DWGSource     string
	TypeKey       string
	ElementKey    string
	State         workflow.State
	Search        string

	// Sort holds column names; a leading "-" sorts descending.
	Sort          []string
	Limit         int
	Offset        int
	WithRevisions bool
}

// sortable maps accepted sort names to columns.
var sortable = map[string]string{
	"layout_name":    "layout_name",
	"proj_num":       "proj_num",
	"dwg_source":     "dwg_source",
	"des_num":        "des_num",
	"tipo_key":       "tipo_key",
	"tipo_display":   "tipo_display",
	"elemento_key":   "elemento_key",
	"titulo":         "titulo",
	"r":              "r",
	"estado_interno": "estado_interno",
	"data_limite":    "data_limite",
	"responsavel":    "responsavel",
	"updated_at":     "updated_at",
}

// defaultOrder groups drawings the way the LPP lists them.
var defaultOrder = []string{"tipo_key", "elemento_key", "des_num", "layout_name"}

func (q DrawingQuery) apply(db *gorm.DB) (*gorm.DB, error) {
	if q.ProjectNumber != "" {
		db = db.Where("proj_num = ?", q.ProjectNumber)
	}
	if q.DWGSource != "" {
		db = db.Where("dwg_source = ?", q.DWGSource)
	}
	if q.TypeKey != "" {
		db = db.Where("tipo_key = ?", keys.NormalizeType(q.TypeKey))
	}
	if q.ElementKey != "" {
		db = db.Where("elemento_key = ?", keys.NormalizeElement(q.ElementKey))
	}
	if q.State != "" {
		db = db.Where("estado_interno = ?", q.State)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		db = db.Where("LOWER(layout_name) LIKE ? OR LOWER(titulo) LIKE ? OR LOWER(elemento_titulo) LIKE ? OR LOWER(des_num) LIKE ?",
			like, like, like, like)
	}

	order := q.Sort
	if len(order) == 0 {
		order = defaultOrder
	}
	for _, field := range order {
		desc := strings.HasPrefix(field, "-")
		col, ok := sortable[strings.TrimPrefix(field, "-")]
		if !ok {
			return nil, fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, field)
		}
		if desc {
			col += " DESC"
		}
		db = db.Order(col)
	}
	if len(q.Sort) > 0 {
		db = db.Order("id")
	}

	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	if q.WithRevisions {
		db = db.Preload("Revisions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id")
		})
	}
	return db, nil
}

// List returns the drawings matching q.
func (s *DrawingService) List(q DrawingQuery) ([]models.Drawing, error) {
	db, err := q.apply(s.db.Model(&models.Drawing{}))
	if err != nil {
		return nil, err
	}
	var out []models.Drawing
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list drawings: %w", err)
	}
	return out, nil
}

// Get retrieves a drawing by ID
func (s *DrawingService) Get(id uint) (*models.Drawing, error) {
	var d models.Drawing
	if err := s.db.First(&d, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// GetByLayout retrieves a drawing by its layout name, with revisions.
func (s *DrawingService) GetByLayout(layoutName string) (*models.Drawing, error) {
	var d models.Drawing
	err := s.db.Preload("Revisions", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id")
	}).Where("layout_name = ?", strings.TrimSpace(layoutName)).First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// Revisions returns the stored revisions of a drawing in stored order.
func (s *DrawingService) Revisions(id uint) ([]models.Revision, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	var out []models.Revision
	if err := s.db.Where("drawing_id = ?", id).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// History returns the workflow history of a drawing, oldest first.
func (s *DrawingService) History(id uint) ([]models.WorkflowHistory, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	var out []models.WorkflowHistory
	if err := s.db.Where("drawing_id = ?", id).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// StateCount is the number of drawings in one workflow state.
type StateCount struct {
	State workflow.State `json:"estado"`
	Label string         `json:"label"`
	Count int64          `json:"count"`
}

// StateCounts returns the number of drawings per stored state, in the
// display order of the states. States without drawings are included.
func (s *DrawingService) StateCounts(projNum string) ([]StateCount, error) {
	var rows []struct {
		State workflow.State
		Count int64
	}
	db := s.db.Model(&models.Drawing{})
	if projNum != "" {
		db = db.Where("proj_num = ?", projNum)
	}
	if err := db.Select("estado_interno AS state, COUNT(*) AS count").
		Group("estado_interno").Scan(&rows).Error; err != nil {
		return nil, err
	}

	byState := make(map[workflow.State]int64, len(rows))
	for _, r := range rows {
		byState[r.State] = r.Count
	}
	out := make([]StateCount, 0, len(workflow.States()))
	for _, info := range workflow.States() {
		out = append(out, StateCount{State: info.Code, Label: info.Label, Count: byState[info.Code]})
	}
	return out, nil
}

// DWGCount is the number of drawings coming from one DWG file.
type DWGCount struct {
	DWGSource string `gorm:"column:dwg_source" json:"dwg_source"`
	Count     int64  `gorm:"column:count" json:"count"`
}

// RegisterStats summarises the whole register.
type RegisterStats struct {
	TotalProjects int64        `json:"total_projects"`
	TotalDrawings int64        `json:"total_drawings"`
	TotalDWGs     int64        `json:"total_dwgs"`
	DWGs          []DWGCount   `json:"dwgs"`
	States        []StateCount `json:"states"`
}

// RegisterStats returns register-wide counts.
func (s *DrawingService) RegisterStats() (*RegisterStats, error) {
	var st RegisterStats
	if err := s.db.Model(&models.Project{}).Count(&st.TotalProjects).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Drawing{}).Count(&st.TotalDrawings).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Drawing{}).
		Select("dwg_source, COUNT(*) AS count").
		Group("dwg_source").Order("dwg_source").
		Scan(&st.DWGs).Error; err != nil {
		return nil, err
	}
	st.TotalDWGs = int64(len(st.DWGs))

	states, err := s.StateCounts("")
	if err != nil {
		return nil, err
	}
	st.States = states
	return &st, nil
}

// Option is a key with the display text it was derived from.
type Option struct {
	Key     string `gorm:"column:opt_key" json:"key"`
	Display string `gorm:"column:opt_display" json:"display"`
}

// DistinctTypes lists the drawing types in use, optionally for one project.
func (s *DrawingService) DistinctTypes(projNum string) ([]Option, error) {
	db := s.db.Model(&models.Drawing{}).Where("tipo_key <> ''")
	if projNum != "" {
		db = db.Where("proj_num = ?", projNum)
	}
	var out []Option
	err := db.Select("tipo_key AS opt_key, MIN(tipo_display) AS opt_display").
		Group("tipo_key").Order("tipo_key").Scan(&out).Error
	return out, err
}

// DistinctElements lists the elements in use, optionally within one type.
func (s *DrawingService) DistinctElements(typeKey string) ([]Option, error) {
	db := s.db.Model(&models.Drawing{}).Where("elemento_key <> ''")
	if typeKey != "" {
		db = db.Where("tipo_key = ?", keys.NormalizeType(typeKey))
	}
	var out []Option
	err := db.Select("elemento_key AS opt_key, MIN(elemento) AS opt_display").
		Group("elemento_key").Order("elemento_key").Scan(&out).Error
	return out, err
}

// DWGSources lists the distinct DWG file names, optionally for one project.
func (s *DrawingService) DWGSources(projNum string) ([]string, error) {
	db := s.db.Model(&models.Drawing{}).Where("dwg_source <> ''")
	if projNum != "" {
		db = db.Where("proj_num = ?", projNum)
	}
	var out []string
	err := db.Distinct().Order("dwg_source").Pluck("dwg_source", &out).Error
	return out, err
}

// Delete removes one drawing with its revisions and history.
func (s *DrawingService) Delete(id uint) error {
	n, err := s.deleteWhere("id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByLayout removes the drawing with the given layout name.
func (s *DrawingService) DeleteByLayout(layoutName string) (int64, error) {
	return s.deleteWhere("layout_name = ?", strings.TrimSpace(layoutName))
}

// DeleteByDWGSource removes every drawing that came from one DWG file.
func (s *DrawingService) DeleteByDWGSource(dwgSource string) (int64, error) {
	return s.deleteWhere("dwg_source = ?", dwgSource)
}

// DeleteByType removes every drawing of a type. Display text or key may be
// given.
func (s *DrawingService) DeleteByType(tipo string) (int64, error) {
	return s.deleteWhere("tipo_key = ?", keys.NormalizeType(tipo))
}

// DeleteByElement removes every drawing of an element.
func (s *DrawingService) DeleteByElement(elemento string) (int64, error) {
	return s.deleteWhere("elemento_key = ?", keys.NormalizeElement(elemento))
}

// DeleteAll empties the register, keeping projects.
func (s *DrawingService) DeleteAll() (int64, error) {
	return s.deleteWhere("1 = 1")
}

func (s *DrawingService) deleteWhere(query interface{}, args ...interface{}) (int64, error) {
	var n int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = deleteDrawingsWhere(tx, query, args...)
		return err
	})
	return n, err
}

// deleteDrawingsWhere removes the matching drawings together with their
// revisions and history. It must run inside a transaction.
func deleteDrawingsWhere(tx *gorm.DB, query interface{}, args ...interface{}) (int64, error) {
	var ids []uint
	if err := tx.Model(&models.Drawing{}).Where(query, args...).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to select drawings: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := tx.Where("drawing_id IN ?", ids).Delete(&models.Revision{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete revisions: %w", err)
	}
	if err := tx.Where("drawing_id IN ?", ids).Delete(&models.WorkflowHistory{}).Error; err != nil {
		return 0, fmt.Errorf("failed to delete history: %w", err)
	}
	res := tx.Where("id IN ?", ids).Delete(&models.Drawing{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete drawings: %w", res.Error)
	}
	return res.RowsAffected, nil
}
