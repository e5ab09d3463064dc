package register

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"p9e.in/lppsync/models"
)

// ProjectService handles project management operations
type ProjectService struct {
	db *gorm.DB
}

// NewProjectService creates a new project service instance
func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db}
}

// ProjectInput carries the descriptive fields of a project.
type ProjectInput struct {
	ProjectNumber string `json:"proj_num"`
	Name          string `json:"proj_nome"`
	Client        string `json:"cliente"`
	Site          string `json:"obra"`
	Location      string `json:"localizacao"`
	Specialty     string `json:"especialidade"`
	Designer      string `json:"projetou"`
}

// ProjectInputFromRecord takes the project columns of an imported row.
func ProjectInputFromRecord(rec *models.Record) ProjectInput {
	return ProjectInput{
		ProjectNumber: rec.ProjectNumber,
		Name:          rec.ProjectName,
		Client:        rec.Client,
		Site:          rec.Site,
		Location:      rec.Location,
		Specialty:     rec.Specialty,
		Designer:      rec.Designer,
	}
}

// Upsert creates the project or updates it by project number. On update
// only non-empty input fields overwrite stored values.
func (ps *ProjectService) Upsert(in ProjectInput) (uint, error) {
	num := strings.TrimSpace(in.ProjectNumber)
	if num == "" {
		return 0, ErrMissingProjectNum
	}

	var p models.Project
	err := ps.db.Where("proj_num = ?", num).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = models.Project{ProjectNumber: num}
		fillProject(&p, in, false)
		if err := ps.db.Create(&p).Error; err != nil {
			return 0, fmt.Errorf("failed to create project: %w", err)
		}
		return p.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up project: %w", err)
	}

	fillProject(&p, in, false)
	if err := ps.db.Save(&p).Error; err != nil {
		return 0, fmt.Errorf("failed to update project: %w", err)
	}
	return p.ID, nil
}

// fillProject copies input fields onto p. Empty fields are skipped unless
// overwrite is set.
func fillProject(p *models.Project, in ProjectInput, overwrite bool) {
	set := func(dst *string, v string) {
		v = strings.TrimSpace(v)
		if v != "" || overwrite {
			*dst = v
		}
	}
	set(&p.Name, in.Name)
	set(&p.Client, in.Client)
	set(&p.Site, in.Site)
	set(&p.Location, in.Location)
	set(&p.Specialty, in.Specialty)
	set(&p.Designer, in.Designer)
}

// Create adds a new project. An existing project number is rejected.
func (ps *ProjectService) Create(in ProjectInput) (*models.Project, error) {
	num := strings.TrimSpace(in.ProjectNumber)
	if num == "" {
		return nil, ErrMissingProjectNum
	}

	var n int64
	if err := ps.db.Model(&models.Project{}).Where("proj_num = ?", num).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectExists, num)
	}

	p := models.Project{ProjectNumber: num}
	fillProject(&p, in, true)
	if err := ps.db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return &p, nil
}

// Update replaces the descriptive fields of a project.
func (ps *ProjectService) Update(projNum string, in ProjectInput) (*models.Project, error) {
	p, err := ps.Get(projNum)
	if err != nil {
		return nil, err
	}
	fillProject(p, in, true)
	if err := ps.db.Save(p).Error; err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

// Get retrieves a project by number
func (ps *ProjectService) Get(projNum string) (*models.Project, error) {
	var p models.Project
	if err := ps.db.Where("proj_num = ?", strings.TrimSpace(projNum)).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// List returns all projects ordered by number.
func (ps *ProjectService) List() ([]models.Project, error) {
	var out []models.Project
	if err := ps.db.Order("proj_num").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectStats aggregates the drawings of one project.
type ProjectStats struct {
	ProjectNumber  string           `json:"proj_num"`
	DrawingCount   int64            `json:"drawing_count"`
	DWGSourceCount int64            `json:"dwg_source_count"`
	Types          map[string]int64 `json:"types"`
}

// Stats counts a project's drawings, its distinct DWG sources and the
// drawings per type display text.
func (ps *ProjectService) Stats(projNum string) (*ProjectStats, error) {
	st := &ProjectStats{ProjectNumber: projNum, Types: map[string]int64{}}

	base := func() *gorm.DB {
		return ps.db.Model(&models.Drawing{}).Where("proj_num = ?", projNum)
	}
	if err := base().Count(&st.DrawingCount).Error; err != nil {
		return nil, err
	}
	if err := base().Where("dwg_source <> ''").Distinct("dwg_source").Count(&st.DWGSourceCount).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		TypeDisplay string `gorm:"column:tipo_display"`
		Count       int64  `gorm:"column:count"`
	}
	if err := base().Select("tipo_display, COUNT(*) AS count").Group("tipo_display").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		st.Types[r.TypeDisplay] = r.Count
	}
	return st, nil
}

// DeleteResult reports what a project delete removed.
type DeleteResult struct {
	ProjectNumber   string `json:"proj_num"`
	DrawingsDeleted int64  `json:"drawings_deleted"`
}

// Delete removes a project. Without cascade a project that still owns
// drawings is left alone and a *DependentsError carries the count. With
// cascade its drawings, their revisions and history go in the same
// transaction.
func (ps *ProjectService) Delete(projNum string, cascade bool) (*DeleteResult, error) {
	res := &DeleteResult{ProjectNumber: projNum}
	err := ps.db.Transaction(func(tx *gorm.DB) error {
		var p models.Project
		if err := tx.Where("proj_num = ?", projNum).First(&p).Error; err != nil {
			return notFound(err)
		}

		var n int64
		if err := tx.Model(&models.Drawing{}).Where("proj_num = ?", projNum).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 && !cascade {
			return &DependentsError{ProjectNumber: projNum, Count: n}
		}

		deleted, err := deleteDrawingsWhere(tx, "proj_num = ?", projNum)
		if err != nil {
			return err
		}
		res.DrawingsDeleted = deleted
		return tx.Delete(&p).Error
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Project deleted",
		zap.String("proj_num", projNum),
		zap.Int64("drawings_deleted", res.DrawingsDeleted),
	)
	return res, nil
}
