package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
	"p9e.in/lppsync/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "15102026_create_register_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Project{}, &models.Drawing{}, &models.Revision{}, &models.WorkflowHistory{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("workflow_history", "revisions", "drawings", "projects")
			},
		},
		{
			ID: "15102026_add_drawing_lookup_indexes",
			Migrate: func(tx *gorm.DB) error {
				// revisions are always read in insertion order per drawing
				if err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_revisions_drawing_id_id ON revisions (drawing_id, id)").Error; err != nil {
					return err
				}
				return tx.Exec("CREATE INDEX IF NOT EXISTS idx_workflow_history_drawing_created ON workflow_history (drawing_id, created_at)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				if err := tx.Exec("DROP INDEX IF EXISTS idx_revisions_drawing_id_id").Error; err != nil {
					return err
				}
				return tx.Exec("DROP INDEX IF EXISTS idx_workflow_history_drawing_created").Error
			},
		},
	})

	return m.Migrate()
}
