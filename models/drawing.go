package models

import (
	"time"

	"gorm.io/datatypes"
	"p9e.in/lppsync/pkg/workflow"
)

// Drawing represents one drawing sheet of the register. LayoutName is the
// natural key; ID is the surrogate key used by revisions and history.
type Drawing struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	LayoutName    string `gorm:"column:layout_name;size:255;uniqueIndex;not null" json:"layout_name"`
	ProjectNumber string `gorm:"column:proj_num;size:50;index" json:"proj_num"`
	DWGSource     string `gorm:"column:dwg_source;size:255;index" json:"dwg_source"`
	Phase         string `gorm:"column:fase;size:100" json:"fase"`
	PhasePrefix   string `gorm:"column:fase_pfix;size:20" json:"fase_pfix"`
	Emission      string `gorm:"column:emissao;size:20" json:"emissao"`
	Date          string `gorm:"column:data;size:30" json:"data"` // first issue
	Prefix        string `gorm:"column:pfix;size:20" json:"pfix"`
	DrawingNumber string `gorm:"column:des_num;size:50" json:"des_num"`
	TypeDisplay   string `gorm:"column:tipo_display;size:255" json:"tipo_display"`
	TypeKey       string `gorm:"column:tipo_key;size:255;index:idx_tipo_elemento" json:"tipo_key"`
	Element       string `gorm:"column:elemento;size:255" json:"elemento"`
	ElementKey    string `gorm:"column:elemento_key;size:255;index:idx_tipo_elemento" json:"elemento_key"`
	Title         string `gorm:"column:titulo;type:text" json:"titulo"`
	ElementTitle  string `gorm:"column:elemento_titulo;type:text" json:"elemento_titulo"`

	// Current revision, mirrored from the last entry of the revision set.
	Revision            string `gorm:"column:r;size:10" json:"r"`
	RevisionDate        string `gorm:"column:r_data;size:30" json:"r_data"`
	RevisionDescription string `gorm:"column:r_desc;type:text" json:"r_desc"`

	// Workflow fields are owned by the UI; imports never overwrite them.
	State       workflow.State `gorm:"column:estado_interno;type:varchar(20);default:'projeto';index" json:"estado_interno"`
	Comment     string         `gorm:"column:comentario;type:text" json:"comentario"`
	Deadline    string         `gorm:"column:data_limite;size:30" json:"data_limite"`
	Responsible string         `gorm:"column:responsavel;size:100" json:"responsavel"`

	CADID     string            `gorm:"column:id_cad;size:100" json:"id_cad"`
	Extra     datatypes.JSONMap `gorm:"column:extra" json:"extra,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	// Relationships
	Revisions []Revision        `gorm:"foreignKey:DrawingID" json:"revisions,omitempty"`
	History   []WorkflowHistory `gorm:"foreignKey:DrawingID" json:"history,omitempty"`
}

// TableName specifies the table name for Drawing
func (Drawing) TableName() string {
	return "drawings"
}

// Revision is one lettered issue of a drawing. The set belonging to a drawing
// is always replaced as a whole.
type Revision struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	DrawingID   uint   `gorm:"not null;index" json:"drawing_id"`
	Code        string `gorm:"column:rev_code;size:10" json:"rev_code"`
	Date        string `gorm:"column:rev_date;size:30" json:"rev_date"`
	Description string `gorm:"column:rev_desc;type:text" json:"rev_desc"`
}

// TableName specifies the table name for Revision
func (Revision) TableName() string {
	return "revisions"
}

// WorkflowHistory is an append-only audit entry written when a saved edit
// changes a drawing's workflow state or comment.
type WorkflowHistory struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	DrawingID       uint           `gorm:"not null;index" json:"drawing_id"`
	PrevState       workflow.State `gorm:"type:varchar(20)" json:"prev_state"`
	NewState        workflow.State `gorm:"type:varchar(20)" json:"new_state"`
	PrevComment     string         `gorm:"type:text" json:"prev_comment"`
	NewComment      string         `gorm:"type:text" json:"new_comment"`
	PrevDeadline    string         `gorm:"size:30" json:"prev_deadline"`
	PrevResponsible string         `gorm:"size:100" json:"prev_responsible"`
	Author          string         `gorm:"size:100" json:"author"`
	CreatedAt       time.Time      `json:"created_at"`
}

// TableName specifies the table name for WorkflowHistory
func (WorkflowHistory) TableName() string {
	return "workflow_history"
}
