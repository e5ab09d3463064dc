package models

import "time"

// Project is one engineering project. ProjectNumber is the natural key.
type Project struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ProjectNumber string    `gorm:"column:proj_num;size:50;uniqueIndex;not null" json:"proj_num"`
	Name          string    `gorm:"column:proj_nome;size:255" json:"proj_nome"`
	Client        string    `gorm:"column:cliente;size:255" json:"cliente"`
	Site          string    `gorm:"column:obra;size:255" json:"obra"`
	Location      string    `gorm:"column:localizacao;size:255" json:"localizacao"`
	Specialty     string    `gorm:"column:especialidade;size:100" json:"especialidade"`
	Designer      string    `gorm:"column:projetou;size:100" json:"projetou"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for Project
func (Project) TableName() string {
	return "projects"
}
