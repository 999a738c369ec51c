package project

import "time"

type Project struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"column:name;not null"`
	Description string    `gorm:"column:description"`
	CreatedBy   string    `gorm:"column:created_by"`
	IsPublic    bool      `gorm:"column:is_public;not null;default:false"`
	DataSource  string    `gorm:"column:data_source;not null;default:excel"`
	Category    string    `gorm:"column:category"`
	Tags        []string  `gorm:"column:tags;serializer:json"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectColumn is one column of the last upload. SelectedPosition is -1 when
// the column is not part of the curated selection.
type ProjectColumn struct {
	ID               int64     `gorm:"primaryKey"`
	ProjectID        int64     `gorm:"column:project_id;not null;uniqueIndex:idx_project_columns_project_column"`
	ColumnName       string    `gorm:"column:column_name;not null;uniqueIndex:idx_project_columns_project_column"`
	Position         int       `gorm:"column:position;not null"`
	IsSelected       bool      `gorm:"column:is_selected;not null;default:false"`
	SelectedPosition int       `gorm:"column:selected_position;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProjectColumn) TableName() string {
	return "project_columns"
}

type ProjectData struct {
	ID        int64                  `gorm:"primaryKey"`
	ProjectID int64                  `gorm:"column:project_id;not null;index"`
	RowData   map[string]interface{} `gorm:"column:row_data;serializer:json"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (ProjectData) TableName() string {
	return "project_data"
}

type ProjectUser struct {
	ID        int64     `gorm:"primaryKey"`
	ProjectID int64     `gorm:"column:project_id;not null;index"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	Email     string    `gorm:"column:email"`
	Role      string    `gorm:"column:role;not null;default:viewer"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ProjectUser) TableName() string {
	return "project_users"
}
