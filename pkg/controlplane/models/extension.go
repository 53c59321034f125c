package models

import "time"

// Extension is the persisted state of an optional feature module.
type Extension struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:150" json:"name"`
	Enabled   bool      `gorm:"default:false" json:"enabled"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Extension.
func (Extension) TableName() string {
	return "extensions"
}
