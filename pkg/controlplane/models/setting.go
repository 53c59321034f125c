package models

import "time"

// Runtime setting keys. Values stored here override the file configuration.
const (
	// SettingPasswordScheme selects the scheme new passwords are encoded with.
	SettingPasswordScheme = "admin.password_scheme"
	// SettingAuthenticationType is "local" or "external".
	SettingAuthenticationType = "admin.authentication_type"
)

// Setting stores system-wide key-value settings.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Setting.
func (Setting) TableName() string {
	return "settings"
}
