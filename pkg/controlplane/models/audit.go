package models

import "time"

// AuditLevel is the severity of an administrative history entry.
type AuditLevel string

const (
	AuditLevelInfo     AuditLevel = "INFO"
	AuditLevelWarning  AuditLevel = "WARNING"
	AuditLevelCritical AuditLevel = "CRITICAL"
)

// AuditLog is one entry of the administrative history.
type AuditLog struct {
	ID      uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Date    time.Time  `gorm:"not null;index" json:"date"`
	Message string     `gorm:"type:text;not null" json:"message"`
	Level   AuditLevel `gorm:"size:15;not null" json:"level"`
	Logger  string     `gorm:"size:30;not null" json:"logger"`
}

// TableName returns the table name for AuditLog.
func (AuditLog) TableName() string {
	return "audit_logs"
}
