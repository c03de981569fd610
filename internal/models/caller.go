package models

import (
	"time"
)

// Caller is a row of the built-in credential schema used by the database
// identity store when no custom caller query is configured.
type Caller struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"` // pbkdf2 or bcrypt encoded form

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Caller) TableName() string {
	return "callers"
}

// CallerGroup maps a caller name to one group name.
type CallerGroup struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	CallerName string `gorm:"index;not null;uniqueIndex:idx_caller_group"`
	GroupName  string `gorm:"not null;uniqueIndex:idx_caller_group"`

	CreatedAt time.Time
}

func (CallerGroup) TableName() string {
	return "caller_groups"
}
