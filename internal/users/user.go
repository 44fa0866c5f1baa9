package users

import (
	"strings"
	"time"
)

const maxDisplayNameLength = 320

// User is a contributor known to TrustTrace. ReportCount only ever grows.
type User struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	ReportCount int       `gorm:"column:report_count;not null;default:0;index"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

func normalizeDisplayName(value string) string {
	trimmed := normalize(value)
	if len(trimmed) > maxDisplayNameLength {
		return trimmed[:maxDisplayNameLength]
	}
	return trimmed
}
