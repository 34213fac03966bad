package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// User is a marketplace account in the PostgreSQL directory. Chat identity
// (Identity) is derived from this record when a session token is issued.
type User struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"uniqueIndex" json:"email"`
	DisplayName string `gorm:"not null" json:"display_name"`
	// Role is one of "brand", "franchisee" or "admin".
	Role     string `gorm:"not null;default:franchisee" json:"role"`
	PhotoRef string `json:"photo_ref,omitempty"`
	// Categories are the franchise categories the account is interested in.
	Categories pq.StringArray `gorm:"type:text[]" json:"categories"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the record has no id yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}
