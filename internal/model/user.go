package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

// Capabilities is the closed set of named moderator permissions. It is only
// ever non-zero on users with IsMod set.
type Capabilities struct {
	DeleteUsers    bool `gorm:"default:false" json:"delete_users"`
	DeletePosts    bool `gorm:"default:false" json:"delete_posts"`
	DeleteComments bool `gorm:"default:false" json:"delete_comments"`
	ViewReports    bool `gorm:"default:false" json:"view_reports"`
	ResolveReports bool `gorm:"default:false" json:"resolve_reports"`
	EditPosts      bool `gorm:"default:false" json:"edit_posts"`
	PromoteMods    bool `gorm:"default:false" json:"promote_mods"`
}

// FullCapabilities grants every permission. Used for the bootstrap moderator.
func FullCapabilities() Capabilities {
	return Capabilities{
		DeleteUsers:    true,
		DeletePosts:    true,
		DeleteComments: true,
		ViewReports:    true,
		ResolveReports: true,
		EditPosts:      true,
		PromoteMods:    true,
	}
}

// Any reports whether at least one capability is granted.
func (c Capabilities) Any() bool {
	return c.DeleteUsers || c.DeletePosts || c.DeleteComments ||
		c.ViewReports || c.ResolveReports || c.EditPosts || c.PromoteMods
}

type User struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string       `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string       `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash string       `gorm:"size:255;not null" json:"-"`
	Status       string       `gorm:"size:20;not null;default:active" json:"status"`
	IsMod        bool         `gorm:"default:false" json:"is_mod"`
	Capabilities Capabilities `gorm:"embedded;embeddedPrefix:cap_" json:"capabilities"`
	Reputation   int          `gorm:"default:0" json:"reputation"`
	AvatarURL    *string      `gorm:"type:text" json:"avatar_url,omitempty"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
