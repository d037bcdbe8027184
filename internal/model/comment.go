package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CommentStatusApproved = "approved"
	CommentStatusHeld     = "held"
	CommentStatusBlocked  = "blocked"
)

type Comment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"post_id"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	AuthorID  uuid.UUID  `gorm:"type:uuid;not null" json:"author_id"`
	Author    User       `gorm:"constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Status    string     `gorm:"size:20;not null;default:approved;index" json:"status"`
	Replies   []Comment  `gorm:"foreignKey:ParentID" json:"replies,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}
