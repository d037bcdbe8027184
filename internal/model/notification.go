package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationTypeSuggestion = "suggestion"
	NotificationTypeApproval   = "approval"
	NotificationTypeReport     = "report"
	NotificationTypePromotion  = "promotion"
	NotificationTypeComment    = "comment"
)

type Notification struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`  // recipient
	ActorID    uuid.UUID `gorm:"type:uuid;not null" json:"actor_id"`       // user who triggered it
	EntityID   uuid.UUID `gorm:"type:uuid;not null" json:"entity_id"`      // target entity
	EntityType string    `gorm:"type:varchar(50);not null" json:"entity_type"` // 'post', 'comment', 'suggestion', 'report', 'user'
	EntitySlug string    `gorm:"type:varchar(255)" json:"entity_slug"`     // post slug for navigation
	Type       string    `gorm:"type:varchar(50);not null" json:"type"`
	Message    string    `gorm:"type:text" json:"message"`
	IsRead     bool      `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Associations - pointers to avoid recursion through User
	User  *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Actor *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID, err = uuid.NewV7()
	}
	return
}
