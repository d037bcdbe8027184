package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportStatusPending   = "pending"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

const (
	ReportTargetPost    = "post"
	ReportTargetComment = "comment"
	ReportTargetUser    = "user"
)

// Report is a user-initiated flag on a post, comment or user. A reporter may
// hold at most one pending report per (target, type).
type Report struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID uuid.UUID `gorm:"type:uuid;not null;index" json:"reporter_id"`
	Reporter   User      `gorm:"constraint:OnDelete:CASCADE" json:"reporter,omitempty"`
	TargetType string    `gorm:"size:20;not null;index:idx_reports_target,priority:1" json:"target_type"`
	TargetID   uuid.UUID `gorm:"type:uuid;not null;index:idx_reports_target,priority:2" json:"target_id"`
	Reason     string    `gorm:"size:500;not null" json:"reason"`
	Status     string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}

// LinkReport flags one specific URL inside one download group of a post.
// Indices are validated against the post's current groups on create and
// re-validated before any mutation, since the post may change shape in
// between.
type LinkReport struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReporterID uuid.UUID `gorm:"type:uuid;not null;index" json:"reporter_id"`
	Reporter   User      `gorm:"constraint:OnDelete:CASCADE" json:"reporter,omitempty"`
	PostID     uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`
	GroupIndex int       `gorm:"not null" json:"group_index"`
	LinkIndex  int       `gorm:"not null" json:"link_index"`
	Reason     string    `gorm:"size:500;not null" json:"reason"`
	Status     string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (r *LinkReport) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID, err = uuid.NewV7()
	}
	return
}
