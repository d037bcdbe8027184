package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SuggestionStatusPending  = "pending"
	SuggestionStatusApproved = "approved"
	SuggestionStatusRejected = "rejected"
)

// PostSuggestion is a proposed edit to a post by a non-owner. Only fields the
// author explicitly set are non-nil; approval copies exactly those onto the
// post.
type PostSuggestion struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID   uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`
	AuthorID uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	Author   User      `gorm:"constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Message  string    `gorm:"size:1000;not null" json:"message"`

	Title          *string          `gorm:"size:255" json:"title,omitempty"`
	Description    *string          `gorm:"type:text" json:"description,omitempty"`
	Category       *string          `gorm:"size:100" json:"category,omitempty"`
	Tags           *[]string        `gorm:"serializer:json" json:"tags,omitempty"`
	ImageURL       *string          `gorm:"type:text" json:"image_url,omitempty"`
	DownloadGroups *[]DownloadGroup `gorm:"serializer:json" json:"download_groups,omitempty"`

	Upvotes   int       `gorm:"default:0" json:"upvotes"`
	Downvotes int       `gorm:"default:0" json:"downvotes"`
	Status    string    `gorm:"size:20;not null;default:pending;index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *PostSuggestion) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID, err = uuid.NewV7()
	}
	return
}

// HasChanges reports whether at least one field is proposed.
func (s *PostSuggestion) HasChanges() bool {
	return s.Title != nil || s.Description != nil || s.Category != nil ||
		s.Tags != nil || s.ImageURL != nil || s.DownloadGroups != nil
}

// SuggestionVote is one user's vote on one suggestion, +1 or -1, switchable
// and togglable off.
type SuggestionVote struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SuggestionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_suggestion_votes_user,priority:1;index" json:"suggestion_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_suggestion_votes_user,priority:2" json:"user_id"`
	Value        int       `gorm:"not null" json:"value"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (v *SuggestionVote) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID, err = uuid.NewV7()
	}
	return
}
