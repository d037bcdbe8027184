package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PostStatusActive  = "active"
	PostStatusHeld    = "held"
	PostStatusDeleted = "deleted"
)

// DownloadLink is one labelled URL inside a download group.
type DownloadLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// DownloadGroup is a named, ordered list of download links.
type DownloadGroup struct {
	Name  string         `json:"name"`
	Links []DownloadLink `json:"links"`
}

type Post struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"author_id"`
	Author         User            `gorm:"constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Title          string          `gorm:"size:255;not null" json:"title"`
	Slug           string          `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	Description    string          `gorm:"type:text;not null" json:"description"`
	Category       string          `gorm:"size:100;not null;index" json:"category"`
	Tags           []string        `gorm:"serializer:json" json:"tags"`
	ImageURL       *string         `gorm:"type:text" json:"image_url,omitempty"`
	DownloadGroups []DownloadGroup `gorm:"serializer:json" json:"download_groups"`
	// LegacyLinks holds the pre-grouping flat link list still present on old
	// rows. It is folded into DownloadGroups by AfterFind and never written.
	LegacyLinks []DownloadLink `gorm:"serializer:json;column:download_links" json:"-"`
	Views       int            `gorm:"default:0" json:"views"`
	Upvotes     int            `gorm:"default:0" json:"upvotes"`
	Downvotes   int            `gorm:"default:0" json:"downvotes"`
	Status      string         `gorm:"size:20;not null;default:active;index" json:"status"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID, err = uuid.NewV7()
	}
	return
}

// AfterFind normalizes legacy flat download links into a single group so the
// rest of the code only ever sees the grouped shape.
func (p *Post) AfterFind(tx *gorm.DB) error {
	if len(p.DownloadGroups) == 0 && len(p.LegacyLinks) > 0 {
		p.DownloadGroups = []DownloadGroup{{Name: "Downloads", Links: p.LegacyLinks}}
	}
	p.LegacyLinks = nil
	return nil
}

// LinkAt bounds-checks group and link indices against the current shape.
func (p *Post) LinkAt(groupIndex, linkIndex int) (*DownloadLink, bool) {
	if groupIndex < 0 || groupIndex >= len(p.DownloadGroups) {
		return nil, false
	}
	group := &p.DownloadGroups[groupIndex]
	if linkIndex < 0 || linkIndex >= len(group.Links) {
		return nil, false
	}
	return &group.Links[linkIndex], true
}

// PostVote is one user's vote on one post. Value is +1 or -1; the post's
// counters are maintained in the same transaction that mutates vote rows.
type PostVote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_votes_user_post,priority:1" json:"user_id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_votes_user_post,priority:2;index" json:"post_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (v *PostVote) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID, err = uuid.NewV7()
	}
	return
}
