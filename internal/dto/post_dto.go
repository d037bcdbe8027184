package dto

import (
	"github.com/openshelf/openshelf/internal/model"
)

type DownloadLinkInput struct {
	Label string `json:"label" binding:"required,max=100"`
	URL   string `json:"url" binding:"required,url"`
}

type DownloadGroupInput struct {
	Name  string              `json:"name" binding:"required,max=100"`
	Links []DownloadLinkInput `json:"links" binding:"required,min=1,dive"`
}

type CreatePostInput struct {
	Title          string               `json:"title" binding:"required,min=3,max=255"`
	Description    string               `json:"description" binding:"required"`
	Category       string               `json:"category" binding:"required,max=100"`
	Tags           []string             `json:"tags"`
	ImageURL       *string              `json:"image_url"`
	DownloadGroups []DownloadGroupInput `json:"download_groups" binding:"required,min=1,dive"`
}

type UpdatePostInput struct {
	Title          *string               `json:"title"`
	Description    *string               `json:"description"`
	Category       *string               `json:"category"`
	Tags           *[]string             `json:"tags"`
	ImageURL       *string               `json:"image_url"`
	DownloadGroups *[]DownloadGroupInput `json:"download_groups"`
}

type PostFilter struct {
	Category string `form:"category"`
	Tag      string `form:"tag"`
	Author   string `form:"author"`
	Search   string `form:"q"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

type PostListResponse struct {
	Posts []model.Post `json:"posts"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// Groups converts validated input groups into the model shape.
func (in CreatePostInput) Groups() []model.DownloadGroup {
	return toModelGroups(in.DownloadGroups)
}

func toModelGroups(groups []DownloadGroupInput) []model.DownloadGroup {
	out := make([]model.DownloadGroup, 0, len(groups))
	for _, g := range groups {
		links := make([]model.DownloadLink, 0, len(g.Links))
		for _, l := range g.Links {
			links = append(links, model.DownloadLink{Label: l.Label, URL: l.URL})
		}
		out = append(out, model.DownloadGroup{Name: g.Name, Links: links})
	}
	return out
}

// ModelGroups converts an optional group update into the model shape.
func (in UpdatePostInput) ModelGroups() *[]model.DownloadGroup {
	if in.DownloadGroups == nil {
		return nil
	}
	groups := toModelGroups(*in.DownloadGroups)
	return &groups
}
