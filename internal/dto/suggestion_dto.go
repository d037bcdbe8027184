package dto

import (
	"github.com/openshelf/openshelf/internal/model"
)

type CreateSuggestionInput struct {
	Message        string                `json:"message" binding:"required,min=3,max=1000"`
	Title          *string               `json:"title"`
	Description    *string               `json:"description"`
	Category       *string               `json:"category"`
	Tags           *[]string             `json:"tags"`
	ImageURL       *string               `json:"image_url"`
	DownloadGroups *[]DownloadGroupInput `json:"download_groups"`
}

// ModelGroups converts the optional proposed groups into the model shape.
func (in CreateSuggestionInput) ModelGroups() *[]model.DownloadGroup {
	if in.DownloadGroups == nil {
		return nil
	}
	groups := toModelGroups(*in.DownloadGroups)
	return &groups
}

type VoteInput struct {
	Direction string `json:"direction" binding:"required,oneof=up down"`
}

// Value maps the wire direction onto the signed vote value.
func (in VoteInput) Value() int {
	if in.Direction == "down" {
		return -1
	}
	return 1
}
