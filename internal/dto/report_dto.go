package dto

import "github.com/google/uuid"

type CreateReportInput struct {
	TargetType string    `json:"target_type" binding:"required,oneof=post comment user"`
	TargetID   uuid.UUID `json:"target_id" binding:"required"`
	Reason     string    `json:"reason" binding:"required,min=3,max=500"`
}

type CreateLinkReportInput struct {
	GroupIndex *int   `json:"group_index" binding:"required"`
	LinkIndex  *int   `json:"link_index" binding:"required"`
	Reason     string `json:"reason" binding:"required,min=3,max=500"`
}

type UpdateLinkInput struct {
	URL string `json:"url" binding:"required,url"`
}
