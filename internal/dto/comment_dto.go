package dto

import "github.com/google/uuid"

type CreateCommentInput struct {
	Content  string     `json:"content" binding:"required,min=1,max=2000"`
	ParentID *uuid.UUID `json:"parent_id"`
}
