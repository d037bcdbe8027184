package dto

import "github.com/openshelf/openshelf/internal/model"

type SetPostStatusInput struct {
	Status string `json:"status" binding:"required,oneof=active held deleted"`
}

type SetCommentStatusInput struct {
	Status string `json:"status" binding:"required,oneof=approved held blocked"`
}

type SetUserStatusInput struct {
	Status string `json:"status" binding:"required,oneof=active blocked"`
}

type PromoteUserInput struct {
	Capabilities model.Capabilities `json:"capabilities" binding:"required"`
}
