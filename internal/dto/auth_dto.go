package dto

import "github.com/openshelf/openshelf/internal/model"

type RegisterInput struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type ProfileResponse struct {
	ID         string  `json:"id"`
	Username   string  `json:"username"`
	Reputation int     `json:"reputation"`
	IsMod      bool    `json:"is_mod"`
	AvatarURL  *string `json:"avatar_url,omitempty"`
	CreatedAt  string  `json:"created_at"`
}
