package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/model"
	"gorm.io/gorm"
)

type SuggestionRepository interface {
	Create(ctx context.Context, suggestion *model.PostSuggestion) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PostSuggestion, error)
	FindByPostID(ctx context.Context, postID uuid.UUID, status string) ([]model.PostSuggestion, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type suggestionRepository struct {
	db *gorm.DB
}

func NewSuggestionRepository(db *gorm.DB) SuggestionRepository {
	return &suggestionRepository{db: db}
}

func (r *suggestionRepository) Create(ctx context.Context, suggestion *model.PostSuggestion) error {
	return r.db.WithContext(ctx).Create(suggestion).Error
}

func (r *suggestionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PostSuggestion, error) {
	var suggestion model.PostSuggestion
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ?", id).
		First(&suggestion).Error; err != nil {
		return nil, err
	}

	return &suggestion, nil
}

func (r *suggestionRepository) FindByPostID(ctx context.Context, postID uuid.UUID, status string) ([]model.PostSuggestion, error) {
	query := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at desc")
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var suggestions []model.PostSuggestion
	if err := query.Find(&suggestions).Error; err != nil {
		return nil, err
	}

	return suggestions, nil
}

func (r *suggestionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.PostSuggestion{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
