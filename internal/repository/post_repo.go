package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/model"
	"gorm.io/gorm"
)

// PostFilter narrows public listings. Status is fixed to active by the
// service for public queries; moderator listings pass it explicitly.
type PostFilter struct {
	Category string
	Tag      string
	Author   string
	Status   string
	Page     int
	Limit    int
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Post, error)
	FindBySlug(ctx context.Context, slug string) (*model.Post, error)
	FindAll(ctx context.Context, filter PostFilter) ([]model.Post, int64, error)
	FindByAuthorID(ctx context.Context, authorID uuid.UUID) ([]model.Post, error)
	Update(ctx context.Context, post *model.Post) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	DeleteDependents(ctx context.Context, id uuid.UUID) error
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ?", id).
		First(&post).Error; err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *postRepository) FindBySlug(ctx context.Context, slug string) (*model.Post, error) {
	var post model.Post
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Where("slug = ?", slug).
		First(&post).Error; err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *postRepository) FindAll(ctx context.Context, filter PostFilter) ([]model.Post, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Post{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Tag != "" {
		// Tags are stored as a json array; a LIKE on the quoted value is
		// good enough for both postgres json text and sqlite.
		query = query.Where("tags LIKE ?", "%\""+filter.Tag+"\"%")
	}
	if filter.Author != "" {
		query = query.Joins("JOIN users ON users.id = posts.author_id").
			Where("users.username = ?", filter.Author)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	var posts []model.Post
	if err := query.
		Preload("Author").
		Order("posts.created_at desc").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&posts).Error; err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (r *postRepository) FindByAuthorID(ctx context.Context, authorID uuid.UUID) ([]model.Post, error) {
	var posts []model.Post
	if err := r.db.WithContext(ctx).
		Where("author_id = ?", authorID).
		Order("created_at desc").
		Find(&posts).Error; err != nil {
		return nil, err
	}

	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, post *model.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *postRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Post{}).
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

// DeleteDependents removes everything hanging off a post: comments and
// replies, suggestions and their votes, reports, link reports and vote rows.
// The post row itself is untouched, so a moderator hold-then-delete stays
// reversible at the status level.
func (r *postRepository) DeleteDependents(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteDependents(tx, id)
	})
}

// DeleteCascade removes the post row together with all its dependents.
func (r *postRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteDependents(tx, id); err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&model.Post{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func deleteDependents(tx *gorm.DB, id uuid.UUID) error {
	if err := tx.Where("post_id = ?", id).Delete(&model.Comment{}).Error; err != nil {
		return err
	}

	var suggestionIDs []uuid.UUID
	if err := tx.Model(&model.PostSuggestion{}).
		Where("post_id = ?", id).
		Pluck("id", &suggestionIDs).Error; err != nil {
		return err
	}
	if len(suggestionIDs) > 0 {
		if err := tx.Where("suggestion_id IN ?", suggestionIDs).
			Delete(&model.SuggestionVote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).
			Delete(&model.PostSuggestion{}).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("target_type = ? AND target_id = ?", model.ReportTargetPost, id).
		Delete(&model.Report{}).Error; err != nil {
		return err
	}
	if err := tx.Where("post_id = ?", id).Delete(&model.LinkReport{}).Error; err != nil {
		return err
	}
	return tx.Where("post_id = ?", id).Delete(&model.PostVote{}).Error
}
