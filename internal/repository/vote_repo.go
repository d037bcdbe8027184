package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/model"
	"gorm.io/gorm"
)

type VoteRepository interface {
	// ApplyPostVote toggles the (user, post) vote row and keeps the post's
	// counters and the author's reputation consistent in one transaction.
	// Returns the previous and resulting vote value (0 means no vote).
	ApplyPostVote(ctx context.Context, postID, userID uuid.UUID, value int) (oldValue, newValue int, err error)
	// ApplySuggestionVote mirrors ApplyPostVote against a suggestion's tally.
	// Suggestion votes never touch reputation.
	ApplySuggestionVote(ctx context.Context, suggestionID, userID uuid.UUID, value int) (oldValue, newValue int, err error)
}

type voteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) ApplyPostVote(ctx context.Context, postID, userID uuid.UUID, value int) (int, int, error) {
	var oldValue, newValue int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post model.Post
		if err := tx.Where("id = ?", postID).First(&post).Error; err != nil {
			return err
		}

		// Use Find with a slice to avoid "record not found" log noise
		var existing []model.PostVote
		if err := tx.Where("user_id = ? AND post_id = ?", userID, postID).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}

		if len(existing) == 0 {
			// Fresh vote
			oldValue, newValue = 0, value
			if err := tx.Create(&model.PostVote{UserID: userID, PostID: postID, Value: value}).Error; err != nil {
				return err
			}
		} else if existing[0].Value == value {
			// Same direction again -> retract
			oldValue, newValue = existing[0].Value, 0
			if err := tx.Delete(&existing[0]).Error; err != nil {
				return err
			}
		} else {
			// Opposite direction -> switch
			record := existing[0]
			oldValue = record.Value
			record.Value = value
			newValue = value
			if err := tx.Save(&record).Error; err != nil {
				return err
			}
		}

		if err := applyCounterDeltas(tx.Model(&model.Post{}).Where("id = ?", postID), oldValue, newValue); err != nil {
			return err
		}

		// Self-votes move counters but never the author's reputation.
		if post.AuthorID != userID {
			if delta := newValue - oldValue; delta != 0 {
				if err := tx.Model(&model.User{}).
					Where("id = ?", post.AuthorID).
					Update("reputation", gorm.Expr("reputation + ?", delta)).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})

	return oldValue, newValue, err
}

func (r *voteRepository) ApplySuggestionVote(ctx context.Context, suggestionID, userID uuid.UUID, value int) (int, int, error) {
	var oldValue, newValue int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []model.SuggestionVote
		if err := tx.Where("suggestion_id = ? AND user_id = ?", suggestionID, userID).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}

		if len(existing) == 0 {
			oldValue, newValue = 0, value
			if err := tx.Create(&model.SuggestionVote{SuggestionID: suggestionID, UserID: userID, Value: value}).Error; err != nil {
				return err
			}
		} else if existing[0].Value == value {
			oldValue, newValue = existing[0].Value, 0
			if err := tx.Delete(&existing[0]).Error; err != nil {
				return err
			}
		} else {
			record := existing[0]
			oldValue = record.Value
			record.Value = value
			newValue = value
			if err := tx.Save(&record).Error; err != nil {
				return err
			}
		}

		return applyCounterDeltas(tx.Model(&model.PostSuggestion{}).Where("id = ?", suggestionID), oldValue, newValue)
	})

	return oldValue, newValue, err
}

// applyCounterDeltas translates an (old, new) vote transition into upvotes /
// downvotes column expressions on the target row.
func applyCounterDeltas(query *gorm.DB, oldValue, newValue int) error {
	if oldValue == newValue {
		return nil
	}

	updates := map[string]interface{}{}
	switch oldValue {
	case 1:
		updates["upvotes"] = gorm.Expr("upvotes - 1")
	case -1:
		updates["downvotes"] = gorm.Expr("downvotes - 1")
	}
	switch newValue {
	case 1:
		updates["upvotes"] = gorm.Expr("upvotes + 1")
	case -1:
		updates["downvotes"] = gorm.Expr("downvotes + 1")
	}

	return query.Updates(updates).Error
}
