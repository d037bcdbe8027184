package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/openshelf/openshelf/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type CommentService interface {
	CreateComment(ctx context.Context, authorID, postID uuid.UUID, input dto.CreateCommentInput) (*model.Comment, error)
	ListComments(ctx context.Context, viewerID *uuid.UUID, postID uuid.UUID) ([]model.Comment, error)
	// ListAllComments includes held and blocked comments; moderator view.
	ListAllComments(ctx context.Context, actorID, postID uuid.UUID) ([]model.Comment, error)
	DeleteComment(ctx context.Context, actorID, commentID uuid.UUID) error
}

type commentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	notifSvc    NotificationService
	redisClient *redis.Client
	sanitizer   *bluemonday.Policy
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository, userRepo repository.UserRepository, notifSvc NotificationService, redisClient *redis.Client) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		notifSvc:    notifSvc,
		redisClient: redisClient,
		sanitizer:   bluemonday.UGCPolicy(),
	}
}

func (s *commentService) CreateComment(ctx context.Context, authorID, postID uuid.UUID, input dto.CreateCommentInput) (*model.Comment, error) {
	author, err := findActor(ctx, s.userRepo, authorID)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}
	if post.Status != model.PostStatusActive {
		return nil, fmt.Errorf("%w: post %s", apperror.ErrNotFound, postID)
	}

	if input.ParentID != nil {
		parent, err := s.commentRepo.FindByID(ctx, *input.ParentID)
		if err != nil {
			return nil, notFoundOr(err, "comment "+input.ParentID.String())
		}
		if parent.PostID != postID {
			return nil, fmt.Errorf("%w: parent comment belongs to another post", apperror.ErrInvalidInput)
		}
		// Replies to replies are rejected; the thread depth is capped at one.
		if parent.ParentID != nil {
			return nil, fmt.Errorf("%w: replies cannot be nested", apperror.ErrInvalidInput)
		}
	}

	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_COMMENT", 10*time.Second)
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, authorID, ratelimiter.ScopeComment, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, authorID, ratelimiter.ScopeComment)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are commenting too fast. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	comment := &model.Comment{
		PostID:   postID,
		ParentID: input.ParentID,
		AuthorID: author.ID,
		Content:  s.sanitizer.Sanitize(input.Content),
		Status:   model.CommentStatusApproved,
	}

	if err := s.commentRepo.Create(ctx, comment); err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, authorID, ratelimiter.ScopeComment)
		return nil, err
	}

	if s.notifSvc != nil && post.AuthorID != author.ID {
		notif := &model.Notification{
			UserID:     post.AuthorID,
			ActorID:    author.ID,
			EntityID:   comment.ID,
			EntityType: "comment",
			EntitySlug: post.Slug,
			Type:       model.NotificationTypeComment,
			Message:    fmt.Sprintf("%s commented on your listing %q", author.Username, post.Title),
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	comment.Author = *author
	return comment, nil
}

func (s *commentService) ListComments(ctx context.Context, viewerID *uuid.UUID, postID uuid.UUID) ([]model.Comment, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}
	// Comments of a hidden post are as hidden as the post itself.
	if err := checkPostAccess(ctx, s.userRepo, viewerID, post); err != nil {
		return nil, err
	}
	return s.commentRepo.FindByPostID(ctx, postID, model.CommentStatusApproved)
}

func (s *commentService) ListAllComments(ctx context.Context, actorID, postID uuid.UUID) ([]model.Comment, error) {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsMod || !actor.Capabilities.ViewReports {
		return nil, fmt.Errorf("%w: view reports capability required", apperror.ErrForbidden)
	}

	if _, err := s.postRepo.FindByID(ctx, postID); err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}
	return s.commentRepo.FindAllByPostID(ctx, postID)
}

func (s *commentService) DeleteComment(ctx context.Context, actorID, commentID uuid.UUID) error {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return err
	}

	comment, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: comment %s", apperror.ErrNotFound, commentID)
		}
		return err
	}

	if comment.AuthorID != actor.ID && !(actor.IsMod && actor.Capabilities.DeleteComments) {
		return fmt.Errorf("%w: not the comment author", apperror.ErrForbidden)
	}

	return s.commentRepo.DeleteWithReplies(ctx, commentID)
}
