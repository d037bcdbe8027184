package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/apperror"
)

type ModerationService interface {
	SetPostStatus(ctx context.Context, actorID, postID uuid.UUID, status string) error
	SetCommentStatus(ctx context.Context, actorID, commentID uuid.UUID, status string) error
	SetUserStatus(ctx context.Context, actorID, userID uuid.UUID, status string) error
	PromoteUser(ctx context.Context, actorID, userID uuid.UUID, caps model.Capabilities) (*model.User, error)
	DemoteUser(ctx context.Context, actorID, userID uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context, actorID uuid.UUID) ([]*model.User, error)
}

type moderationService struct {
	userRepo    repository.UserRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	notifSvc    NotificationService
	searchSvc   SearchService
}

func NewModerationService(userRepo repository.UserRepository, postRepo repository.PostRepository, commentRepo repository.CommentRepository, notifSvc NotificationService, searchSvc SearchService) ModerationService {
	return &moderationService{
		userRepo:    userRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
		notifSvc:    notifSvc,
		searchSvc:   searchSvc,
	}
}

// SetPostStatus moves a post between active, held and deleted. Every
// transition is reversible at the status level: marking a post deleted
// removes its comments, votes, suggestions and reports but keeps the post
// row, which stays visible to the author and to ViewReports moderators.
// Only the author's own delete removes the row for good.
func (s *moderationService) SetPostStatus(ctx context.Context, actorID, postID uuid.UUID, status string) error {
	actor, err := s.requireCapability(ctx, actorID, func(c model.Capabilities) bool { return c.DeletePosts }, "delete posts")
	if err != nil {
		return err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return notFoundOr(err, "post "+postID.String())
	}
	if post.Status == status {
		return nil
	}

	if status == model.PostStatusDeleted {
		if err := s.postRepo.DeleteDependents(ctx, postID); err != nil {
			return err
		}
	}
	if err := s.postRepo.UpdateStatus(ctx, postID, status); err != nil {
		return err
	}

	if s.searchSvc != nil {
		if status == model.PostStatusActive {
			snapshot := *post
			snapshot.Status = status
			go func() {
				if err := s.searchSvc.IndexPost(&snapshot); err != nil {
					log.Printf("Failed to index post %s: %v", snapshot.ID, err)
				}
			}()
		} else {
			go func() {
				if err := s.searchSvc.DeletePost(postID.String()); err != nil {
					log.Printf("Failed to remove post %s from search index: %v", postID, err)
				}
			}()
		}
	}

	if s.notifSvc != nil && post.AuthorID != actor.ID {
		notif := &model.Notification{
			UserID:     post.AuthorID,
			ActorID:    actor.ID,
			EntityID:   post.ID,
			EntityType: "post",
			EntitySlug: post.Slug,
			Type:       model.NotificationTypeReport,
			Message:    fmt.Sprintf("a moderator set your listing %q to %s", post.Title, status),
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	return nil
}

func (s *moderationService) SetCommentStatus(ctx context.Context, actorID, commentID uuid.UUID, status string) error {
	if _, err := s.requireCapability(ctx, actorID, func(c model.Capabilities) bool { return c.DeleteComments }, "delete comments"); err != nil {
		return err
	}

	if _, err := s.commentRepo.FindByID(ctx, commentID); err != nil {
		return notFoundOr(err, "comment "+commentID.String())
	}

	return s.commentRepo.UpdateStatus(ctx, commentID, status)
}

func (s *moderationService) SetUserStatus(ctx context.Context, actorID, userID uuid.UUID, status string) error {
	actor, err := s.requireCapability(ctx, actorID, func(c model.Capabilities) bool { return c.DeleteUsers }, "delete users")
	if err != nil {
		return err
	}
	if actor.ID == userID {
		return fmt.Errorf("%w: you cannot change your own status", apperror.ErrForbidden)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "user "+userID.String())
	}

	user.Status = status
	return s.userRepo.Update(ctx, user)
}

// PromoteUser grants a capability set. An empty set is rejected, that is
// what demotion is for.
func (s *moderationService) PromoteUser(ctx context.Context, actorID, userID uuid.UUID, caps model.Capabilities) (*model.User, error) {
	actor, err := s.requireCapability(ctx, actorID, func(c model.Capabilities) bool { return c.PromoteMods }, "promote moderators")
	if err != nil {
		return nil, err
	}

	if !caps.Any() {
		return nil, fmt.Errorf("%w: capability set must grant at least one capability", apperror.ErrInvalidInput)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user "+userID.String())
	}

	user.IsMod = true
	user.Capabilities = caps
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if s.notifSvc != nil && user.ID != actor.ID {
		notif := &model.Notification{
			UserID:     user.ID,
			ActorID:    actor.ID,
			EntityID:   user.ID,
			EntityType: "user",
			Type:       model.NotificationTypePromotion,
			Message:    "you have been granted moderator capabilities",
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	return user, nil
}

func (s *moderationService) DemoteUser(ctx context.Context, actorID, userID uuid.UUID) (*model.User, error) {
	actor, err := s.requireCapability(ctx, actorID, func(c model.Capabilities) bool { return c.PromoteMods }, "promote moderators")
	if err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return nil, fmt.Errorf("%w: you cannot demote yourself", apperror.ErrForbidden)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user "+userID.String())
	}
	if !user.IsMod {
		return nil, fmt.Errorf("%w: user is not a moderator", apperror.ErrConflict)
	}

	user.IsMod = false
	user.Capabilities = model.Capabilities{}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *moderationService) ListUsers(ctx context.Context, actorID uuid.UUID) ([]*model.User, error) {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsMod {
		return nil, fmt.Errorf("%w: moderator access required", apperror.ErrForbidden)
	}
	return s.userRepo.FindAll(ctx)
}

func (s *moderationService) requireCapability(ctx context.Context, actorID uuid.UUID, has func(model.Capabilities) bool, name string) (*model.User, error) {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsMod || !has(actor.Capabilities) {
		return nil, fmt.Errorf("%w: %s capability required", apperror.ErrForbidden, name)
	}
	return actor, nil
}
