package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/openshelf/openshelf/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
)

// Suggestions auto-approve once enough voters agree: at least
// autoApproveMinVotes votes with an upvote share of autoApproveMinUpRatio or
// more merges the proposal into the post without moderator involvement.
const (
	autoApproveMinVotes   = 5
	autoApproveMinUpRatio = 0.6
)

type SuggestionService interface {
	CreateSuggestion(ctx context.Context, authorID, postID uuid.UUID, input dto.CreateSuggestionInput) (*model.PostSuggestion, error)
	ListSuggestions(ctx context.Context, viewerID *uuid.UUID, postID uuid.UUID, status string) ([]model.PostSuggestion, error)
	VoteSuggestion(ctx context.Context, userID, suggestionID uuid.UUID, value int) (*model.PostSuggestion, error)
	ApproveSuggestion(ctx context.Context, actorID, suggestionID uuid.UUID) (*model.PostSuggestion, error)
	RejectSuggestion(ctx context.Context, actorID, suggestionID uuid.UUID) (*model.PostSuggestion, error)
}

type suggestionService struct {
	suggestionRepo repository.SuggestionRepository
	voteRepo       repository.VoteRepository
	postRepo       repository.PostRepository
	userRepo       repository.UserRepository
	notifSvc       NotificationService
	searchSvc      SearchService
	redisClient    *redis.Client
	sanitizer      *bluemonday.Policy
}

func NewSuggestionService(suggestionRepo repository.SuggestionRepository, voteRepo repository.VoteRepository, postRepo repository.PostRepository, userRepo repository.UserRepository, notifSvc NotificationService, searchSvc SearchService, redisClient *redis.Client) SuggestionService {
	return &suggestionService{
		suggestionRepo: suggestionRepo,
		voteRepo:       voteRepo,
		postRepo:       postRepo,
		userRepo:       userRepo,
		notifSvc:       notifSvc,
		searchSvc:      searchSvc,
		redisClient:    redisClient,
		sanitizer:      bluemonday.UGCPolicy(),
	}
}

func (s *suggestionService) CreateSuggestion(ctx context.Context, authorID, postID uuid.UUID, input dto.CreateSuggestionInput) (*model.PostSuggestion, error) {
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

	// Owners edit directly, they do not suggest to themselves.
	if post.AuthorID == author.ID {
		return nil, fmt.Errorf("%w: you own this post, edit it instead", apperror.ErrInvalidInput)
	}

	suggestion := &model.PostSuggestion{
		PostID:         post.ID,
		AuthorID:       author.ID,
		Message:        s.sanitizer.Sanitize(input.Message),
		Title:          input.Title,
		Description:    input.Description,
		Category:       input.Category,
		Tags:           input.Tags,
		ImageURL:       input.ImageURL,
		DownloadGroups: input.ModelGroups(),
		Status:         model.SuggestionStatusPending,
	}
	if !suggestion.HasChanges() {
		return nil, fmt.Errorf("%w: suggestion proposes no changes", apperror.ErrInvalidInput)
	}

	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_SUGGESTION", 1*time.Minute)
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, authorID, ratelimiter.ScopePost, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, authorID, ratelimiter.ScopePost)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are suggesting too fast. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	if err := s.suggestionRepo.Create(ctx, suggestion); err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, authorID, ratelimiter.ScopePost)
		return nil, err
	}

	if s.notifSvc != nil {
		notif := &model.Notification{
			UserID:     post.AuthorID,
			ActorID:    author.ID,
			EntityID:   suggestion.ID,
			EntityType: "suggestion",
			EntitySlug: post.Slug,
			Type:       model.NotificationTypeSuggestion,
			Message:    fmt.Sprintf("%s suggested an edit to your listing %q", author.Username, post.Title),
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	return suggestion, nil
}

func (s *suggestionService) ListSuggestions(ctx context.Context, viewerID *uuid.UUID, postID uuid.UUID, status string) ([]model.PostSuggestion, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}
	// Suggestions of a hidden post are as hidden as the post itself.
	if err := checkPostAccess(ctx, s.userRepo, viewerID, post); err != nil {
		return nil, err
	}
	return s.suggestionRepo.FindByPostID(ctx, postID, status)
}

func (s *suggestionService) VoteSuggestion(ctx context.Context, userID, suggestionID uuid.UUID, value int) (*model.PostSuggestion, error) {
	if _, err := findActor(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	suggestion, err := s.suggestionRepo.FindByID(ctx, suggestionID)
	if err != nil {
		return nil, notFoundOr(err, "suggestion "+suggestionID.String())
	}
	if suggestion.Status != model.SuggestionStatusPending {
		return nil, fmt.Errorf("%w: suggestion already %s", apperror.ErrConflict, suggestion.Status)
	}

	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_VOTE", 1*time.Second)
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, userID, ratelimiter.ScopeVote, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, userID, ratelimiter.ScopeVote)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are voting too fast. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	if _, _, err := s.voteRepo.ApplySuggestionVote(ctx, suggestionID, userID, value); err != nil {
		return nil, err
	}

	suggestion, err = s.suggestionRepo.FindByID(ctx, suggestionID)
	if err != nil {
		return nil, err
	}

	total := suggestion.Upvotes + suggestion.Downvotes
	if total >= autoApproveMinVotes &&
		float64(suggestion.Upvotes)/float64(total) >= autoApproveMinUpRatio {
		if err := s.merge(ctx, suggestion, userID); err != nil {
			return nil, err
		}
	}

	return suggestion, nil
}

// ApproveSuggestion merges a pending suggestion into its post. Allowed for the
// post's author and for moderators holding the edit posts capability.
func (s *suggestionService) ApproveSuggestion(ctx context.Context, actorID, suggestionID uuid.UUID) (*model.PostSuggestion, error) {
	actor, suggestion, post, err := s.loadForDecision(ctx, actorID, suggestionID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID && !(actor.IsMod && actor.Capabilities.EditPosts) {
		return nil, fmt.Errorf("%w: not allowed to decide on this suggestion", apperror.ErrForbidden)
	}

	if err := s.merge(ctx, suggestion, actor.ID); err != nil {
		return nil, err
	}
	return suggestion, nil
}

func (s *suggestionService) RejectSuggestion(ctx context.Context, actorID, suggestionID uuid.UUID) (*model.PostSuggestion, error) {
	actor, suggestion, post, err := s.loadForDecision(ctx, actorID, suggestionID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != actor.ID && !(actor.IsMod && actor.Capabilities.EditPosts) {
		return nil, fmt.Errorf("%w: not allowed to decide on this suggestion", apperror.ErrForbidden)
	}

	if err := s.suggestionRepo.UpdateStatus(ctx, suggestion.ID, model.SuggestionStatusRejected); err != nil {
		return nil, err
	}
	suggestion.Status = model.SuggestionStatusRejected

	if s.notifSvc != nil && suggestion.AuthorID != actor.ID {
		notif := &model.Notification{
			UserID:     suggestion.AuthorID,
			ActorID:    actor.ID,
			EntityID:   suggestion.ID,
			EntityType: "suggestion",
			EntitySlug: post.Slug,
			Type:       model.NotificationTypeSuggestion,
			Message:    fmt.Sprintf("your suggestion on %q was rejected", post.Title),
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	return suggestion, nil
}

func (s *suggestionService) loadForDecision(ctx context.Context, actorID, suggestionID uuid.UUID) (*model.User, *model.PostSuggestion, *model.Post, error) {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, nil, nil, err
	}

	suggestion, err := s.suggestionRepo.FindByID(ctx, suggestionID)
	if err != nil {
		return nil, nil, nil, notFoundOr(err, "suggestion "+suggestionID.String())
	}
	if suggestion.Status != model.SuggestionStatusPending {
		return nil, nil, nil, fmt.Errorf("%w: suggestion already %s", apperror.ErrConflict, suggestion.Status)
	}

	post, err := s.postRepo.FindByID(ctx, suggestion.PostID)
	if err != nil {
		return nil, nil, nil, notFoundOr(err, "post "+suggestion.PostID.String())
	}

	return actor, suggestion, post, nil
}

// merge copies every non-nil proposed field onto the post and marks the
// suggestion approved. actorID is whoever caused the approval, a deciding
// user or the voter whose vote crossed the threshold.
func (s *suggestionService) merge(ctx context.Context, suggestion *model.PostSuggestion, actorID uuid.UUID) error {
	post, err := s.postRepo.FindByID(ctx, suggestion.PostID)
	if err != nil {
		return notFoundOr(err, "post "+suggestion.PostID.String())
	}

	applyPostChanges(post, suggestion.Title, suggestion.Description, suggestion.Category,
		suggestion.Tags, suggestion.ImageURL, suggestion.DownloadGroups, s.sanitizer)

	if err := s.postRepo.Update(ctx, post); err != nil {
		return err
	}
	if err := s.suggestionRepo.UpdateStatus(ctx, suggestion.ID, model.SuggestionStatusApproved); err != nil {
		return err
	}
	suggestion.Status = model.SuggestionStatusApproved

	if s.searchSvc != nil {
		snapshot := *post
		go func() {
			if err := s.searchSvc.IndexPost(&snapshot); err != nil {
				log.Printf("Failed to index post %s: %v", snapshot.ID, err)
			}
		}()
	}

	if s.notifSvc != nil {
		if suggestion.AuthorID != actorID {
			notif := &model.Notification{
				UserID:     suggestion.AuthorID,
				ActorID:    actorID,
				EntityID:   suggestion.ID,
				EntityType: "suggestion",
				EntitySlug: post.Slug,
				Type:       model.NotificationTypeApproval,
				Message:    fmt.Sprintf("your suggestion on %q was approved and merged", post.Title),
			}
			_ = s.notifSvc.CreateNotification(ctx, notif)
		}
		if post.AuthorID != actorID && post.AuthorID != suggestion.AuthorID {
			notif := &model.Notification{
				UserID:     post.AuthorID,
				ActorID:    actorID,
				EntityID:   suggestion.ID,
				EntityType: "suggestion",
				EntitySlug: post.Slug,
				Type:       model.NotificationTypeApproval,
				Message:    fmt.Sprintf("a suggested edit was merged into your listing %q", post.Title),
			}
			_ = s.notifSvc.CreateNotification(ctx, notif)
		}
	}

	return nil
}
