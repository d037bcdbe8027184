package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
)

// Crowd moderation thresholds: once a post has autoHoldMinVotes votes and
// strictly more than autoHoldMaxDownRatio of them are downvotes, it is held
// for review. The transition is one-way; only a moderator can reactivate.
const (
	autoHoldMinVotes     = 5
	autoHoldMaxDownRatio = 0.2

	autoHoldReason = "automatically held: community downvote threshold reached"
)

type VoteService interface {
	VotePost(ctx context.Context, userID, postID uuid.UUID, value int) (*model.Post, error)
}

type voteService struct {
	voteRepo    repository.VoteRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	reportRepo  repository.ReportRepository
	notifSvc    NotificationService
	redisClient *redis.Client
}

func NewVoteService(voteRepo repository.VoteRepository, postRepo repository.PostRepository, userRepo repository.UserRepository, reportRepo repository.ReportRepository, notifSvc NotificationService, redisClient *redis.Client) VoteService {
	return &voteService{
		voteRepo:    voteRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		reportRepo:  reportRepo,
		notifSvc:    notifSvc,
		redisClient: redisClient,
	}
}

func (s *voteService) VotePost(ctx context.Context, userID, postID uuid.UUID, value int) (*model.Post, error) {
	if _, err := findActor(ctx, s.userRepo, userID); err != nil {
		return nil, err
	}

	if _, err := s.postRepo.FindByID(ctx, postID); err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
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

	if _, _, err := s.voteRepo.ApplyPostVote(ctx, postID, userID, value); err != nil {
		return nil, err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}

	if post.Status == model.PostStatusActive && crossedAutoHoldThreshold(post.Upvotes, post.Downvotes) {
		if err := s.autoHold(ctx, post, userID); err != nil {
			log.Printf("Failed to auto-hold post %s: %v", post.ID, err)
		} else {
			post.Status = model.PostStatusHeld
		}
	}

	return post, nil
}

func crossedAutoHoldThreshold(upvotes, downvotes int) bool {
	total := upvotes + downvotes
	if total < autoHoldMinVotes {
		return false
	}
	return float64(downvotes)/float64(total) > autoHoldMaxDownRatio
}

// autoHold holds the post and files a system report attributed to the voter
// whose vote crossed the threshold.
func (s *voteService) autoHold(ctx context.Context, post *model.Post, voterID uuid.UUID) error {
	if err := s.postRepo.UpdateStatus(ctx, post.ID, model.PostStatusHeld); err != nil {
		return err
	}

	hasPending, err := s.reportRepo.HasPending(ctx, voterID, model.ReportTargetPost, post.ID)
	if err != nil {
		return err
	}
	if !hasPending {
		report := &model.Report{
			ReporterID: voterID,
			TargetType: model.ReportTargetPost,
			TargetID:   post.ID,
			Reason:     autoHoldReason,
			Status:     model.ReportStatusPending,
		}
		if err := s.reportRepo.Create(ctx, report); err != nil {
			return err
		}
	}

	if s.notifSvc != nil {
		notif := &model.Notification{
			UserID:     post.AuthorID,
			ActorID:    voterID,
			EntityID:   post.ID,
			EntityType: "post",
			EntitySlug: post.Slug,
			Type:       model.NotificationTypeReport,
			Message:    fmt.Sprintf("your listing %q was held for review after community downvotes", post.Title),
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	return nil
}
