package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/redis/go-redis/v9"
)

// ViewService buffers post view counts in Redis and flushes them to the
// database on a ticker, so the hot read path never writes to postgres.
type ViewService interface {
	IncrementView(ctx context.Context, postID uuid.UUID, viewerKey string) error
	StartViewSyncWorker(ctx context.Context)
}

type viewService struct {
	redisClient *redis.Client
	postRepo    repository.PostRepository
}

func NewViewService(redisClient *redis.Client, postRepo repository.PostRepository) ViewService {
	return &viewService{
		redisClient: redisClient,
		postRepo:    postRepo,
	}
}

// IncrementView counts one view per viewer per hour. viewerKey is the user ID
// for authenticated requests or the client IP otherwise.
func (s *viewService) IncrementView(ctx context.Context, postID uuid.UUID, viewerKey string) error {
	if s.redisClient == nil {
		return nil
	}

	viewerSeenKey := fmt.Sprintf("post:user_view:%s:%s", postID, viewerKey)

	exists, err := s.redisClient.Exists(ctx, viewerSeenKey).Result()
	if err != nil {
		return fmt.Errorf("failed to check viewer: %w", err)
	}
	if exists == 1 {
		return nil
	}

	viewKey := fmt.Sprintf("post:views:%s", postID)
	if _, err := s.redisClient.Incr(ctx, viewKey).Result(); err != nil {
		return fmt.Errorf("failed to increment view: %w", err)
	}

	if _, err := s.redisClient.SAdd(ctx, "pending:post_views", postID.String()).Result(); err != nil {
		return fmt.Errorf("failed to add to pending: %w", err)
	}

	if _, err := s.redisClient.SetEx(ctx, viewerSeenKey, "viewed", time.Hour).Result(); err != nil {
		return fmt.Errorf("failed to mark viewer: %w", err)
	}

	return nil
}

func (s *viewService) syncViewsToDB(ctx context.Context) {
	pendingKey := "pending:post_views"

	postIDs, err := s.redisClient.SMembers(ctx, pendingKey).Result()
	if err != nil {
		log.Printf("Error getting pending post views: %v", err)
		return
	}
	if len(postIDs) == 0 {
		return
	}

	for _, postIDStr := range postIDs {
		postID, err := uuid.Parse(postIDStr)
		if err != nil {
			continue
		}

		viewKey := fmt.Sprintf("post:views:%s", postID)
		viewCount, err := s.redisClient.Get(ctx, viewKey).Int()
		if err != nil && err != redis.Nil {
			log.Printf("Error getting view count for post %s: %v", postID, err)
			continue
		}
		if viewCount <= 0 {
			continue
		}

		post, err := s.postRepo.FindByID(ctx, postID)
		if err != nil {
			continue
		}

		post.Views += viewCount
		if err := s.postRepo.Update(ctx, post); err != nil {
			log.Printf("Failed to update post views in DB: %v", err)
			continue
		}

		if _, err := s.redisClient.Del(ctx, viewKey).Result(); err != nil {
			log.Printf("Failed to reset view counter: %v", err)
		}
	}

	if _, err := s.redisClient.Del(ctx, pendingKey).Result(); err != nil {
		log.Printf("Failed to clear pending view set: %v", err)
	}
}

func (s *viewService) StartViewSyncWorker(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.syncViewsToDB(ctx)
		case <-ctx.Done():
			return
		}
	}
}
