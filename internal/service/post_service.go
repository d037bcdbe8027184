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

type PostService interface {
	CreatePost(ctx context.Context, authorID uuid.UUID, input dto.CreatePostInput) (*model.Post, error)
	GetPostBySlug(ctx context.Context, viewerID *uuid.UUID, slug, viewerKey string) (*model.Post, error)
	ListPosts(ctx context.Context, filter dto.PostFilter) (*dto.PostListResponse, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]PostSearchHit, error)
	GetMyPosts(ctx context.Context, authorID uuid.UUID) ([]model.Post, error)
	UpdatePost(ctx context.Context, actorID, postID uuid.UUID, input dto.UpdatePostInput) (*model.Post, error)
	DeletePost(ctx context.Context, actorID, postID uuid.UUID) error
}

type postService struct {
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	searchSvc   SearchService
	viewSvc     ViewService
	redisClient *redis.Client
	sanitizer   *bluemonday.Policy
}

func NewPostService(postRepo repository.PostRepository, userRepo repository.UserRepository, searchSvc SearchService, viewSvc ViewService, redisClient *redis.Client) PostService {
	return &postService{
		postRepo:    postRepo,
		userRepo:    userRepo,
		searchSvc:   searchSvc,
		viewSvc:     viewSvc,
		redisClient: redisClient,
		sanitizer:   bluemonday.UGCPolicy(),
	}
}

func (s *postService) CreatePost(ctx context.Context, authorID uuid.UUID, input dto.CreatePostInput) (*model.Post, error) {
	author, err := findActor(ctx, s.userRepo, authorID)
	if err != nil {
		return nil, err
	}

	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_POST", 5*time.Minute)
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, authorID, ratelimiter.ScopePost, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, authorID, ratelimiter.ScopePost)
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you can only submit one listing every %.0f minutes. Please wait %.0f minutes", limit.Minutes(), ttl.Minutes()),
			RetryAfter: ttl,
		}
	}

	post := &model.Post{
		AuthorID:       author.ID,
		Title:          input.Title,
		Slug:           makeSlug(input.Title),
		Description:    s.sanitizer.Sanitize(input.Description),
		Category:       input.Category,
		Tags:           input.Tags,
		ImageURL:       input.ImageURL,
		DownloadGroups: input.Groups(),
		Status:         model.PostStatusActive,
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, authorID, ratelimiter.ScopePost)
		return nil, err
	}

	post.Author = *author
	s.indexAsync(post)

	return post, nil
}

func (s *postService) GetPostBySlug(ctx context.Context, viewerID *uuid.UUID, slug, viewerKey string) (*model.Post, error) {
	post, err := s.postRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOr(err, "post "+slug)
	}

	if err := checkPostAccess(ctx, s.userRepo, viewerID, post); err != nil {
		return nil, err
	}

	if s.viewSvc != nil && post.Status == model.PostStatusActive {
		if err := s.viewSvc.IncrementView(ctx, post.ID, viewerKey); err != nil {
			log.Printf("Failed to count view for post %s: %v", post.ID, err)
		}
	}

	return post, nil
}

func (s *postService) ListPosts(ctx context.Context, filter dto.PostFilter) (*dto.PostListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 50 {
		filter.Limit = 10
	}

	posts, total, err := s.postRepo.FindAll(ctx, repository.PostFilter{
		Category: filter.Category,
		Tag:      filter.Tag,
		Author:   filter.Author,
		Status:   model.PostStatusActive,
		Page:     filter.Page,
		Limit:    filter.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &dto.PostListResponse{
		Posts: posts,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *postService) SearchPosts(ctx context.Context, query string, limit int) ([]PostSearchHit, error) {
	if s.searchSvc == nil {
		return nil, fmt.Errorf("%w: search is not configured", apperror.ErrInternal)
	}
	return s.searchSvc.SearchPosts(query, limit)
}

func (s *postService) GetMyPosts(ctx context.Context, authorID uuid.UUID) ([]model.Post, error) {
	if _, err := findActor(ctx, s.userRepo, authorID); err != nil {
		return nil, err
	}
	return s.postRepo.FindByAuthorID(ctx, authorID)
}

func (s *postService) UpdatePost(ctx context.Context, actorID, postID uuid.UUID, input dto.UpdatePostInput) (*model.Post, error) {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}

	if post.AuthorID != actor.ID && !(actor.IsMod && actor.Capabilities.EditPosts) {
		return nil, fmt.Errorf("%w: not the post author", apperror.ErrForbidden)
	}

	applyPostChanges(post, input.Title, input.Description, input.Category, input.Tags, input.ImageURL, input.ModelGroups(), s.sanitizer)

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	s.indexAsync(post)
	return post, nil
}

func (s *postService) DeletePost(ctx context.Context, actorID, postID uuid.UUID) error {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return notFoundOr(err, "post "+postID.String())
	}

	if post.AuthorID != actor.ID && !(actor.IsMod && actor.Capabilities.DeletePosts) {
		return fmt.Errorf("%w: not the post author", apperror.ErrForbidden)
	}

	if err := s.postRepo.DeleteCascade(ctx, postID); err != nil {
		return err
	}

	if s.searchSvc != nil {
		go func() {
			if err := s.searchSvc.DeletePost(postID.String()); err != nil {
				log.Printf("Failed to remove post %s from search index: %v", postID, err)
			}
		}()
	}

	return nil
}

func (s *postService) indexAsync(post *model.Post) {
	if s.searchSvc == nil {
		return
	}
	snapshot := *post
	go func() {
		if err := s.searchSvc.IndexPost(&snapshot); err != nil {
			log.Printf("Failed to index post %s: %v", snapshot.ID, err)
		}
	}()
}

// applyPostChanges copies every non-nil proposed field onto the post. It is
// shared between author/moderator edits and suggestion approval, which use
// the same only-set-fields-override merge rule. A title change regenerates
// the slug.
func applyPostChanges(post *model.Post, title, description, category *string, tags *[]string, imageURL *string, groups *[]model.DownloadGroup, sanitizer *bluemonday.Policy) {
	if title != nil && *title != post.Title {
		post.Title = *title
		post.Slug = makeSlug(*title)
	}
	if description != nil {
		if sanitizer != nil {
			post.Description = sanitizer.Sanitize(*description)
		} else {
			post.Description = *description
		}
	}
	if category != nil {
		post.Category = *category
	}
	if tags != nil {
		post.Tags = *tags
	}
	if imageURL != nil {
		post.ImageURL = imageURL
	}
	if groups != nil {
		post.DownloadGroups = *groups
	}
}
