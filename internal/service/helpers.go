package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/apperror"
	"gorm.io/gorm"
)

var slugInvalidChars = regexp.MustCompile("[^a-z0-9 ]+")

// makeSlug derives a URL slug from a title plus a short random suffix, so
// retitled or identically-titled listings never collide.
func makeSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "post"
	}
	return fmt.Sprintf("%s-%s", slug, uuid.New().String()[:8])
}

// findActor resolves the authenticated actor. A token whose subject no longer
// resolves is treated as unauthorized, and blocked accounts are cut off here.
func findActor(ctx context.Context, userRepo repository.UserRepository, actorID uuid.UUID) (*model.User, error) {
	actor, err := userRepo.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrUnauthorized
		}
		return nil, err
	}

	if actor.Status == model.UserStatusBlocked {
		return nil, fmt.Errorf("%w: account is blocked", apperror.ErrForbidden)
	}

	return actor, nil
}

// checkPostAccess gates held and deleted posts: the author and moderators
// holding ViewReports still see them and their comments, suggestions and
// reports; everyone else gets NotFound, since a hidden listing should not be
// distinguishable from a missing one.
func checkPostAccess(ctx context.Context, userRepo repository.UserRepository, viewerID *uuid.UUID, post *model.Post) error {
	if post.Status == model.PostStatusActive {
		return nil
	}
	if viewerID == nil {
		return fmt.Errorf("%w: post %s", apperror.ErrNotFound, post.Slug)
	}

	viewer, err := findActor(ctx, userRepo, *viewerID)
	if err != nil {
		return err
	}

	if viewer.ID == post.AuthorID {
		return nil
	}
	if viewer.IsMod && viewer.Capabilities.ViewReports {
		return nil
	}

	return fmt.Errorf("%w: post %s", apperror.ErrNotFound, post.Slug)
}

// notFoundOr maps gorm's record-not-found onto the API error taxonomy.
func notFoundOr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", apperror.ErrNotFound, what)
	}
	return err
}
