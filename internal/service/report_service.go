package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/openshelf/openshelf/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
)

type ReportService interface {
	CreateReport(ctx context.Context, reporterID uuid.UUID, input dto.CreateReportInput) (*model.Report, error)
	CreateLinkReport(ctx context.Context, reporterID, postID uuid.UUID, input dto.CreateLinkReportInput) (*model.LinkReport, error)
	ResolveReport(ctx context.Context, actorID, reportID uuid.UUID) error
	DismissReport(ctx context.Context, actorID, reportID uuid.UUID) error
	ResolveLinkReport(ctx context.Context, actorID, reportID uuid.UUID, status string) error
	UpdateLinkFromReport(ctx context.Context, actorID, reportID uuid.UUID, newURL string) (*model.Post, error)
	ListReports(ctx context.Context, actorID uuid.UUID, status string) ([]model.Report, error)
	ListLinkReports(ctx context.Context, actorID uuid.UUID, status string) ([]model.LinkReport, error)
	ListLinkReportsForPost(ctx context.Context, actorID, postID uuid.UUID) ([]model.LinkReport, error)
}

type reportService struct {
	reportRepo  repository.ReportRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	notifSvc    NotificationService
	redisClient *redis.Client
}

func NewReportService(reportRepo repository.ReportRepository, postRepo repository.PostRepository, commentRepo repository.CommentRepository, userRepo repository.UserRepository, notifSvc NotificationService, redisClient *redis.Client) ReportService {
	return &reportService{
		reportRepo:  reportRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
		notifSvc:    notifSvc,
		redisClient: redisClient,
	}
}

func (s *reportService) CreateReport(ctx context.Context, reporterID uuid.UUID, input dto.CreateReportInput) (*model.Report, error) {
	reporter, err := findActor(ctx, s.userRepo, reporterID)
	if err != nil {
		return nil, err
	}

	if err := s.checkTargetExists(ctx, input.TargetType, input.TargetID); err != nil {
		return nil, err
	}

	// One pending report per (reporter, target, type); re-reporting is only
	// possible after the previous report has been processed.
	hasPending, err := s.reportRepo.HasPending(ctx, reporterID, input.TargetType, input.TargetID)
	if err != nil {
		return nil, err
	}
	if hasPending {
		return nil, fmt.Errorf("%w: you already have a pending report on this %s", apperror.ErrConflict, input.TargetType)
	}

	if err := s.checkReportRateLimit(ctx, reporterID); err != nil {
		return nil, err
	}

	report := &model.Report{
		ReporterID: reporter.ID,
		TargetType: input.TargetType,
		TargetID:   input.TargetID,
		Reason:     input.Reason,
		Status:     model.ReportStatusPending,
	}

	if err := s.reportRepo.Create(ctx, report); err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, reporterID, ratelimiter.ScopeReport)
		return nil, err
	}

	return report, nil
}

func (s *reportService) CreateLinkReport(ctx context.Context, reporterID, postID uuid.UUID, input dto.CreateLinkReportInput) (*model.LinkReport, error) {
	reporter, err := findActor(ctx, s.userRepo, reporterID)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}

	groupIndex, linkIndex := *input.GroupIndex, *input.LinkIndex
	if _, ok := post.LinkAt(groupIndex, linkIndex); !ok {
		return nil, fmt.Errorf("%w: link indices out of range", apperror.ErrInvalidInput)
	}

	hasPending, err := s.reportRepo.HasPendingLinkReport(ctx, reporterID, postID, groupIndex, linkIndex)
	if err != nil {
		return nil, err
	}
	if hasPending {
		return nil, fmt.Errorf("%w: you already have a pending report on this link", apperror.ErrConflict)
	}

	if err := s.checkReportRateLimit(ctx, reporterID); err != nil {
		return nil, err
	}

	report := &model.LinkReport{
		ReporterID: reporter.ID,
		PostID:     postID,
		GroupIndex: groupIndex,
		LinkIndex:  linkIndex,
		Reason:     input.Reason,
		Status:     model.ReportStatusPending,
	}

	if err := s.reportRepo.CreateLinkReport(ctx, report); err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, reporterID, ratelimiter.ScopeReport)
		return nil, err
	}

	if s.notifSvc != nil && post.AuthorID != reporter.ID {
		notif := &model.Notification{
			UserID:     post.AuthorID,
			ActorID:    reporter.ID,
			EntityID:   report.ID,
			EntityType: "link_report",
			EntitySlug: post.Slug,
			Type:       model.NotificationTypeReport,
			Message:    fmt.Sprintf("a download link on your listing %q was reported: %s", post.Title, input.Reason),
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	return report, nil
}

func (s *reportService) ResolveReport(ctx context.Context, actorID, reportID uuid.UUID) error {
	return s.processReport(ctx, actorID, reportID, model.ReportStatusResolved)
}

func (s *reportService) DismissReport(ctx context.Context, actorID, reportID uuid.UUID) error {
	return s.processReport(ctx, actorID, reportID, model.ReportStatusDismissed)
}

func (s *reportService) processReport(ctx context.Context, actorID, reportID uuid.UUID, status string) error {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return err
	}
	if !actor.IsMod || !actor.Capabilities.ResolveReports {
		return fmt.Errorf("%w: resolve reports capability required", apperror.ErrForbidden)
	}

	report, err := s.reportRepo.FindByID(ctx, reportID)
	if err != nil {
		return notFoundOr(err, "report "+reportID.String())
	}
	if report.Status != model.ReportStatusPending {
		return fmt.Errorf("%w: report already %s", apperror.ErrConflict, report.Status)
	}

	return s.reportRepo.UpdateStatus(ctx, reportID, status)
}

// ResolveLinkReport processes a link report. Moderators with ResolveReports
// may always act; the owning post's author may also act on reports against
// their own links without any capability.
func (s *reportService) ResolveLinkReport(ctx context.Context, actorID, reportID uuid.UUID, status string) error {
	if status != model.ReportStatusResolved && status != model.ReportStatusDismissed {
		return fmt.Errorf("%w: invalid report status %q", apperror.ErrInvalidInput, status)
	}

	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return err
	}

	report, err := s.reportRepo.FindLinkReportByID(ctx, reportID)
	if err != nil {
		return notFoundOr(err, "link report "+reportID.String())
	}

	if !(actor.IsMod && actor.Capabilities.ResolveReports) {
		post, err := s.postRepo.FindByID(ctx, report.PostID)
		if err != nil {
			return notFoundOr(err, "post "+report.PostID.String())
		}
		if post.AuthorID != actor.ID {
			return fmt.Errorf("%w: not the post author", apperror.ErrForbidden)
		}
	}

	if report.Status != model.ReportStatusPending {
		return fmt.Errorf("%w: report already %s", apperror.ErrConflict, report.Status)
	}

	return s.reportRepo.UpdateLinkReportStatus(ctx, reportID, status)
}

func (s *reportService) UpdateLinkFromReport(ctx context.Context, actorID, reportID uuid.UUID, newURL string) (*model.Post, error) {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}

	report, err := s.reportRepo.FindLinkReportByID(ctx, reportID)
	if err != nil {
		return nil, notFoundOr(err, "link report "+reportID.String())
	}
	if report.Status != model.ReportStatusPending {
		return nil, fmt.Errorf("%w: report already %s", apperror.ErrConflict, report.Status)
	}

	post, err := s.postRepo.FindByID(ctx, report.PostID)
	if err != nil {
		return nil, notFoundOr(err, "post "+report.PostID.String())
	}
	if post.AuthorID != actor.ID {
		return nil, fmt.Errorf("%w: not the post author", apperror.ErrForbidden)
	}

	// The post may have changed shape since the report was filed, so the
	// indices are validated again before touching anything.
	link, ok := post.LinkAt(report.GroupIndex, report.LinkIndex)
	if !ok {
		return nil, fmt.Errorf("%w: reported link no longer exists", apperror.ErrInvalidInput)
	}

	link.URL = newURL
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	if err := s.reportRepo.UpdateLinkReportStatus(ctx, reportID, model.ReportStatusResolved); err != nil {
		return nil, err
	}

	if s.notifSvc != nil && report.ReporterID != actor.ID {
		notif := &model.Notification{
			UserID:     report.ReporterID,
			ActorID:    actor.ID,
			EntityID:   post.ID,
			EntityType: "post",
			EntitySlug: post.Slug,
			Type:       model.NotificationTypeApproval,
			Message:    fmt.Sprintf("the link you reported on %q has been fixed", post.Title),
		}
		_ = s.notifSvc.CreateNotification(ctx, notif)
	}

	return post, nil
}

func (s *reportService) ListReports(ctx context.Context, actorID uuid.UUID, status string) ([]model.Report, error) {
	if err := s.requireViewReports(ctx, actorID); err != nil {
		return nil, err
	}
	return s.reportRepo.FindAll(ctx, status)
}

func (s *reportService) ListLinkReports(ctx context.Context, actorID uuid.UUID, status string) ([]model.LinkReport, error) {
	if err := s.requireViewReports(ctx, actorID); err != nil {
		return nil, err
	}
	return s.reportRepo.FindLinkReports(ctx, status)
}

// ListLinkReportsForPost lets a post author review the link reports filed
// against their own listing; ViewReports moderators may read them too.
func (s *reportService) ListLinkReportsForPost(ctx context.Context, actorID, postID uuid.UUID) ([]model.LinkReport, error) {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, notFoundOr(err, "post "+postID.String())
	}

	if post.AuthorID != actor.ID && !(actor.IsMod && actor.Capabilities.ViewReports) {
		return nil, fmt.Errorf("%w: not the post author", apperror.ErrForbidden)
	}

	return s.reportRepo.FindLinkReportsByPostID(ctx, postID)
}

func (s *reportService) requireViewReports(ctx context.Context, actorID uuid.UUID) error {
	actor, err := findActor(ctx, s.userRepo, actorID)
	if err != nil {
		return err
	}
	if !actor.IsMod || !actor.Capabilities.ViewReports {
		return fmt.Errorf("%w: view reports capability required", apperror.ErrForbidden)
	}
	return nil
}

func (s *reportService) checkTargetExists(ctx context.Context, targetType string, targetID uuid.UUID) error {
	switch targetType {
	case model.ReportTargetPost:
		if _, err := s.postRepo.FindByID(ctx, targetID); err != nil {
			return notFoundOr(err, "post "+targetID.String())
		}
	case model.ReportTargetComment:
		if _, err := s.commentRepo.FindByID(ctx, targetID); err != nil {
			return notFoundOr(err, "comment "+targetID.String())
		}
	case model.ReportTargetUser:
		if _, err := s.userRepo.FindByID(ctx, targetID); err != nil {
			return notFoundOr(err, "user "+targetID.String())
		}
	default:
		return fmt.Errorf("%w: unknown report target type %q", apperror.ErrInvalidInput, targetType)
	}
	return nil
}

func (s *reportService) checkReportRateLimit(ctx context.Context, reporterID uuid.UUID) error {
	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_REPORT", 30*time.Second)
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, reporterID, ratelimiter.ScopeReport, limit)
	if err != nil {
		return fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, reporterID, ratelimiter.ScopeReport)
		return &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are reporting too fast. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}
	return nil
}
