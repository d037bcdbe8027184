package service

import (
	"context"
	"errors"
	"testing"

	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int {
	return &i
}

func TestCreateReport_DuplicatePendingConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	reporter := env.createUser(t, "reporter")
	resolver := env.createModerator(t, "resolver", model.Capabilities{ViewReports: true, ResolveReports: true})
	post := env.createPost(t, author, "sketchy listing")

	input := dto.CreateReportInput{
		TargetType: model.ReportTargetPost,
		TargetID:   post.ID,
		Reason:     "dead links",
	}

	report, err := env.reports.CreateReport(ctx, reporter.ID, input)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusPending, report.Status)

	_, err = env.reports.CreateReport(ctx, reporter.ID, input)
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	// Once the pending report is processed, the same reporter may file again.
	require.NoError(t, env.reports.ResolveReport(ctx, resolver.ID, report.ID))
	_, err = env.reports.CreateReport(ctx, reporter.ID, input)
	assert.NoError(t, err)
}

func TestCreateReport_MissingTarget(t *testing.T) {
	env := newTestEnv(t)
	reporter := env.createUser(t, "reporter")
	ghost := env.createUser(t, "ghost")

	post := env.createPost(t, ghost, "short lived")
	require.NoError(t, env.postRepo.DeleteCascade(context.Background(), post.ID))

	_, err := env.reports.CreateReport(context.Background(), reporter.ID, dto.CreateReportInput{
		TargetType: model.ReportTargetPost,
		TargetID:   post.ID,
		Reason:     "spam",
	})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestResolveReport_RequiresCapability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	reporter := env.createUser(t, "reporter")
	viewerOnly := env.createModerator(t, "viewer", model.Capabilities{ViewReports: true})
	post := env.createPost(t, author, "reported listing")

	report, err := env.reports.CreateReport(ctx, reporter.ID, dto.CreateReportInput{
		TargetType: model.ReportTargetPost,
		TargetID:   post.ID,
		Reason:     "malware",
	})
	require.NoError(t, err)

	err = env.reports.ResolveReport(ctx, viewerOnly.ID, report.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	err = env.reports.ResolveReport(ctx, reporter.ID, report.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestListReports_RequiresViewReports(t *testing.T) {
	env := newTestEnv(t)
	plain := env.createUser(t, "plain")

	_, err := env.reports.ListReports(context.Background(), plain.ID, "")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestCreateLinkReport_BoundsChecked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	reporter := env.createUser(t, "reporter")
	post := env.createPost(t, author, "two mirrors")

	_, err := env.reports.CreateLinkReport(ctx, reporter.ID, post.ID, dto.CreateLinkReportInput{
		GroupIndex: intPtr(0),
		LinkIndex:  intPtr(5),
		Reason:     "404",
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))

	report, err := env.reports.CreateLinkReport(ctx, reporter.ID, post.ID, dto.CreateLinkReportInput{
		GroupIndex: intPtr(0),
		LinkIndex:  intPtr(1),
		Reason:     "404",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusPending, report.Status)

	// The post author was told about the broken link.
	count, err := env.notifSvc.UnreadCount(author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpdateLinkFromReport_AuthorFixesURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	reporter := env.createUser(t, "reporter")
	post := env.createPost(t, author, "fixable listing")

	report, err := env.reports.CreateLinkReport(ctx, reporter.ID, post.ID, dto.CreateLinkReportInput{
		GroupIndex: intPtr(0),
		LinkIndex:  intPtr(0),
		Reason:     "redirects to ads",
	})
	require.NoError(t, err)

	// Only the post author can rewrite the link through the report.
	_, err = env.reports.UpdateLinkFromReport(ctx, reporter.ID, report.ID, "https://example.com/fixed")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	updated, err := env.reports.UpdateLinkFromReport(ctx, author.ID, report.ID, "https://example.com/fixed")
	require.NoError(t, err)

	link, ok := updated.LinkAt(0, 0)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/fixed", link.URL)

	stored, err := env.reportRepo.FindLinkReportByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusResolved, stored.Status)

	// The report is spent.
	_, err = env.reports.UpdateLinkFromReport(ctx, author.ID, report.ID, "https://example.com/again")
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestListLinkReportsForPost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	reporter := env.createUser(t, "reporter")
	stranger := env.createUser(t, "stranger")
	mod := env.createModerator(t, "mod", model.Capabilities{ViewReports: true})
	post := env.createPost(t, author, "listing with reports")

	_, err := env.reports.CreateLinkReport(ctx, reporter.ID, post.ID, dto.CreateLinkReportInput{
		GroupIndex: intPtr(0),
		LinkIndex:  intPtr(0),
		Reason:     "dead mirror",
	})
	require.NoError(t, err)

	reports, err := env.reports.ListLinkReportsForPost(ctx, author.ID, post.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	reports, err = env.reports.ListLinkReportsForPost(ctx, mod.ID, post.ID)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	_, err = env.reports.ListLinkReportsForPost(ctx, stranger.ID, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestResolveLinkReport_PostAuthorMayDismiss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	reporter := env.createUser(t, "reporter")
	stranger := env.createUser(t, "stranger")
	post := env.createPost(t, author, "disputed link")

	report, err := env.reports.CreateLinkReport(ctx, reporter.ID, post.ID, dto.CreateLinkReportInput{
		GroupIndex: intPtr(0),
		LinkIndex:  intPtr(0),
		Reason:     "slow mirror",
	})
	require.NoError(t, err)

	err = env.reports.ResolveLinkReport(ctx, stranger.ID, report.ID, model.ReportStatusDismissed)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	require.NoError(t, env.reports.ResolveLinkReport(ctx, author.ID, report.ID, model.ReportStatusDismissed))

	stored, err := env.reportRepo.FindLinkReportByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusDismissed, stored.Status)
}
