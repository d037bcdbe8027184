package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full service stack against an in-memory database, with
// redis and meilisearch absent. Rate limiting and live notifications degrade
// to no-ops in that configuration.
type testEnv struct {
	db *gorm.DB

	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	voteRepo       repository.VoteRepository
	commentRepo    repository.CommentRepository
	reportRepo     repository.ReportRepository
	suggestionRepo repository.SuggestionRepository

	notifSvc    NotificationService
	auth        AuthService
	posts       PostService
	votes       VoteService
	comments    CommentService
	reports     ReportService
	suggestions SuggestionService
	moderation  ModerationService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Post{},
		&model.PostVote{},
		&model.Comment{},
		&model.Report{},
		&model.LinkReport{},
		&model.PostSuggestion{},
		&model.SuggestionVote{},
		&model.Notification{},
	))

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)

	env := &testEnv{
		db:             db,
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		voteRepo:       repository.NewVoteRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		reportRepo:     repository.NewReportRepository(db),
		suggestionRepo: repository.NewSuggestionRepository(db),
	}

	env.notifSvc = NewNotificationService(repository.NewNotificationRepository(db), nil)
	env.auth = NewAuthService(env.userRepo, "", nil)
	env.posts = NewPostService(env.postRepo, env.userRepo, nil, nil, nil)
	env.votes = NewVoteService(env.voteRepo, env.postRepo, env.userRepo, env.reportRepo, env.notifSvc, nil)
	env.comments = NewCommentService(env.commentRepo, env.postRepo, env.userRepo, env.notifSvc, nil)
	env.reports = NewReportService(env.reportRepo, env.postRepo, env.commentRepo, env.userRepo, env.notifSvc, nil)
	env.suggestions = NewSuggestionService(env.suggestionRepo, env.voteRepo, env.postRepo, env.userRepo, env.notifSvc, nil, nil)
	env.moderation = NewModerationService(env.userRepo, env.postRepo, env.commentRepo, env.notifSvc, nil)

	return env
}

func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()

	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		Status:       model.UserStatusActive,
	}
	require.NoError(t, e.userRepo.Create(context.Background(), user))
	return user
}

func (e *testEnv) createModerator(t *testing.T, username string, caps model.Capabilities) *model.User {
	t.Helper()

	user := e.createUser(t, username)
	user.IsMod = true
	user.Capabilities = caps
	require.NoError(t, e.userRepo.Update(context.Background(), user))
	return user
}

func (e *testEnv) createPost(t *testing.T, author *model.User, title string) *model.Post {
	t.Helper()

	post, err := e.posts.CreatePost(context.Background(), author.ID, dto.CreatePostInput{
		Title:       title,
		Description: "a description of " + title,
		Category:    "tools",
		Tags:        []string{"test"},
		DownloadGroups: []dto.DownloadGroupInput{
			{
				Name: "Downloads",
				Links: []dto.DownloadLinkInput{
					{Label: "mirror 1", URL: "https://example.com/a"},
					{Label: "mirror 2", URL: "https://example.com/b"},
				},
			},
		},
	})
	require.NoError(t, err)
	return post
}

func (e *testEnv) reloadPost(t *testing.T, id interface{ String() string }) *model.Post {
	t.Helper()

	var post model.Post
	require.NoError(t, e.db.Where("id = ?", id.String()).First(&post).Error)
	return &post
}

func (e *testEnv) reloadUser(t *testing.T, id interface{ String() string }) *model.User {
	t.Helper()

	var user model.User
	require.NoError(t, e.db.Where("id = ?", id.String()).First(&user).Error)
	return &user
}

func strPtr(s string) *string {
	return &s
}
