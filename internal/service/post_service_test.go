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

func TestCreatePost_GeneratesSlug(t *testing.T) {
	env := newTestEnv(t)

	author := env.createUser(t, "author")
	post := env.createPost(t, author, "My Great Tool v2.0!")

	assert.Regexp(t, `^my-great-tool-v20-[0-9a-f]{8}$`, post.Slug)
	assert.Equal(t, model.PostStatusActive, post.Status)
	require.Len(t, post.DownloadGroups, 1)
	assert.Len(t, post.DownloadGroups[0].Links, 2)
}

func TestGetPostBySlug_HiddenPostVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	stranger := env.createUser(t, "stranger")
	viewerMod := env.createModerator(t, "viewer-mod", model.Capabilities{ViewReports: true})
	actingMod := env.createModerator(t, "acting-mod", model.Capabilities{DeletePosts: true})
	post := env.createPost(t, author, "quietly held")

	require.NoError(t, env.moderation.SetPostStatus(ctx, actingMod.ID, post.ID, model.PostStatusHeld))

	// Anonymous and unrelated viewers cannot tell held from missing.
	_, err := env.posts.GetPostBySlug(ctx, nil, post.Slug, "anon")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = env.posts.GetPostBySlug(ctx, &stranger.ID, post.Slug, "stranger")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	got, err := env.posts.GetPostBySlug(ctx, &author.ID, post.Slug, "author")
	require.NoError(t, err)
	assert.Equal(t, post.ID, got.ID)

	got, err = env.posts.GetPostBySlug(ctx, &viewerMod.ID, post.Slug, "mod")
	require.NoError(t, err)
	assert.Equal(t, model.PostStatusHeld, got.Status)

	// Acting mod without ViewReports is treated like any other user.
	_, err = env.posts.GetPostBySlug(ctx, &actingMod.ID, post.Slug, "acting")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestUpdatePost_MergesFieldsAndRegeneratesSlug(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	post := env.createPost(t, author, "original title")
	oldSlug := post.Slug

	updated, err := env.posts.UpdatePost(ctx, author.ID, post.ID, dto.UpdatePostInput{
		Title:    strPtr("renamed title"),
		Category: strPtr("games"),
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed title", updated.Title)
	assert.Equal(t, "games", updated.Category)
	assert.NotEqual(t, oldSlug, updated.Slug)
	assert.Regexp(t, `^renamed-title-`, updated.Slug)
	// Untouched fields survive the partial update.
	assert.Equal(t, "a description of original title", updated.Description)
	assert.Len(t, updated.DownloadGroups, 1)
}

func TestUpdatePost_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	stranger := env.createUser(t, "stranger")
	editor := env.createModerator(t, "editor", model.Capabilities{EditPosts: true})
	post := env.createPost(t, author, "guarded listing")

	_, err := env.posts.UpdatePost(ctx, stranger.ID, post.ID, dto.UpdatePostInput{Title: strPtr("hijacked")})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	updated, err := env.posts.UpdatePost(ctx, editor.ID, post.ID, dto.UpdatePostInput{Title: strPtr("tidied up")})
	require.NoError(t, err)
	assert.Equal(t, "tidied up", updated.Title)
}

func TestDeletePost_CascadeRemovesDependents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	visitor := env.createUser(t, "visitor")
	post := env.createPost(t, author, "short lived")

	_, err := env.comments.CreateComment(ctx, visitor.ID, post.ID, dto.CreateCommentInput{Content: "hi"})
	require.NoError(t, err)
	_, err = env.votes.VotePost(ctx, visitor.ID, post.ID, 1)
	require.NoError(t, err)
	_, err = env.suggestions.CreateSuggestion(ctx, visitor.ID, post.ID, dto.CreateSuggestionInput{
		Title:   strPtr("better title"),
		Message: "typo in the title",
	})
	require.NoError(t, err)

	require.NoError(t, env.posts.DeletePost(ctx, author.ID, post.ID))

	pid := post.ID.String()
	var comments, votes, suggestions int64
	env.db.Model(&model.Comment{}).Where("post_id = ?", pid).Count(&comments)
	env.db.Model(&model.PostVote{}).Where("post_id = ?", pid).Count(&votes)
	env.db.Model(&model.PostSuggestion{}).Where("post_id = ?", pid).Count(&suggestions)
	assert.Zero(t, comments)
	assert.Zero(t, votes)
	assert.Zero(t, suggestions)

	_, err = env.posts.GetPostBySlug(ctx, &author.ID, post.Slug, "author")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDeletePost_StrangerForbidden(t *testing.T) {
	env := newTestEnv(t)

	author := env.createUser(t, "author")
	stranger := env.createUser(t, "stranger")
	post := env.createPost(t, author, "protected listing")

	err := env.posts.DeletePost(context.Background(), stranger.ID, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestListPosts_ActiveOnlyWithFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	mod := env.createModerator(t, "mod", model.Capabilities{DeletePosts: true})

	visible := env.createPost(t, author, "visible listing")
	hidden := env.createPost(t, author, "hidden listing")
	require.NoError(t, env.moderation.SetPostStatus(ctx, mod.ID, hidden.ID, model.PostStatusHeld))

	page, err := env.posts.ListPosts(ctx, dto.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, visible.ID, page.Posts[0].ID)

	byCategory, err := env.posts.ListPosts(ctx, dto.PostFilter{Category: "tools"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), byCategory.Total)

	empty, err := env.posts.ListPosts(ctx, dto.PostFilter{Category: "games"})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestGetMyPosts_IncludesHidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	mod := env.createModerator(t, "mod", model.Capabilities{DeletePosts: true})

	env.createPost(t, author, "first listing")
	second := env.createPost(t, author, "second listing")
	require.NoError(t, env.moderation.SetPostStatus(ctx, mod.ID, second.ID, model.PostStatusHeld))

	mine, err := env.posts.GetMyPosts(ctx, author.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
