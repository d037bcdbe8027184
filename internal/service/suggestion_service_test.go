package service

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSuggestion_OwnerRejected(t *testing.T) {
	env := newTestEnv(t)
	author := env.createUser(t, "author")
	post := env.createPost(t, author, "my listing")

	_, err := env.suggestions.CreateSuggestion(context.Background(), author.ID, post.ID, dto.CreateSuggestionInput{
		Message: "fixing my own typo",
		Title:   strPtr("better title"),
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
}

func TestCreateSuggestion_NoChangesRejected(t *testing.T) {
	env := newTestEnv(t)
	author := env.createUser(t, "author")
	helper := env.createUser(t, "helper")
	post := env.createPost(t, author, "sparse listing")

	_, err := env.suggestions.CreateSuggestion(context.Background(), helper.ID, post.ID, dto.CreateSuggestionInput{
		Message: "I have nothing to propose",
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
}

func TestCreateSuggestion_NotifiesPostAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	helper := env.createUser(t, "helper")
	post := env.createPost(t, author, "notify me")

	suggestion, err := env.suggestions.CreateSuggestion(ctx, helper.ID, post.ID, dto.CreateSuggestionInput{
		Message: "title could be clearer",
		Title:   strPtr("a clearer title"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionStatusPending, suggestion.Status)

	count, err := env.notifSvc.UnreadCount(author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListSuggestions_HeldPostLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mod := env.createModerator(t, "mod", model.Capabilities{DeletePosts: true, ViewReports: true})
	author := env.createUser(t, "author")
	helper := env.createUser(t, "helper")
	post := env.createPost(t, author, "held with suggestions")

	_, err := env.suggestions.CreateSuggestion(ctx, helper.ID, post.ID, dto.CreateSuggestionInput{
		Message: "before the hold",
		Title:   strPtr("a better title"),
	})
	require.NoError(t, err)
	require.NoError(t, env.moderation.SetPostStatus(ctx, mod.ID, post.ID, model.PostStatusHeld))

	_, err = env.suggestions.ListSuggestions(ctx, nil, post.ID, "")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = env.suggestions.ListSuggestions(ctx, &helper.ID, post.ID, "")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	suggestions, err := env.suggestions.ListSuggestions(ctx, &author.ID, post.ID, "")
	require.NoError(t, err)
	assert.Len(t, suggestions, 1)
}

func TestVoteSuggestion_AutoApproveMergesProposedFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	helper := env.createUser(t, "helper")
	post := env.createPost(t, author, "old title")

	suggestion, err := env.suggestions.CreateSuggestion(ctx, helper.ID, post.ID, dto.CreateSuggestionInput{
		Message:  "better name, keep everything else",
		Title:    strPtr("new title"),
		Category: strPtr("games"),
	})
	require.NoError(t, err)

	// 3 up, 2 down: 5 votes with a 0.6 upvote share approves.
	for i := 0; i < 3; i++ {
		voter := env.createUser(t, "up"+strconv.Itoa(i))
		_, err := env.suggestions.VoteSuggestion(ctx, voter.ID, suggestion.ID, 1)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		voter := env.createUser(t, "down"+strconv.Itoa(i))
		got, err := env.suggestions.VoteSuggestion(ctx, voter.ID, suggestion.ID, -1)
		require.NoError(t, err)
		if i == 1 {
			assert.Equal(t, model.SuggestionStatusApproved, got.Status)
		}
	}

	merged := env.reloadPost(t, post.ID)
	assert.Equal(t, "new title", merged.Title)
	assert.Equal(t, "games", merged.Category)
	// Untouched fields survive the merge.
	assert.Equal(t, post.Description, merged.Description)
	// A merged title change regenerates the slug.
	assert.NotEqual(t, post.Slug, merged.Slug)
}

func TestVoteSuggestion_BelowRatioStaysPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	helper := env.createUser(t, "helper")
	post := env.createPost(t, author, "contested listing")

	suggestion, err := env.suggestions.CreateSuggestion(ctx, helper.ID, post.ID, dto.CreateSuggestionInput{
		Message: "rename it",
		Title:   strPtr("contested title"),
	})
	require.NoError(t, err)

	// 2 up, 3 down: enough votes but only a 0.4 upvote share.
	for i := 0; i < 2; i++ {
		voter := env.createUser(t, "up"+strconv.Itoa(i))
		_, err := env.suggestions.VoteSuggestion(ctx, voter.ID, suggestion.ID, 1)
		require.NoError(t, err)
	}
	var got *model.PostSuggestion
	for i := 0; i < 3; i++ {
		voter := env.createUser(t, "down"+strconv.Itoa(i))
		got, err = env.suggestions.VoteSuggestion(ctx, voter.ID, suggestion.ID, -1)
		require.NoError(t, err)
	}

	assert.Equal(t, model.SuggestionStatusPending, got.Status)
	assert.Equal(t, "contested listing", env.reloadPost(t, post.ID).Title)
}

func TestApproveSuggestion_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	helper := env.createUser(t, "helper")
	stranger := env.createUser(t, "stranger")
	post := env.createPost(t, author, "needs approval")

	suggestion, err := env.suggestions.CreateSuggestion(ctx, helper.ID, post.ID, dto.CreateSuggestionInput{
		Message: "typo in title",
		Title:   strPtr("fixed title"),
	})
	require.NoError(t, err)

	_, err = env.suggestions.ApproveSuggestion(ctx, stranger.ID, suggestion.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	got, err := env.suggestions.ApproveSuggestion(ctx, author.ID, suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionStatusApproved, got.Status)
	assert.Equal(t, "fixed title", env.reloadPost(t, post.ID).Title)

	// A processed suggestion cannot be decided again.
	_, err = env.suggestions.ApproveSuggestion(ctx, author.ID, suggestion.ID)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestRejectSuggestion_ByModeratorWithEditPosts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	helper := env.createUser(t, "helper")
	mod := env.createModerator(t, "editor", model.Capabilities{EditPosts: true})
	post := env.createPost(t, author, "stays as is")

	suggestion, err := env.suggestions.CreateSuggestion(ctx, helper.ID, post.ID, dto.CreateSuggestionInput{
		Message: "rename",
		Title:   strPtr("worse title"),
	})
	require.NoError(t, err)

	got, err := env.suggestions.RejectSuggestion(ctx, mod.ID, suggestion.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SuggestionStatusRejected, got.Status)
	assert.Equal(t, "stays as is", env.reloadPost(t, post.ID).Title)

	_, err = env.suggestions.VoteSuggestion(ctx, env.createUser(t, "late").ID, suggestion.ID, 1)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}
