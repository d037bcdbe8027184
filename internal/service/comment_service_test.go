package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/internal/model"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateComment_NotifiesPostAuthor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	commenter := env.createUser(t, "commenter")
	post := env.createPost(t, author, "commented listing")

	comment, err := env.comments.CreateComment(ctx, commenter.ID, post.ID, dto.CreateCommentInput{Content: "works great, thanks"})
	require.NoError(t, err)
	assert.Equal(t, model.CommentStatusApproved, comment.Status)

	count, err := env.notifSvc.UnreadCount(author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateComment_ReplyDepthCapped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	post := env.createPost(t, author, "threaded listing")

	top, err := env.comments.CreateComment(ctx, author.ID, post.ID, dto.CreateCommentInput{Content: "top level"})
	require.NoError(t, err)

	reply, err := env.comments.CreateComment(ctx, author.ID, post.ID, dto.CreateCommentInput{
		Content:  "a reply",
		ParentID: &top.ID,
	})
	require.NoError(t, err)

	_, err = env.comments.CreateComment(ctx, author.ID, post.ID, dto.CreateCommentInput{
		Content:  "a reply to the reply",
		ParentID: &reply.ID,
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
}

func TestCreateComment_ParentMustBelongToPost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	postA := env.createPost(t, author, "listing a")
	postB := env.createPost(t, author, "listing b")

	parent, err := env.comments.CreateComment(ctx, author.ID, postA.ID, dto.CreateCommentInput{Content: "on a"})
	require.NoError(t, err)

	_, err = env.comments.CreateComment(ctx, author.ID, postB.ID, dto.CreateCommentInput{
		Content:  "cross-post reply",
		ParentID: &parent.ID,
	})
	assert.True(t, errors.Is(err, apperror.ErrInvalidInput))
}

func TestCreateComment_HeldPostLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mod := env.createModerator(t, "mod", model.Capabilities{DeletePosts: true})
	author := env.createUser(t, "author")
	commenter := env.createUser(t, "commenter")
	post := env.createPost(t, author, "held listing")

	require.NoError(t, env.moderation.SetPostStatus(ctx, mod.ID, post.ID, model.PostStatusHeld))

	_, err := env.comments.CreateComment(ctx, commenter.ID, post.ID, dto.CreateCommentInput{Content: "hello?"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestListComments_HeldPostLooksMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mod := env.createModerator(t, "mod", model.Capabilities{DeletePosts: true, ViewReports: true})
	author := env.createUser(t, "author")
	stranger := env.createUser(t, "stranger")
	post := env.createPost(t, author, "quietly held")

	_, err := env.comments.CreateComment(ctx, stranger.ID, post.ID, dto.CreateCommentInput{Content: "before the hold"})
	require.NoError(t, err)
	require.NoError(t, env.moderation.SetPostStatus(ctx, mod.ID, post.ID, model.PostStatusHeld))

	_, err = env.comments.ListComments(ctx, nil, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = env.comments.ListComments(ctx, &stranger.ID, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	// The author and a ViewReports moderator still see the thread.
	comments, err := env.comments.ListComments(ctx, &author.ID, post.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	comments, err = env.comments.ListComments(ctx, &mod.ID, post.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}

func TestCreateComment_SanitizesMarkup(t *testing.T) {
	env := newTestEnv(t)

	author := env.createUser(t, "author")
	post := env.createPost(t, author, "scripted listing")

	comment, err := env.comments.CreateComment(context.Background(), author.ID, post.ID, dto.CreateCommentInput{
		Content: `hello <script>alert("x")</script>world`,
	})
	require.NoError(t, err)
	assert.NotContains(t, comment.Content, "<script>")
	assert.Contains(t, comment.Content, "hello")
}

func TestDeleteComment_RemovesReplies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	commenter := env.createUser(t, "commenter")
	post := env.createPost(t, author, "pruned listing")

	top, err := env.comments.CreateComment(ctx, commenter.ID, post.ID, dto.CreateCommentInput{Content: "parent"})
	require.NoError(t, err)
	_, err = env.comments.CreateComment(ctx, author.ID, post.ID, dto.CreateCommentInput{Content: "child", ParentID: &top.ID})
	require.NoError(t, err)

	require.NoError(t, env.comments.DeleteComment(ctx, commenter.ID, top.ID))

	var remaining int64
	env.db.Model(&model.Comment{}).Where("post_id = ?", post.ID.String()).Count(&remaining)
	assert.Zero(t, remaining)
}

func TestDeleteComment_Permissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	commenter := env.createUser(t, "commenter")
	stranger := env.createUser(t, "stranger")
	mod := env.createModerator(t, "mod", model.Capabilities{DeleteComments: true})
	post := env.createPost(t, author, "moderated listing")

	first, err := env.comments.CreateComment(ctx, commenter.ID, post.ID, dto.CreateCommentInput{Content: "one"})
	require.NoError(t, err)
	second, err := env.comments.CreateComment(ctx, commenter.ID, post.ID, dto.CreateCommentInput{Content: "two"})
	require.NoError(t, err)

	err = env.comments.DeleteComment(ctx, stranger.ID, first.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	require.NoError(t, env.comments.DeleteComment(ctx, mod.ID, first.ID))
	require.NoError(t, env.comments.DeleteComment(ctx, commenter.ID, second.ID))
}

func TestListAllComments_RequiresViewReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	mod := env.createModerator(t, "mod", model.Capabilities{ViewReports: true, DeleteComments: true})
	post := env.createPost(t, author, "audited listing")

	comment, err := env.comments.CreateComment(ctx, author.ID, post.ID, dto.CreateCommentInput{Content: "visible once"})
	require.NoError(t, err)
	require.NoError(t, env.moderation.SetCommentStatus(ctx, mod.ID, comment.ID, model.CommentStatusBlocked))

	_, err = env.comments.ListAllComments(ctx, author.ID, post.ID)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	all, err := env.comments.ListAllComments(ctx, mod.ID, post.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.CommentStatusBlocked, all[0].Status)
}

func TestDeleteComment_MissingComment(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "user")

	err := env.comments.DeleteComment(context.Background(), user.ID, uuid.Must(uuid.NewV7()))
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
