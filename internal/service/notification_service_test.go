package service

import (
	"context"
	"errors"
	"testing"

	"github.com/openshelf/openshelf/internal/dto"
	"github.com/openshelf/openshelf/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkAsRead_ScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	author := env.createUser(t, "author")
	commenter := env.createUser(t, "commenter")
	post := env.createPost(t, author, "noisy listing")

	_, err := env.comments.CreateComment(ctx, commenter.ID, post.ID, dto.CreateCommentInput{Content: "ping"})
	require.NoError(t, err)

	notifications, err := env.notifSvc.GetNotifications(author.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	// Another user cannot mark it read.
	err = env.notifSvc.MarkAsRead(notifications[0].ID, commenter.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	count, err := env.notifSvc.UnreadCount(author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, env.notifSvc.MarkAsRead(notifications[0].ID, author.ID))
	count, err = env.notifSvc.UnreadCount(author.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
