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

func registerInput(username string) dto.RegisterInput {
	return dto.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse battery",
	}
}

func TestRegister_FirstUserBecomesModerator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.Register(ctx, registerInput("founder"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.Token)
	assert.True(t, first.User.IsMod)
	assert.Equal(t, model.FullCapabilities(), first.User.Capabilities)
	assert.Empty(t, first.User.PasswordHash)

	second, err := env.auth.Register(ctx, registerInput("regular"))
	require.NoError(t, err)
	assert.False(t, second.User.IsMod)
	assert.False(t, second.User.Capabilities.Any())
}

func TestRegister_DuplicateEmailAndUsername(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, registerInput("taken"))
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, registerInput("taken"))
	assert.True(t, errors.Is(err, apperror.ErrConflict))

	_, err = env.auth.Register(ctx, dto.RegisterInput{
		Username: "other",
		Email:    "taken@example.com",
		Password: "correct horse battery",
	})
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, registerInput("alice"))
	require.NoError(t, err)

	resp, err := env.auth.Login(ctx, dto.LoginInput{Username: "alice", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Empty(t, resp.User.PasswordHash)

	_, err = env.auth.Login(ctx, dto.LoginInput{Username: "alice", Password: "wrong"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = env.auth.Login(ctx, dto.LoginInput{Username: "nobody", Password: "whatever"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestLogin_BlockedAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	founder, err := env.auth.Register(ctx, registerInput("warden"))
	require.NoError(t, err)
	require.True(t, founder.User.IsMod)

	pariah, err := env.auth.Register(ctx, registerInput("pariah"))
	require.NoError(t, err)
	require.NoError(t, env.moderation.SetUserStatus(ctx, founder.User.ID, pariah.User.ID, model.UserStatusBlocked))

	_, err = env.auth.Login(ctx, dto.LoginInput{Username: "pariah", Password: "correct horse battery"})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestGetProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, registerInput("public"))
	require.NoError(t, err)

	profile, err := env.auth.GetProfile(ctx, "public")
	require.NoError(t, err)
	assert.Equal(t, "public", profile.Username)
	assert.NotEmpty(t, profile.CreatedAt)

	_, err = env.auth.GetProfile(ctx, "ghost")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestGetMe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, registerInput("selfie"))
	require.NoError(t, err)

	me, err := env.auth.GetMe(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "selfie", me.Username)
	assert.Empty(t, me.PasswordHash)
}
