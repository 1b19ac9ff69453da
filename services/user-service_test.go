package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kerimlews/taskmanager/models"
	"github.com/kerimlews/taskmanager/repositories"
	"github.com/kerimlews/taskmanager/services"
	"github.com/kerimlews/taskmanager/utils"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T) (*services.UserService, *utils.TokenIssuer) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	tokens := utils.NewTokenIssuer("test-secret", time.Hour)
	svc := services.NewUserService(
		repositories.NewMemoryUserRepository(),
		utils.NewPasswordHasher(bcrypt.MinCost),
		tokens,
		[]string{" Admin@Example.com "},
		logger,
	)
	return svc, tokens
}

func TestSignUp(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.SignUp(ctx, " Jane@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "secret1", user.Password)
	assert.NotEmpty(t, user.ID)

	admin, err := svc.SignUp(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
}

func TestSignUp_Rejects(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	_, err := svc.SignUp(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name, email, password string
	}{
		{name: "duplicate", email: "JANE@example.com", password: "secret1"},
		{name: "missing email", email: " ", password: "secret1"},
		{name: "malformed email", email: "not-an-email", password: "secret1"},
		{name: "display name", email: "Jane <x@example.com>", password: "secret1"},
		{name: "short password", email: "x@example.com", password: "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestLogin(t *testing.T) {
	svc, tokens := newUserService(t)
	ctx := context.Background()
	created, err := svc.SignUp(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)

	token, user, err := svc.Login(ctx, "JANE@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	claims, err := tokens.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)

	_, _, err = svc.Login(ctx, "jane@example.com", "wrong-password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	_, _, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	user, err := svc.SignUp(ctx, "jane@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, "john@example.com", "secret1")
	require.NoError(t, err)

	admin := "admin"
	updated, err := svc.UpdateUser(ctx, user.ID, models.UserPatch{Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, updated.Role)

	bogus := "root"
	_, err = svc.UpdateUser(ctx, user.ID, models.UserPatch{Role: &bogus})
	assert.ErrorIs(t, err, models.ErrValidation)

	taken := "john@example.com"
	_, err = svc.UpdateUser(ctx, user.ID, models.UserPatch{Email: &taken})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.UpdateUser(ctx, "missing", models.UserPatch{Role: &admin})
	assert.ErrorIs(t, err, models.ErrNotFound)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, svc.DeleteUser(ctx, user.ID))
	_, err = svc.GetUserByID(ctx, user.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteUser(ctx, user.ID), models.ErrNotFound)
}

func TestSignUp_RejectsBlacklistedPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("# common passwords\n123456\n\npassword\n"), 0600))

	blacklist, err := services.LoadPasswordBlacklist(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"123456": true, "password": true}, blacklist)

	svc, _ := newUserService(t)
	svc.WithPasswordBlacklist(blacklist)

	_, err = svc.SignUp(context.Background(), "jane@example.com", "password")
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = svc.SignUp(context.Background(), "jane@example.com", "secret1")
	assert.NoError(t, err)

	_, err = services.LoadPasswordBlacklist(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
