//go:build integration

package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"textile-store/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUser(t *testing.T, email string) *domain.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "$2a$10$placeholderplaceholderplaceholderplaceholderplacehold",
		FirstName:    "Test",
		LastName:     "Shopper",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, NewUserRepository(testDB).Create(context.Background(), user))
	return user
}

// Feature: storefront, Property 4: Registration stores hashed passwords
func TestProperty_StoredPasswordsAreBcryptHashes(t *testing.T) {
	repo := NewUserRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("a stored user verifies its password and never holds it in plaintext", prop.ForAll(
		func(local, password string) bool {
			email := local + "-" + uuid.NewString()[:8] + "@example.com"
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
			if err != nil {
				return false
			}

			now := time.Now().UTC()
			if err := repo.Create(ctx, &domain.User{
				ID:           uuid.New(),
				Email:        email,
				PasswordHash: string(hash),
				FirstName:    "Ada",
				LastName:     "Obi",
				Role:         domain.RoleUser,
				CreatedAt:    now,
				UpdatedAt:    now,
			}); err != nil {
				t.Logf("create: %v", err)
				return false
			}

			got, err := repo.FindByEmail(ctx, " "+strings.ToUpper(email)+" ")
			if err != nil {
				t.Logf("find: %v", err)
				return false
			}
			return got.PasswordHash != password &&
				bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte(password)) == nil
		},
		gen.RegexMatch(`[a-z]{4,10}`),
		gen.RegexMatch(`[A-Za-z0-9!@#$%]{8,20}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	user := newTestUser(t, "dup-"+uuid.NewString()[:8]+"@example.com")

	dup := *user
	dup.ID = uuid.New()
	dup.Email = strings.ToUpper(user.Email)
	err := NewUserRepository(testDB).Create(context.Background(), &dup)
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRefreshTokenRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	user := newTestUser(t, "session-"+uuid.NewString()[:8]+"@example.com")
	repo := NewRefreshTokenRepository(testDB)
	now := time.Now().UTC().Truncate(time.Microsecond)

	live := &domain.RefreshToken{ID: uuid.New(), UserID: user.ID, Token: "live-" + uuid.NewString(), ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	stale := &domain.RefreshToken{ID: uuid.New(), UserID: user.ID, Token: "stale-" + uuid.NewString(), ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, repo.Create(ctx, live))
	require.NoError(t, repo.Create(ctx, stale))

	var stored string
	require.NoError(t, testDB.QueryRowContext(ctx, `SELECT token_hash FROM refresh_tokens WHERE id = $1`, live.ID).Scan(&stored))
	assert.NotEqual(t, live.Token, stored)
	assert.Len(t, stored, 64)

	found, err := repo.FindByToken(ctx, live.Token)
	require.NoError(t, err)
	assert.Equal(t, live.ID, found.ID)
	assert.Equal(t, live.Token, found.Token)

	n, err := repo.DeleteExpiredForUser(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = repo.FindByToken(ctx, stale.Token)
	assert.ErrorIs(t, err, ErrRefreshTokenNotFound)

	require.NoError(t, repo.Revoke(ctx, live.Token, now))
	_, err = repo.FindByToken(ctx, live.Token)
	assert.ErrorIs(t, err, ErrRefreshTokenRevoked)
	assert.ErrorIs(t, repo.Revoke(ctx, live.Token, now), ErrRefreshTokenNotFound)
}
