package auth

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notedly/notedly-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword(hash, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_Empty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	ok, err := VerifyPassword("not-a-hash", "whatever")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadOrGenerateKey_RoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "auth-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	key, err := LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	// A second load returns the persisted key, not a new one.
	again, err := LoadOrGenerateKey(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	_, err = os.Stat(filepath.Join(tmpDir, "auth.key"))
	require.NoError(t, err)
}

func TestLoadOrGenerateKey_CorruptFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "auth-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "auth.key"), []byte("garbage"), 0o600))

	_, err = LoadOrGenerateKey(tmpDir)
	assert.Error(t, err)
}

func newTestTokenService(t *testing.T, duration time.Duration) *TokenService {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	svc, err := NewTokenService(key, duration)
	require.NoError(t, err)
	return svc
}

func TestTokenService_RoundTrip(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	user := &domain.User{ID: "usr-001", Email: "alice@example.com"}

	token, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "usr-001", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.NotEmpty(t, claims.Jti)
}

func TestTokenService_Expired(t *testing.T) {
	svc := newTestTokenService(t, -time.Minute)

	token, err := svc.GenerateAccessToken(&domain.User{ID: "usr-001", Email: "a@b.c"})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestTokenService_WrongKey(t *testing.T) {
	issuer := newTestTokenService(t, time.Hour)
	verifier := newTestTokenService(t, time.Hour)

	token, err := issuer.GenerateAccessToken(&domain.User{ID: "usr-001", Email: "a@b.c"})
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestNewTokenService_BadKeyLength(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Hour)
	assert.Error(t, err)
}
