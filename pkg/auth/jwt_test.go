package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, adminKey string, expiration time.Duration) *JWTManager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	require.NoError(t, err)
	return NewJWTManager("test-secret", expiration, string(hash))
}

func TestIssueAndValidateAdminToken(t *testing.T) {
	m := newTestManager(t, "super-secret-admin-key", time.Hour)
	require.True(t, m.Enabled())

	token, err := m.IssueAdminToken("super-secret-admin-key")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
}

func TestIssueAdminTokenRejectsWrongKey(t *testing.T) {
	m := newTestManager(t, "super-secret-admin-key", time.Hour)

	_, err := m.IssueAdminToken("guess")
	assert.ErrorIs(t, err, ErrInvalidAdminKey)
}

func TestDisabledManagerIssuesNothing(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour, "")
	assert.False(t, m.Enabled())

	_, err := m.IssueAdminToken("anything")
	assert.ErrorIs(t, err, ErrInvalidAdminKey)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := newTestManager(t, "key", -time.Minute)

	token, err := m.IssueAdminToken("key")
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	m := newTestManager(t, "key", time.Hour)
	token, err := m.IssueAdminToken("key")
	require.NoError(t, err)

	other := NewJWTManager("different-secret", time.Hour, "")
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
