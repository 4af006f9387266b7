// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/model"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "alice@example.com"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func authResult(token string) *api.AuthResult {
	return &api.AuthResult{
		Token:     token,
		TokenType: "bearer",
		User:      model.User{ID: 7, Email: "alice@example.com", Username: "alice"},
	}
}

// =============================================================================
// OPEN / SAVE
// =============================================================================

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestOpen_Empty(t *testing.T) {
	m, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "", m.Token())
	assert.Equal(t, "", m.UserID())
	assert.False(t, m.IsAuthenticated())
	_, ok := m.User()
	assert.False(t, ok)
}

func TestSave_PersistsAcrossOpen(t *testing.T) {
	for _, sealed := range []bool{false, true} {
		name := "plain"
		if sealed {
			name = "sealed"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			m, err := Open(Config{Dir: dir, Seal: sealed})
			require.NoError(t, err)
			require.NoError(t, m.Save(authResult("tok-abc")))

			assert.Equal(t, "tok-abc", m.Token())
			assert.Equal(t, "7", m.UserID())

			reopened, err := Open(Config{Dir: dir, Seal: sealed})
			require.NoError(t, err)
			assert.Equal(t, "tok-abc", reopened.Token())
			u, ok := reopened.User()
			require.True(t, ok)
			assert.Equal(t, "alice", u.Username)
		})
	}
}

func TestSave_FilePermissions(t *testing.T) {
	if os.PathSeparator == '\\' {
		t.Skip("permission bits are not enforced on Windows")
	}
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir, Seal: true})
	require.NoError(t, err)
	require.NoError(t, m.Save(authResult("tok")))

	for _, name := range []string{FileName, KeyFileName} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), name)
	}
}

func TestSave_SealedFileHidesToken(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir, Seal: true})
	require.NoError(t, err)
	require.NoError(t, m.Save(authResult("very-secret-token")))

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), sealedPrefix))
	assert.NotContains(t, string(raw), "very-secret-token")
}

func TestSave_RejectsEmptyToken(t *testing.T) {
	m, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)

	assert.ErrorIs(t, m.Save(nil), ErrEmptyToken)
	assert.ErrorIs(t, m.Save(authResult("  ")), ErrEmptyToken)
	assert.Equal(t, "", m.Token())
}

func TestOpen_DiscardsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	m, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "", m.Token())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_SealedWithoutKey(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir, Seal: true})
	require.NoError(t, err)
	require.NoError(t, m.Save(authResult("tok")))
	require.NoError(t, os.Remove(filepath.Join(dir, KeyFileName)))

	reopened, err := Open(Config{Dir: dir, Seal: true})
	require.NoError(t, err)
	assert.Equal(t, "", reopened.Token())
}

func TestSeal_TamperDetected(t *testing.T) {
	key := new([keySize]byte)
	key[0] = 1
	sealed, err := seal([]byte(`{"access_token":"x"}`), key)
	require.NoError(t, err)

	other := new([keySize]byte)
	_, err = open(sealed, other)
	assert.ErrorIs(t, err, ErrUnsealFailed)

	plain, err := open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"x"}`, string(plain))
}

// =============================================================================
// EXPIRY
// =============================================================================

func TestIsAuthenticated_Expiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque token", "not-a-jwt", true},
		{"no exp claim", signedToken(t, time.Time{}), true},
		{"valid", signedToken(t, now.Add(time.Hour)), true},
		{"inside skew", signedToken(t, now.Add(10*time.Second)), false},
		{"expired", signedToken(t, now.Add(-time.Hour)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Open(Config{Dir: t.TempDir()})
			require.NoError(t, err)
			m.now = func() time.Time { return now }
			require.NoError(t, m.Save(authResult(tt.token)))

			assert.Equal(t, tt.want, m.IsAuthenticated())
		})
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	m, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, m.Save(authResult(signedToken(t, exp))))

	got, ok := m.ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(exp), "got %v want %v", got, exp)
}

// =============================================================================
// LOGOUT / EXPIRE
// =============================================================================

func TestLogout(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir, Seal: true})
	require.NoError(t, err)
	require.NoError(t, m.Save(authResult("tok")))

	var reasons []error
	calls := 0
	m.OnLogout(func(reason error) {
		calls++
		reasons = append(reasons, reason)
	})

	require.NoError(t, m.Logout())
	assert.Equal(t, "", m.Token())
	assert.Equal(t, 1, calls)
	assert.Nil(t, reasons[0])

	for _, name := range []string{FileName, KeyFileName} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), name)
	}

	// Second logout is a no-op and does not notify again.
	require.NoError(t, m.Logout())
	assert.Equal(t, 1, calls)
}

func TestExpire_PassesReason(t *testing.T) {
	m, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, m.Save(authResult("tok")))

	var got error
	m.OnLogout(func(reason error) { got = reason })

	rejected := errors.New("token rejected")
	m.Expire(rejected)

	assert.ErrorIs(t, got, rejected)
	assert.False(t, m.IsAuthenticated())
}

func TestSetUser(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(Config{Dir: dir})
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetUser(model.User{ID: 1}), ErrNotSignedIn)

	require.NoError(t, m.Save(authResult("tok")))
	require.NoError(t, m.SetUser(model.User{ID: 7, Email: "alice@example.com", Username: "alice2"}))

	reopened, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	u, _ := reopened.User()
	assert.Equal(t, "alice2", u.Username)
	assert.Equal(t, "tok", reopened.Token())
}

func TestManager_ImplementsCredentials(t *testing.T) {
	m, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	var _ api.Credentials = m
}
