// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/logging"
	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// FileName is the credentials file inside the data directory.
	FileName = "session.json"

	// KeyFileName holds the sealing key when sealing is enabled.
	KeyFileName = "credentials.key"

	// ExpirySkew treats tokens this close to expiry as already expired.
	ExpirySkew = 30 * time.Second
)

var (
	// ErrNotSignedIn is returned when an operation needs credentials.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrEmptyToken is returned by Save for an auth result without a token.
	ErrEmptyToken = errors.New("auth result has no access token")
)

// =============================================================================
// MANAGER
// =============================================================================

// Config configures a Manager.
type Config struct {
	// Dir is the directory holding the credentials file.
	Dir string

	// Seal encrypts the credentials file at rest.
	Seal bool

	Logger *slog.Logger
}

// record is the persisted form of a session.
type record struct {
	Token     string     `json:"access_token"`
	TokenType string     `json:"token_type,omitempty"`
	User      model.User `json:"user"`
	SavedAt   time.Time  `json:"saved_at"`
}

// Manager holds the current credentials.
type Manager struct {
	mu      sync.RWMutex
	path    string
	keyPath string
	seal    bool
	rec     *record
	logger  *slog.Logger

	onLogout []func(reason error)

	// now is replaced in tests.
	now func() time.Time
}

// Open loads the stored session from cfg.Dir if there is one. A file that
// cannot be decoded is discarded and the manager starts signed out.
func Open(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("session directory is required")
	}
	m := &Manager{
		path:    filepath.Join(cfg.Dir, FileName),
		keyPath: filepath.Join(cfg.Dir, KeyFileName),
		seal:    cfg.Seal,
		logger:  logging.OrDiscard(cfg.Logger),
		now:     time.Now,
	}

	rec, err := m.load()
	if err != nil {
		m.logger.Warn("discarding unreadable session", "path", m.path, "error", err)
		_ = os.Remove(m.path)
		return m, nil
	}
	m.rec = rec
	return m, nil
}

// Path returns the credentials file location.
func (m *Manager) Path() string {
	return m.path
}

// Token returns the bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec == nil {
		return ""
	}
	return m.rec.Token
}

// UserID returns the signed-in user id, or "" when signed out.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec == nil {
		return ""
	}
	return m.rec.User.Key()
}

// User returns the signed-in account.
func (m *Manager) User() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec == nil {
		return model.User{}, false
	}
	return m.rec.User, true
}

// ExpiresAt reports the token's exp claim. Tokens that are not JWTs or
// carry no exp claim report false.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	token := m.Token()
	if token == "" {
		return time.Time{}, false
	}
	return tokenExpiry(token)
}

// IsAuthenticated reports whether a token is held and not yet expired.
func (m *Manager) IsAuthenticated() bool {
	if m.Token() == "" {
		return false
	}
	exp, ok := m.ExpiresAt()
	if !ok {
		return true
	}
	return m.now().Add(ExpirySkew).Before(exp)
}

// Save stores the credentials from a successful login or register.
func (m *Manager) Save(res *api.AuthResult) error {
	if res == nil || strings.TrimSpace(res.Token) == "" {
		return ErrEmptyToken
	}

	rec := &record{
		Token:     res.Token,
		TokenType: res.TokenType,
		User:      res.User,
		SavedAt:   m.now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(rec); err != nil {
		return err
	}
	m.rec = rec
	m.logger.Info("session saved", "user_id", rec.User.ID)
	return nil
}

// SetUser replaces the stored account details, keeping the token. Used
// after /auth/me returns fresher data.
func (m *Manager) SetUser(u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return ErrNotSignedIn
	}
	rec := *m.rec
	rec.User = u
	if err := m.write(&rec); err != nil {
		return err
	}
	m.rec = &rec
	return nil
}

// OnLogout registers fn to run after the session ends. reason is nil for
// an explicit logout.
func (m *Manager) OnLogout(fn func(reason error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// Logout removes the stored credentials.
func (m *Manager) Logout() error {
	return m.end(nil)
}

// Expire ends the session because the server rejected the token.
func (m *Manager) Expire(reason error) {
	if err := m.end(reason); err != nil {
		m.logger.Warn("failed to remove expired session", "error", err)
	}
}

func (m *Manager) end(reason error) error {
	m.mu.Lock()
	wasSignedIn := m.rec != nil
	m.rec = nil
	err := os.Remove(m.path)
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	if err == nil {
		err = removeKey(m.keyPath)
	}
	listeners := append([]func(error){}, m.onLogout...)
	m.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("failed to remove session: %w", err)
	}
	if !wasSignedIn {
		return err
	}

	if reason != nil {
		m.logger.Info("session expired", "reason", reason)
	} else {
		m.logger.Info("signed out")
	}
	for _, fn := range listeners {
		fn(reason)
	}
	return err
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (m *Manager) load() (*record, error) {
	data, err := util.ReadFileIfExists(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	if isSealed(data) {
		key, err := loadKey(m.keyPath)
		if err != nil {
			return nil, err
		}
		data, err = open(data, key)
		if err != nil {
			return nil, err
		}
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	if rec.Token == "" {
		return nil, ErrEmptyToken
	}
	return &rec, nil
}

func (m *Manager) write(rec *record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if m.seal {
		key, err := loadOrCreateKey(m.keyPath)
		if err != nil {
			return err
		}
		data, err = seal(data, key)
		if err != nil {
			return err
		}
	}
	if err := util.AtomicWriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
