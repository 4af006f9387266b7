// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/binding"
	"github.com/jeranaias/confidant/internal/catalog"
	"github.com/jeranaias/confidant/internal/config"
	"github.com/jeranaias/confidant/internal/controller"
	"github.com/jeranaias/confidant/internal/logging"
	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/render"
	"github.com/jeranaias/confidant/internal/session"
	"github.com/jeranaias/confidant/internal/storage"
	"github.com/jeranaias/confidant/internal/ui/styles"
)

// catalogTimeout bounds the best-effort persona refresh.
const catalogTimeout = 5 * time.Second

// Env is the wired client stack shared by every handler.
type Env struct {
	Config   *config.Config
	DataDir  string
	Logger   *slog.Logger
	Session  *session.Manager
	Client   *api.Client
	KV       storage.KV
	Bindings *binding.Binding
	Catalog  *catalog.Catalog

	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	closers []io.Closer
}

// Bootstrap loads configuration and builds the client stack.
// The caller must Close the returned Env.
func Bootstrap(args Args) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyArgs(cfg, args)
	config.SetGlobal(cfg)

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if args.Verbose {
		level = "debug"
	}
	logger, logCloser, err := logging.New(logging.Options{Path: logPath, Level: level})
	if err != nil {
		return nil, err
	}

	env, err := NewEnv(cfg, dataDir, logger)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	env.closers = append(env.closers, logCloser)
	return env, nil
}

// applyArgs folds command line overrides into cfg.
func applyArgs(cfg *config.Config, args Args) {
	if args.Server != "" {
		cfg.Server.URL = args.Server
	}
	if args.Plain {
		cfg.UI.Theme = styles.ThemePlain
		cfg.UI.Markdown = false
	}
}

// NewEnv wires the stack for an already loaded configuration.
func NewEnv(cfg *config.Config, dataDir string, logger *slog.Logger) (*Env, error) {
	logger = logging.OrDiscard(logger)

	mgr, err := session.Open(session.Config{
		Dir:    dataDir,
		Seal:   cfg.Security.EncryptCredentials,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(cfg.Storage.Backend, dataDir)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.Server.URL).
		WithCredentials(mgr).
		WithTimeout(cfg.Server.Timeout()).
		WithRateLimit(cfg.Server.RequestsPerSecond, cfg.Server.Burst).
		WithUserAgent("confidant/" + Version).
		WithLogger(logger)

	cat := catalog.New()
	if cfg.Catalog.OverridesFile != "" {
		if err := cat.LoadOverrides(cfg.Catalog.OverridesFile); err != nil {
			logger.Warn("ignoring persona overrides", "path", cfg.Catalog.OverridesFile, "error", err)
		}
	}

	mgr.OnLogout(func(reason error) {
		if reason != nil {
			logger.Info("session ended", "reason", reason)
		}
	})

	return &Env{
		Config:   cfg,
		DataDir:  dataDir,
		Logger:   logger,
		Session:  mgr,
		Client:   client,
		KV:       kv,
		Bindings: binding.New(kv),
		Catalog:  cat,
		In:       os.Stdin,
		Out:      os.Stdout,
		ErrOut:   os.Stderr,
		closers:  []io.Closer{kv},
	}, nil
}

// Close releases the binding store and log file.
func (e *Env) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// StoragePath returns where bindings live, or "" for the memory backend.
func (e *Env) StoragePath() string {
	return storage.Path(e.Config.Storage.Backend, e.DataDir)
}

// =============================================================================
// SESSION
// =============================================================================

// RequireUser returns the signed-in user after checking the token with the
// server. A rejected token ends the session. When the server is unreachable
// the stored user is trusted so the caller can still start.
func (e *Env) RequireUser(ctx context.Context) (model.User, error) {
	if e.Session.Token() == "" {
		return model.User{}, session.ErrNotSignedIn
	}
	if !e.Session.IsAuthenticated() {
		e.Session.Expire(ErrSessionExpired)
		return model.User{}, ErrSessionExpired
	}

	u, err := e.Client.Me(ctx)
	if err != nil {
		if errors.Is(err, api.ErrAuth) {
			e.Session.Expire(err)
			return model.User{}, ErrSessionExpired
		}
		cached, ok := e.Session.User()
		if !ok {
			return model.User{}, err
		}
		e.Logger.Warn("could not verify session, using stored user", "error", err)
		return cached, nil
	}

	if err := e.Session.SetUser(*u); err != nil {
		e.Logger.Warn("failed to store user profile", "error", err)
	}
	return *u, nil
}

// =============================================================================
// PERSONAS AND CONVERSATIONS
// =============================================================================

// RefreshCatalog replaces the built-in personas with the server's list when
// it answers in time. Failure keeps the current list.
func (e *Env) RefreshCatalog(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	if err := e.Catalog.Refresh(ctx, e.Client); err != nil {
		e.Logger.Debug("using local persona catalog", "error", err)
	}
}

// ResolvePersona looks up query, falling back to the configured default.
func (e *Env) ResolvePersona(query string) (model.Persona, error) {
	if query == "" {
		query = e.Config.DefaultPersona
	}
	return e.Catalog.MustLookup(query)
}

// NewController builds the conversation controller for (user, persona).
// A rejected token during any request ends the session.
func (e *Env) NewController(user model.User, persona model.Persona) (*controller.Controller, error) {
	ctrl, err := controller.New(controller.Config{
		Client:    e.Client,
		Bindings:  e.Bindings,
		UserID:    user.Key(),
		PersonaID: persona.ID,
		Logger:    e.Logger,
	})
	if err != nil {
		return nil, err
	}
	ctrl.OnAuthExpired(e.Session.Expire)
	return ctrl, nil
}

// Renderer builds the reply renderer from the UI settings.
func (e *Env) Renderer(width int) *render.Renderer {
	wrap := e.Config.UI.WordWrap
	if width > 0 && (wrap <= 0 || width < wrap) {
		wrap = width
	}
	return render.New(render.Options{
		Markdown: e.Config.UI.Markdown,
		Theme:    e.Config.UI.Theme,
		WordWrap: wrap,
	})
}
