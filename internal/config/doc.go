// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for confidant.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Backend URL, timeouts and client-side throttling
//   - StorageConfig: Where conversation bindings are persisted
//   - LogConfig: Log level and log file
//   - UIConfig: Theme and rendering preferences
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CONFIDANT_*)
//   - ~/.confidant/config.toml
//   - ~/.confidant/config.json
//   - Built-in defaults
//
// CONFIDANT_HOME replaces ~/.confidant as the configuration directory.
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//
// Access settings:
//
//	client := api.NewClient(cfg.Server.URL).WithTimeout(cfg.Server.Timeout())
package config
