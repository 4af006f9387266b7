// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog holds the personas a user can chat with.
//
// The catalog starts from the built-in personas, is replaced by the
// backend's list when Refresh succeeds, and has a user overrides file
// layered on top of either.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/util"
)

//go:embed builtin.yaml
var builtinYAML []byte

// Origin says where the current persona list came from.
type Origin string

const (
	OriginBuiltin Origin = "builtin"
	OriginRemote  Origin = "remote"
)

var (
	// ErrUnknownPersona is returned by MustLookup for an unmatched query.
	ErrUnknownPersona = errors.New("unknown persona")

	// ErrEmptyCatalog is returned by Refresh when the backend lists nothing.
	ErrEmptyCatalog = errors.New("backend returned no personas")
)

// Source lists personas; *api.Client satisfies it.
type Source interface {
	Characters(ctx context.Context) ([]model.Persona, error)
}

type file struct {
	Personas []model.Persona `yaml:"personas"`
}

// Catalog is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	base      []model.Persona
	overrides []model.Persona
	merged    []model.Persona
	index     map[string]int
	origin    Origin
}

// New returns a catalog of the built-in personas.
func New() *Catalog {
	personas, err := parse(builtinYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in personas: %v", err))
	}
	c := &Catalog{origin: OriginBuiltin}
	c.base = personas
	c.rebuild()
	return c
}

// Builtin returns the personas shipped with the client.
func Builtin() []model.Persona {
	return New().All()
}

func parse(data []byte) ([]model.Persona, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	for i, p := range f.Personas {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("persona %d has no id", i)
		}
		if p.Name == "" {
			f.Personas[i].Name = p.ID
		}
	}
	return f.Personas, nil
}

// LoadOverrides reads a YAML file of personas that replace catalog
// entries with the same id or are appended after them. A missing file is
// not an error.
//
//	personas:
//	  - id: kai
//	    title: The Go Mentor
func (c *Catalog) LoadOverrides(path string) error {
	data, err := util.ReadFileIfExists(path)
	if err != nil {
		return fmt.Errorf("failed to read persona overrides: %w", err)
	}
	if data == nil {
		return nil
	}
	personas, err := parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse persona overrides %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides = personas
	c.rebuild()
	return nil
}

// Refresh replaces the base list with the backend's. On failure the
// current list is kept and the error returned.
func (c *Catalog) Refresh(ctx context.Context, src Source) error {
	personas, err := src.Characters(ctx)
	if err != nil {
		return err
	}
	if len(personas) == 0 {
		return ErrEmptyCatalog
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = personas
	c.origin = OriginRemote
	c.rebuild()
	return nil
}

// Origin reports whether the base list is built-in or from the backend.
func (c *Catalog) Origin() Origin {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.origin
}

// All returns the personas in display order.
func (c *Catalog) All() []model.Persona {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Persona, len(c.merged))
	copy(out, c.merged)
	return out
}

// Len returns the number of personas.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.merged)
}

// Lookup finds a persona by id or name, ignoring case.
func (c *Catalog) Lookup(query string) (model.Persona, bool) {
	key := fold(query)
	if key == "" {
		return model.Persona{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[key]
	if !ok {
		return model.Persona{}, false
	}
	return c.merged[i], true
}

// MustLookup is Lookup with an error naming the valid ids.
func (c *Catalog) MustLookup(query string) (model.Persona, error) {
	if p, ok := c.Lookup(query); ok {
		return p, nil
	}
	ids := make([]string, 0, c.Len())
	for _, p := range c.All() {
		ids = append(ids, p.ID)
	}
	return model.Persona{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownPersona, query, strings.Join(ids, ", "))
}

// rebuild merges base and overrides. Caller holds the write lock.
func (c *Catalog) rebuild() {
	merged := make([]model.Persona, 0, len(c.base)+len(c.overrides))
	pos := make(map[string]int, cap(merged))

	for _, p := range c.base {
		if _, dup := pos[p.ID]; dup {
			continue
		}
		pos[p.ID] = len(merged)
		merged = append(merged, p)
	}
	for _, o := range c.overrides {
		if i, ok := pos[o.ID]; ok {
			merged[i] = overlay(merged[i], o)
			continue
		}
		pos[o.ID] = len(merged)
		merged = append(merged, o)
	}

	index := make(map[string]int, len(merged)*2)
	for i, p := range merged {
		index[fold(p.ID)] = i
	}
	// Names never shadow ids.
	for i, p := range merged {
		k := fold(p.Name)
		if _, taken := index[k]; !taken && k != "" {
			index[k] = i
		}
	}

	c.merged = merged
	c.index = index
}

// overlay copies the non-empty fields of o over p.
func overlay(p, o model.Persona) model.Persona {
	if o.Name != "" && o.Name != o.ID {
		p.Name = o.Name
	}
	if o.Title != "" {
		p.Title = o.Title
	}
	if o.Description != "" {
		p.Description = o.Description
	}
	if o.Domain != "" {
		p.Domain = o.Domain
	}
	if o.Personality != "" {
		p.Personality = o.Personality
	}
	if o.Image != "" {
		p.Image = o.Image
	}
	if len(o.UseCases) > 0 {
		p.UseCases = append([]string(nil), o.UseCases...)
	}
	return p
}

// fold returns the case-folded key. A Caser is stateful, so one is made
// per call.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
