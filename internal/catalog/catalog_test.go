// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/confidant/internal/model"
)

type fakeSource struct {
	personas []model.Persona
	err      error
}

func (f fakeSource) Characters(context.Context) ([]model.Persona, error) {
	return f.personas, f.err
}

func TestNew_Builtin(t *testing.T) {
	c := New()

	ids := make([]string, 0)
	for _, p := range c.All() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"mira", "ethan", "kai", "ivy", "marcus"}, ids)
	assert.Equal(t, OriginBuiltin, c.Origin())

	kai, ok := c.Lookup("kai")
	require.True(t, ok)
	assert.Equal(t, "The Tech Wizard", kai.Title)
	assert.Len(t, kai.UseCases, 5)
	assert.Contains(t, kai.Description, "cool coder friend")
}

func TestLookup_CaseInsensitive(t *testing.T) {
	c := New()

	for _, q := range []string{"MIRA", "Mira", " mira ", "mIrA"} {
		p, ok := c.Lookup(q)
		require.True(t, ok, q)
		assert.Equal(t, "mira", p.ID)
	}

	_, ok := c.Lookup("")
	assert.False(t, ok)
	_, ok = c.Lookup("nobody")
	assert.False(t, ok)
}

func TestMustLookup_ListsIDs(t *testing.T) {
	_, err := New().MustLookup("zed")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownPersona)
	assert.Contains(t, err.Error(), "mira, ethan, kai, ivy, marcus")
}

func TestRefresh(t *testing.T) {
	c := New()
	remote := []model.Persona{
		{ID: "mira", Name: "Mira", Title: "Companion"},
		{ID: "nova", Name: "Nova", Title: "Stargazer"},
	}

	require.NoError(t, c.Refresh(context.Background(), fakeSource{personas: remote}))
	assert.Equal(t, OriginRemote, c.Origin())
	assert.Equal(t, 2, c.Len())

	_, ok := c.Lookup("kai")
	assert.False(t, ok)
	p, ok := c.Lookup("nova")
	require.True(t, ok)
	assert.Equal(t, "Stargazer", p.Title)
}

func TestRefresh_FailureKeepsList(t *testing.T) {
	c := New()
	boom := errors.New("connection refused")

	err := c.Refresh(context.Background(), fakeSource{err: boom})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, c.Len())
	assert.Equal(t, OriginBuiltin, c.Origin())

	err = c.Refresh(context.Background(), fakeSource{})
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	assert.Equal(t, 5, c.Len())
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
personas:
  - id: kai
    title: The Go Mentor
  - id: sage
    name: Sage
    title: The Philosopher
    use_cases:
      - Big questions
`), 0600))

	c := New()
	require.NoError(t, c.LoadOverrides(path))
	assert.Equal(t, 6, c.Len())

	kai, ok := c.Lookup("Kai")
	require.True(t, ok)
	assert.Equal(t, "Kai", kai.Name)
	assert.Equal(t, "The Go Mentor", kai.Title)
	assert.Equal(t, "Programming, tech support, coding education", kai.Domain)

	sage, ok := c.Lookup("sage")
	require.True(t, ok)
	assert.Equal(t, []string{"Big questions"}, sage.UseCases)

	all := c.All()
	assert.Equal(t, "sage", all[len(all)-1].ID)

	// Overrides survive a refresh.
	require.NoError(t, c.Refresh(context.Background(), fakeSource{personas: []model.Persona{{ID: "kai", Name: "Kai"}}}))
	kai, _ = c.Lookup("kai")
	assert.Equal(t, "The Go Mentor", kai.Title)
	assert.Equal(t, 2, c.Len())
}

func TestLoadOverrides_Errors(t *testing.T) {
	dir := t.TempDir()
	c := New()

	assert.NoError(t, c.LoadOverrides(filepath.Join(dir, "missing.yaml")))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("personas: [{name: NoID}]"), 0600))
	assert.Error(t, c.LoadOverrides(bad))

	garbled := filepath.Join(dir, "garbled.yaml")
	require.NoError(t, os.WriteFile(garbled, []byte("personas: {{{"), 0600))
	assert.Error(t, c.LoadOverrides(garbled))

	assert.Equal(t, 5, c.Len())
}

func TestAll_ReturnsCopy(t *testing.T) {
	c := New()
	all := c.All()
	all[0].Name = "changed"

	p, _ := c.Lookup("mira")
	assert.Equal(t, "Mira", p.Name)
}

func TestBuiltin(t *testing.T) {
	assert.Len(t, Builtin(), 5)
}
