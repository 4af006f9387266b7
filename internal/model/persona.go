// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Persona is a preset character backed by the conversational backend.
type Persona struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Domain      string   `json:"domain,omitempty" yaml:"domain,omitempty"`
	Personality string   `json:"personality,omitempty" yaml:"personality,omitempty"`
	Image       string   `json:"image,omitempty" yaml:"image,omitempty"`
	UseCases    []string `json:"use_cases,omitempty" yaml:"use_cases,omitempty"`
}

// DisplayName returns "Name, Title" or just the name.
func (p Persona) DisplayName() string {
	if p.Title == "" {
		return p.Name
	}
	return p.Name + ", " + p.Title
}

// User is the authenticated account.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Key returns the user id in the form used for binding keys.
func (u User) Key() string {
	return FormatServerID(u.ID)
}
