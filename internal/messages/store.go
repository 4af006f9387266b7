// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package messages

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jeranaias/confidant/internal/model"
)

// ErrDuplicateID is returned by Append when a message with the same id is
// already present.
var ErrDuplicateID = errors.New("duplicate message id")

// Patch carries optional fields applied alongside a status transition.
// Empty fields are left unchanged.
type Patch struct {
	ServerID string
	Failure  string
}

// Store is an ordered message log. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	msgs     []model.Message
	index    map[string]int
	onChange []func()
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Append inserts msg at the end of the log.
func (s *Store) Append(msg model.Message) error {
	s.mu.Lock()
	if _, exists := s.index[msg.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}
	s.index[msg.ID] = len(s.msgs)
	s.msgs = append(s.msgs, msg.Clone())
	s.mu.Unlock()

	s.notify()
	return nil
}

// UpdateStatus transitions the message with the given id and applies patch.
// It returns false without changing anything when the id is absent or when
// the message already has a terminal status.
func (s *Store) UpdateStatus(id string, status model.Status, patch Patch) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok || s.msgs[i].Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}

	m := &s.msgs[i]
	m.Status = status
	if patch.ServerID != "" {
		m.ServerID = patch.ServerID
	}
	if patch.Failure != "" {
		m.Failure = patch.Failure
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// Remove drops the message with the given id. It is a no-op if absent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.msgs = append(s.msgs[:i], s.msgs[i+1:]...)
	s.reindexLocked()
	s.mu.Unlock()

	s.notify()
	return true
}

// Clear drops all messages.
func (s *Store) Clear() {
	s.mu.Lock()
	s.msgs = nil
	s.index = make(map[string]int)
	s.mu.Unlock()

	s.notify()
}

// Replace swaps the whole log for msgs, keeping their order. Later entries
// with an id already seen are dropped.
func (s *Store) Replace(msgs []model.Message) {
	s.mu.Lock()
	s.msgs = make([]model.Message, 0, len(msgs))
	s.index = make(map[string]int, len(msgs))
	for _, m := range msgs {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		s.index[m.ID] = len(s.msgs)
		s.msgs = append(s.msgs, m.Clone())
	}
	s.mu.Unlock()

	s.notify()
}

// Rebase swaps the confirmed part of the log for history and keeps every
// message that is not confirmed yet (pending or failed) after it, in its
// current order. Local work survives a history reload this way.
func (s *Store) Rebase(history []model.Message) {
	s.mu.Lock()
	var unsent []model.Message
	for _, m := range s.msgs {
		if m.Status != model.StatusConfirmed {
			unsent = append(unsent, m)
		}
	}

	s.msgs = make([]model.Message, 0, len(history)+len(unsent))
	s.index = make(map[string]int, len(history)+len(unsent))
	for _, m := range history {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		s.index[m.ID] = len(s.msgs)
		s.msgs = append(s.msgs, m.Clone())
	}
	for _, m := range unsent {
		if _, dup := s.index[m.ID]; dup {
			continue
		}
		s.index[m.ID] = len(s.msgs)
		s.msgs = append(s.msgs, m)
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) reindexLocked() {
	s.index = make(map[string]int, len(s.msgs))
	for i, m := range s.msgs {
		s.index[m.ID] = i
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (model.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return model.Message{}, false
	}
	return s.msgs[i].Clone(), true
}

// Messages returns a snapshot of the log in order.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Pending returns the number of messages still awaiting a response.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, m := range s.msgs {
		if m.Status == model.StatusPending {
			n++
		}
	}
	return n
}

// =============================================================================
// LISTENERS
// =============================================================================

// OnChange registers fn to be called after every mutation. Listeners run on
// the mutating goroutine with no lock held.
func (s *Store) OnChange(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	listeners := make([]func(), len(s.onChange))
	copy(listeners, s.onChange)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}
