// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package messages

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/confidant/internal/model"
)

func pending(id, text string) model.Message {
	return model.Message{ID: id, Sender: model.SenderUser, Text: text, Status: model.StatusPending}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

// =============================================================================
// APPEND TESTS
// =============================================================================

func TestStore_AppendOrder(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(pending("a", "one")))
	require.NoError(t, s.Append(pending("b", "two")))
	require.NoError(t, s.Append(pending("c", "three")))

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Messages()))
	assert.Equal(t, 3, s.Len())
}

func TestStore_AppendDuplicate(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(pending("a", "one")))

	err := s.Append(pending("a", "again"))
	assert.True(t, errors.Is(err, ErrDuplicateID))
	assert.Equal(t, 1, s.Len())
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestStore_UpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		start      model.Status
		target     model.Status
		wantApply  bool
		wantStatus model.Status
	}{
		{"pending to confirmed", model.StatusPending, model.StatusConfirmed, true, model.StatusConfirmed},
		{"pending to failed", model.StatusPending, model.StatusFailed, true, model.StatusFailed},
		{"confirmed is terminal", model.StatusConfirmed, model.StatusFailed, false, model.StatusConfirmed},
		{"failed is terminal", model.StatusFailed, model.StatusConfirmed, false, model.StatusFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewStore()
			msg := pending("x", "hi")
			msg.Status = tc.start
			require.NoError(t, s.Append(msg))

			got := s.UpdateStatus("x", tc.target, Patch{})
			assert.Equal(t, tc.wantApply, got)

			m, ok := s.Get("x")
			require.True(t, ok)
			assert.Equal(t, tc.wantStatus, m.Status)
		})
	}
}

func TestStore_UpdateStatusPatch(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(pending("x", "hi")))

	s.UpdateStatus("x", model.StatusFailed, Patch{Failure: "server down"})
	m, _ := s.Get("x")
	assert.Equal(t, "server down", m.Failure)
	assert.Empty(t, m.ServerID)

	require.NoError(t, s.Append(pending("y", "hi")))
	s.UpdateStatus("y", model.StatusConfirmed, Patch{ServerID: "12"})
	m, _ = s.Get("y")
	assert.Equal(t, "12", m.ServerID)
}

func TestStore_UpdateStatusMissing(t *testing.T) {
	s := NewStore()
	assert.False(t, s.UpdateStatus("ghost", model.StatusConfirmed, Patch{}))
	assert.Equal(t, 0, s.Len())
}

// =============================================================================
// REMOVE / CLEAR / REPLACE TESTS
// =============================================================================

func TestStore_Remove(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Append(pending(id, id)))
	}

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids(s.Messages()))

	// Index stays consistent after removal
	assert.True(t, s.UpdateStatus("c", model.StatusConfirmed, Patch{}))
	m, _ := s.Get("c")
	assert.Equal(t, model.StatusConfirmed, m.Status)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(pending("a", "a")))
	s.Clear()
	assert.Equal(t, 0, s.Len())

	// Ids are reusable after a reset
	assert.NoError(t, s.Append(pending("a", "a")))
}

func TestStore_ReplaceDropsDuplicates(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(pending("old", "old")))

	s.Replace([]model.Message{pending("a", "1"), pending("b", "2"), pending("a", "3")})
	assert.Equal(t, []string{"a", "b"}, ids(s.Messages()))
}

func TestStore_RebaseKeepsUnsent(t *testing.T) {
	s := NewStore()
	confirmed := pending("old", "old")
	confirmed.Status = model.StatusConfirmed
	require.NoError(t, s.Append(confirmed))
	require.NoError(t, s.Append(pending("p", "in flight")))
	require.NoError(t, s.Append(pending("f", "lost")))
	require.True(t, s.UpdateStatus("f", model.StatusFailed, Patch{Failure: "offline"}))

	h1 := pending("h1", "from server")
	h1.Status = model.StatusConfirmed
	h2 := pending("h2", "reply")
	h2.Status = model.StatusConfirmed
	s.Rebase([]model.Message{h1, h2})

	assert.Equal(t, []string{"h1", "h2", "p", "f"}, ids(s.Messages()))
	f, ok := s.Get("f")
	require.True(t, ok)
	assert.Equal(t, "offline", f.Failure)

	// The pending entry can still settle.
	assert.True(t, s.UpdateStatus("p", model.StatusConfirmed, Patch{}))

	s.Rebase(nil)
	assert.Equal(t, []string{"f"}, ids(s.Messages()))
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(pending("a", "hi")))

	snap := s.Messages()
	snap[0].Text = "mutated"

	m, _ := s.Get("a")
	assert.Equal(t, "hi", m.Text)
}

// =============================================================================
// LISTENER / CONCURRENCY TESTS
// =============================================================================

func TestStore_OnChange(t *testing.T) {
	s := NewStore()
	var calls atomic.Int32
	s.OnChange(func() { calls.Add(1) })

	_ = s.Append(pending("a", "a"))
	s.UpdateStatus("a", model.StatusConfirmed, Patch{})
	s.UpdateStatus("a", model.StatusFailed, Patch{}) // ignored, no notification
	s.Remove("a")
	s.Clear()

	assert.Equal(t, int32(4), calls.Load())
}

func TestStore_ListenerMayReadStore(t *testing.T) {
	s := NewStore()
	var seen int
	s.OnChange(func() { seen = s.Len() })

	_ = s.Append(pending("a", "a"))
	assert.Equal(t, 1, seen)
}

func TestStore_ConcurrentTerminalTransition(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(pending("x", "race")))

	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := model.StatusConfirmed
			if i%2 == 0 {
				status = model.StatusFailed
			}
			if s.UpdateStatus("x", status, Patch{}) {
				applied.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	assert.Equal(t, 0, s.Pending())
}
