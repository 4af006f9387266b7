// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/confidant/internal/api"
	"github.com/jeranaias/confidant/internal/binding"
	"github.com/jeranaias/confidant/internal/messages"
	"github.com/jeranaias/confidant/internal/model"
	"github.com/jeranaias/confidant/internal/storage"
)

const (
	testUser    = "7"
	testPersona = "mira"
)

// =============================================================================
// FAKES
// =============================================================================

type sendCall struct {
	text           string
	conversationID *string
}

type fakeClient struct {
	mu        sync.Mutex
	sends     []sendCall
	fetches   []string
	clears    int
	sendFn    func(text string, conversationID *string) (*api.SendResult, error)
	historyFn func(id string) ([]model.HistoryRecord, error)
	clearFn   func() (*api.Ack, error)
}

func (f *fakeClient) Send(_ context.Context, _ string, text string, conversationID *string) (*api.SendResult, error) {
	f.mu.Lock()
	var cp *string
	if conversationID != nil {
		v := *conversationID
		cp = &v
	}
	f.sends = append(f.sends, sendCall{text: text, conversationID: cp})
	fn := f.sendFn
	f.mu.Unlock()

	if fn == nil {
		return &api.SendResult{ConversationID: "1", Reply: "ok"}, nil
	}
	return fn(text, conversationID)
}

func (f *fakeClient) FetchHistory(_ context.Context, id string) ([]model.HistoryRecord, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, id)
	fn := f.historyFn
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(id)
}

func (f *fakeClient) ClearMemory(context.Context, string) (*api.Ack, error) {
	f.mu.Lock()
	f.clears++
	fn := f.clearFn
	f.mu.Unlock()

	if fn == nil {
		return &api.Ack{Status: "success", Message: "Memory cleared"}, nil
	}
	return fn()
}

func (f *fakeClient) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func (f *fakeClient) lastSend() sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends[len(f.sends)-1]
}

var errNetwork = &api.NetworkError{Op: "send", Err: errors.New("connection refused")}

func reply(id, text string) func(string, *string) (*api.SendResult, error) {
	return func(string, *string) (*api.SendResult, error) {
		return &api.SendResult{ConversationID: id, Reply: text, Timestamp: time.Now()}, nil
	}
}

func failWith(err error) func(string, *string) (*api.SendResult, error) {
	return func(string, *string) (*api.SendResult, error) { return nil, err }
}

type harness struct {
	ctl      *Controller
	client   *fakeClient
	bindings *binding.Binding
	store    *messages.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		client:   &fakeClient{},
		bindings: binding.New(storage.NewMemoryKV()),
		store:    messages.NewStore(),
	}
	ctl, err := New(Config{
		Client:    h.client,
		Bindings:  h.bindings,
		Store:     h.store,
		UserID:    testUser,
		PersonaID: testPersona,
	})
	require.NoError(t, err)
	h.ctl = ctl
	return h
}

func (h *harness) bind(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, h.bindings.Set(context.Background(), testUser, testPersona, id))
}

func (h *harness) bound(t *testing.T) (string, bool) {
	t.Helper()
	id, ok, err := h.bindings.Get(context.Background(), testUser, testPersona)
	require.NoError(t, err)
	return id, ok
}

type shape struct {
	Sender model.Sender
	Text   string
	Status model.Status
}

func shapes(msgs []model.Message) []shape {
	out := make([]shape, len(msgs))
	for i, m := range msgs {
		out[i] = shape{m.Sender, m.Text, m.Status}
	}
	return out
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarioA_FirstMessage(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = reply("42", "hello")

	ex, err := h.ctl.Submit(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, []shape{
		{model.SenderUser, "hi", model.StatusConfirmed},
		{model.SenderPersona, "hello", model.StatusConfirmed},
	}, shapes(h.store.Messages()))

	id, ok := h.bound(t)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
	assert.True(t, ex.NewConversation)
	assert.Nil(t, h.client.lastSend().conversationID, "first send carries no conversation id")
}

func TestScenarioB_NetworkFailure(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = failWith(errNetwork)

	_, err := h.ctl.Submit(context.Background(), "test")
	require.Error(t, err)

	var ne *api.NetworkError
	assert.True(t, errors.As(err, &ne))

	msgs := h.store.Messages()
	assert.Equal(t, []shape{{model.SenderUser, "test", model.StatusFailed}}, shapes(msgs))
	assert.NotEmpty(t, msgs[0].Failure)

	_, ok := h.bound(t)
	assert.False(t, ok)
}

func TestScenarioC_RetryAfterFailure(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = failWith(errNetwork)
	_, err := h.ctl.Submit(context.Background(), "test")
	require.Error(t, err)

	failedID := h.store.Messages()[0].ID

	h.client.sendFn = reply("42", "got it")
	_, err = h.ctl.Retry(context.Background(), failedID)
	require.NoError(t, err)

	msgs := h.store.Messages()
	assert.Equal(t, []shape{
		{model.SenderUser, "test", model.StatusConfirmed},
		{model.SenderPersona, "got it", model.StatusConfirmed},
	}, shapes(msgs))
	assert.NotEqual(t, failedID, msgs[0].ID)

	_, stillThere := h.store.Get(failedID)
	assert.False(t, stillThere)
}

func TestScenarioD_LoadExisting(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	h.client.historyFn = func(id string) ([]model.HistoryRecord, error) {
		return []model.HistoryRecord{
			{ServerID: "1", Role: "user", Text: "hi"},
			{ServerID: "2", Role: "assistant", Text: "hello"},
		}, nil
	}

	require.NoError(t, h.ctl.LoadExisting(context.Background()))

	msgs := h.store.Messages()
	assert.Equal(t, []shape{
		{model.SenderUser, "hi", model.StatusConfirmed},
		{model.SenderPersona, "hello", model.StatusConfirmed},
	}, shapes(msgs))
	assert.Equal(t, "2", msgs[1].ServerID)
	assert.Equal(t, []string{"42"}, h.client.fetches)
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmit_RejectsEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		h := newHarness(t)
		_, err := h.ctl.Submit(context.Background(), text)
		assert.True(t, errors.Is(err, ErrValidation), "text %q", text)
		assert.Equal(t, 0, h.store.Len())
		assert.Equal(t, 0, h.client.sendCount())
	}
}

func TestSubmit_TrimsText(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctl.Submit(context.Background(), "  hi  ")
	require.NoError(t, err)
	assert.Equal(t, "hi", h.client.lastSend().text)
	assert.Equal(t, "hi", h.store.Messages()[0].Text)
}

func TestSubmit_OptimisticBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.client.sendFn = func(string, *string) (*api.SendResult, error) {
		<-release
		return &api.SendResult{ConversationID: "5", Reply: "late"}, nil
	}

	p, err := h.ctl.Begin("hello")
	require.NoError(t, err)

	// Visible before the request even starts
	assert.Equal(t, []shape{{model.SenderUser, "hello", model.StatusPending}}, shapes(h.store.Messages()))
	assert.Equal(t, 0, h.client.sendCount())
	assert.Equal(t, 1, h.ctl.InFlight(), "counted from Begin")

	done := make(chan error, 1)
	go func() {
		_, err := p.Resolve(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return h.client.sendCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.ctl.InFlight())
	m, _ := h.store.Get(p.MessageID())
	assert.Equal(t, model.StatusPending, m.Status)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 0, h.ctl.InFlight())
	assert.Equal(t, 2, h.store.Len())
}

func TestSubmit_UsesAndOverwritesBinding(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	h.client.sendFn = reply("43", "moved")

	ex, err := h.ctl.Submit(context.Background(), "hi")
	require.NoError(t, err)

	sent := h.client.lastSend().conversationID
	require.NotNil(t, sent)
	assert.Equal(t, "42", *sent)

	id, _ := h.bound(t)
	assert.Equal(t, "43", id, "server id is authoritative")
	assert.False(t, ex.NewConversation)
}

func TestSubmit_RemoteErrorDetail(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = failWith(&api.RemoteError{Op: "send", Status: http.StatusInternalServerError, Detail: "Model overloaded"})

	_, err := h.ctl.Submit(context.Background(), "hi")
	require.Error(t, err)

	m := h.store.Messages()[0]
	assert.Equal(t, model.StatusFailed, m.Status)
	assert.Equal(t, "Model overloaded", m.Failure)
}

func TestSubmit_StaleConversationEvicted(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	h.client.sendFn = failWith(fmt.Errorf("send: %w", api.ErrConversationNotFound))

	_, err := h.ctl.Submit(context.Background(), "hi")
	require.Error(t, err)

	_, ok := h.bound(t)
	assert.False(t, ok, "stale binding must be evicted")

	// The retry starts a fresh conversation
	h.client.sendFn = reply("99", "fresh start")
	failedID, found := h.ctl.LastFailed()
	require.True(t, found)
	_, err = h.ctl.Retry(context.Background(), failedID)
	require.NoError(t, err)

	assert.Nil(t, h.client.lastSend().conversationID)
	id, _ := h.bound(t)
	assert.Equal(t, "99", id)
}

func TestSubmit_UnknownPersonaKeepsBinding(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	h.client.sendFn = failWith(&api.RemoteError{Op: "send", Status: http.StatusNotFound, Detail: "Character not found"})

	_, err := h.ctl.Submit(context.Background(), "hi")
	require.Error(t, err)

	id, ok := h.bound(t)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestSubmit_AuthExpired(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = failWith(&api.RemoteError{Op: "send", Status: http.StatusUnauthorized, Detail: "Invalid token"})

	var hookErr error
	h.ctl.OnAuthExpired(func(err error) { hookErr = err })

	_, err := h.ctl.Submit(context.Background(), "hi")
	assert.True(t, errors.Is(err, api.ErrAuth))
	assert.True(t, errors.Is(hookErr, api.ErrAuth))
	assert.Equal(t, model.StatusFailed, h.store.Messages()[0].Status)
}

func TestResolve_Twice(t *testing.T) {
	h := newHarness(t)
	p, err := h.ctl.Begin("hi")
	require.NoError(t, err)

	_, err = p.Resolve(context.Background())
	require.NoError(t, err)
	_, err = p.Resolve(context.Background())
	assert.True(t, errors.Is(err, ErrAlreadyResolved))
	assert.Equal(t, 1, h.client.sendCount())
}

func TestResolve_AfterViewReset(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = reply("42", "too late")

	p, err := h.ctl.Begin("hi")
	require.NoError(t, err)
	h.store.Clear()

	_, err = p.Resolve(context.Background())
	assert.True(t, errors.Is(err, ErrUnknownMessage))
	assert.Equal(t, 0, h.store.Len(), "no orphan reply is appended")
	assert.Equal(t, 0, h.ctl.InFlight())

	// The server created the conversation, so it stays reachable.
	id, ok := h.bound(t)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestResolve_AfterClearMemoryStaysUnbound(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = reply("42", "too late")

	p, err := h.ctl.Begin("hi")
	require.NoError(t, err)
	_, err = h.ctl.ClearMemory(context.Background())
	require.NoError(t, err)

	_, err = p.Resolve(context.Background())
	assert.True(t, errors.Is(err, ErrUnknownMessage))
	_, ok := h.bound(t)
	assert.False(t, ok, "a cleared conversation is not re-bound by a late reply")
	assert.Equal(t, "", h.ctl.Shown())
}

// =============================================================================
// RETRY TESTS
// =============================================================================

func TestRetry_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctl.Retry(context.Background(), "msg_missing")
	assert.True(t, errors.Is(err, ErrUnknownMessage))

	_, err = h.ctl.Submit(context.Background(), "fine")
	require.NoError(t, err)
	confirmed := h.store.Messages()[0].ID

	_, err = h.ctl.Retry(context.Background(), confirmed)
	assert.True(t, errors.Is(err, ErrNotFailed))
	assert.Equal(t, 2, h.store.Len())
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoadExisting_NoBinding(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctl.LoadExisting(context.Background()))
	assert.Empty(t, h.client.fetches)
	assert.Equal(t, 0, h.store.Len())
}

func TestLoadExisting_StaleSelfHeals(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	h.client.historyFn = func(string) ([]model.HistoryRecord, error) {
		return nil, fmt.Errorf("fetch history: %w", api.ErrConversationNotFound)
	}

	require.NoError(t, h.ctl.LoadExisting(context.Background()))
	assert.Equal(t, 0, h.store.Len())
	_, ok := h.bound(t)
	assert.False(t, ok)
}

func TestLoadExisting_KeepsUnsentMessages(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	h.client.sendFn = failWith(errNetwork)
	_, err := h.ctl.Submit(context.Background(), "lost")
	require.Error(t, err)

	h.client.historyFn = func(string) ([]model.HistoryRecord, error) {
		return []model.HistoryRecord{{ServerID: "1", Role: "user", Text: "hi"}}, nil
	}
	require.NoError(t, h.ctl.LoadExisting(context.Background()))

	assert.Equal(t, []shape{
		{model.SenderUser, "hi", model.StatusConfirmed},
		{model.SenderUser, "lost", model.StatusFailed},
	}, shapes(h.store.Messages()))
	_, ok := h.ctl.LastFailed()
	assert.True(t, ok, "retry survives a reload")
	assert.Equal(t, "42", h.ctl.Shown())
}

func TestLoadExisting_TransportErrorKeepsState(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	h.client.historyFn = func(string) ([]model.HistoryRecord, error) {
		return nil, &api.NetworkError{Op: "fetch history", Err: errors.New("timeout")}
	}

	err := h.ctl.LoadExisting(context.Background())
	require.Error(t, err)
	id, ok := h.bound(t)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

// =============================================================================
// REFRESH TESTS
// =============================================================================

func TestRefresh_IgnoresOwnAndUnrelatedWrites(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = reply("42", "hello")
	_, err := h.ctl.Submit(context.Background(), "hi")
	require.NoError(t, err)

	// Another persona and another user write to the same store.
	ctx := context.Background()
	require.NoError(t, h.bindings.Set(ctx, testUser, "kai", "77"))
	require.NoError(t, h.bindings.Set(ctx, "8", testPersona, "99"))

	changed, err := h.ctl.Refresh(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, h.client.fetches)
	assert.Equal(t, 2, h.store.Len())
}

func TestRefresh_ReloadsKeepingUnsent(t *testing.T) {
	h := newHarness(t)
	h.bind(t, "42")
	require.NoError(t, h.ctl.LoadExisting(context.Background()))

	h.client.sendFn = failWith(errNetwork)
	_, err := h.ctl.Submit(context.Background(), "lost")
	require.Error(t, err)
	p, err := h.ctl.Begin("still going")
	require.NoError(t, err)

	// Another process moved this persona to conversation 43.
	h.bind(t, "43")
	h.client.historyFn = func(string) ([]model.HistoryRecord, error) {
		return []model.HistoryRecord{{ServerID: "9", Role: "assistant", Text: "welcome back"}}, nil
	}
	changed, err := h.ctl.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "43", h.ctl.Shown())
	assert.Equal(t, []shape{
		{model.SenderPersona, "welcome back", model.StatusConfirmed},
		{model.SenderUser, "lost", model.StatusFailed},
		{model.SenderUser, "still going", model.StatusPending},
	}, shapes(h.store.Messages()))

	// The pending send still settles normally.
	h.client.sendFn = reply("43", "got it")
	_, err = p.Resolve(context.Background())
	require.NoError(t, err)
	_, ok := h.ctl.LastFailed()
	assert.True(t, ok)
}

func TestRefresh_ClearedElsewhere(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = reply("42", "hello")
	_, err := h.ctl.Submit(context.Background(), "hi")
	require.NoError(t, err)

	require.NoError(t, h.bindings.Clear(context.Background(), testUser, testPersona))
	changed, err := h.ctl.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, "", h.ctl.Shown())
}

// =============================================================================
// CLEAR TESTS
// =============================================================================

func TestClearMemory_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = reply("42", "hello")
	_, err := h.ctl.Submit(context.Background(), "hi")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := h.ctl.ClearMemory(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, h.store.Len())
		_, ok := h.bound(t)
		assert.False(t, ok)
	}

	// A failing third call leaves the empty state as it was
	h.client.clearFn = func() (*api.Ack, error) { return nil, errNetwork }
	_, err = h.ctl.ClearMemory(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, h.store.Len())
	_, ok := h.bound(t)
	assert.False(t, ok)
}

func TestClearMemory_FailureChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.client.sendFn = reply("42", "hello")
	_, err := h.ctl.Submit(context.Background(), "hi")
	require.NoError(t, err)

	h.client.clearFn = func() (*api.Ack, error) {
		return nil, &api.RemoteError{Op: "clear memory", Status: 500, Detail: "db locked"}
	}
	_, err = h.ctl.ClearMemory(context.Background())
	require.Error(t, err)

	assert.Equal(t, 2, h.store.Len())
	id, _ := h.bound(t)
	assert.Equal(t, "42", id)
}

// =============================================================================
// PROPERTY TESTS
// =============================================================================

func TestProperty_FailedSendsNeverTouchBinding(t *testing.T) {
	failures := []error{
		errNetwork,
		&api.RemoteError{Op: "send", Status: 500, Detail: "boom"},
		&api.RemoteError{Op: "send", Status: 422, Detail: "field required"},
		&api.RemoteError{Op: "send", Status: 401, Detail: "Invalid token"},
		&api.RemoteError{Op: "send", Status: 404, Detail: "Character not found"},
		context.DeadlineExceeded,
	}

	for _, start := range []string{"", "42"} {
		h := newHarness(t)
		if start != "" {
			h.bind(t, start)
		}

		for i := 0; i < 20; i++ {
			h.client.sendFn = failWith(failures[i%len(failures)])
			_, err := h.ctl.Submit(context.Background(), fmt.Sprintf("attempt %d", i))
			require.Error(t, err)
		}

		id, ok := h.bound(t)
		assert.Equal(t, start != "", ok)
		assert.Equal(t, start, id)
	}
}

func TestProperty_ConcurrentSendsSettleIndependently(t *testing.T) {
	h := newHarness(t)

	const n = 20
	gates := make([]chan struct{}, n)
	for i := range gates {
		gates[i] = make(chan struct{})
	}
	h.client.sendFn = func(text string, _ *string) (*api.SendResult, error) {
		var i int
		fmt.Sscanf(text, "m%d", &i)
		<-gates[i]
		if i%3 == 0 {
			return nil, errNetwork
		}
		return &api.SendResult{ConversationID: "42", Reply: "re " + text}, nil
	}

	pendings := make([]*Pending, n)
	for i := 0; i < n; i++ {
		p, err := h.ctl.Begin(fmt.Sprintf("m%d", i))
		require.NoError(t, err)
		pendings[i] = p
	}
	assert.Equal(t, n, h.store.Pending())

	var wg sync.WaitGroup
	for _, p := range pendings {
		wg.Add(1)
		go func(p *Pending) {
			defer wg.Done()
			p.Resolve(context.Background())
		}(p)
	}

	// Release in reverse order so completions interleave with submissions
	for i := n - 1; i >= 0; i-- {
		close(gates[i])
	}
	wg.Wait()

	assert.Equal(t, 0, h.store.Pending())
	for i, p := range pendings {
		m, ok := h.store.Get(p.MessageID())
		require.True(t, ok)
		want := model.StatusConfirmed
		if i%3 == 0 {
			want = model.StatusFailed
		}
		assert.Equal(t, want, m.Status, "message m%d", i)
	}

	var replies atomic.Int32
	for _, m := range h.store.Messages() {
		if m.Sender == model.SenderPersona {
			replies.Add(1)
		}
	}
	assert.Equal(t, int32(n-(n+2)/3), replies.Load())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Client: &fakeClient{}, Bindings: binding.New(storage.NewMemoryKV()), UserID: "1"})
	assert.Error(t, err)

	ctl, err := New(Config{Client: &fakeClient{}, Bindings: binding.New(storage.NewMemoryKV()), UserID: "1", PersonaID: "kai"})
	require.NoError(t, err)
	assert.NotNil(t, ctl.Store())
}
