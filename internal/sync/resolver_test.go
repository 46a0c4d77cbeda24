package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenantsync/internal/api"
	"tenantsync/internal/chat"
	"tenantsync/internal/config"
	"tenantsync/internal/notify"
)

func newResolverEngine(b api.Backend) *Engine {
	return NewEngine(b, nil, nil, notify.NewBus(), config.SyncConfig{})
}

func TestOpenChatSelectsMostRecentExistingMatch(t *testing.T) {
	e := newResolverEngine(&fakeBackend{})
	e.loaded = true
	e.chats = []chat.Chat{
		{ID: 10, PropertyID: 5, UnitID: 9},
		{ID: 12, PropertyID: 5, UnitID: 9},
		{ID: 11, PropertyID: 5, UnitID: 4},
	}

	res, err := e.OpenChat(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 12, res.ChatID)
	assert.False(t, res.Created)
	assert.EqualValues(t, 12, e.Selected())
}

func TestOpenChatGreetingDependsOnHistory(t *testing.T) {
	e := newResolverEngine(&fakeBackend{})
	e.loaded = true
	e.chats = []chat.Chat{
		{ID: 10, PropertyID: 5, UnitID: 9},
		{ID: 20, PropertyID: 6, UnitID: 2, Messages: []chat.Message{
			{ID: "msg-1", Sender: chat.SenderTenant, Text: "hi", CreatedAt: time.Now()},
		}},
	}

	res, err := e.OpenChat(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, greetingFirstContact, res.Greeting)
	assert.Equal(t, greetingFirstContact, e.Draft())

	res, err = e.OpenChat(context.Background(), 6, 2)
	require.NoError(t, err)
	assert.Equal(t, greetingFollowUp, res.Greeting)
}

func TestOpenChatPropertyOnlyMatchesAnyUnit(t *testing.T) {
	e := newResolverEngine(&fakeBackend{})
	e.loaded = true
	e.chats = []chat.Chat{{ID: 7, PropertyID: 5, UnitID: 3}}

	res, err := e.OpenChat(context.Background(), 5, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, res.ChatID)
}

func TestOpenChatCreatesInquiryExactlyOnce(t *testing.T) {
	m := new(MockBackend)
	m.On("StartInquiry", mock.Anything, int64(5), int64(9), initialInquiryText).
		Return(api.RawInquiry{ID: 99, PropertyID: 5, UnitID: 9, Status: "active"}, false, nil).
		Once()

	e := newResolverEngine(m)
	e.loaded = true

	res, err := e.OpenChat(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 99, res.ChatID)
	assert.True(t, res.Created)
	assert.EqualValues(t, 99, e.Selected())

	// Re-triggers with the same key are no-ops; the mock's Once would fail
	// if creation ran again.
	for i := 0; i < 3; i++ {
		res, err = e.OpenChat(context.Background(), 5, 9)
		require.NoError(t, err)
		assert.EqualValues(t, 99, res.ChatID)
	}

	m.AssertExpectations(t)
}

func TestOpenChatDeferredUntilFirstLoad(t *testing.T) {
	m := new(MockBackend)
	m.On("TenantInquiries", mock.Anything).Return([]api.RawInquiry{}, nil)
	m.On("StartInquiry", mock.Anything, int64(5), int64(9), initialInquiryText).
		Return(api.RawInquiry{ID: 99, PropertyID: 5, UnitID: 9, Status: "active"}, false, nil).
		Once()

	e := newResolverEngine(m)

	res, err := e.OpenChat(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.True(t, res.Deferred)
	assert.Zero(t, e.Selected())

	// The next cycle resolves the parked request.
	e.pollOnce(context.Background())
	assert.EqualValues(t, 99, e.Selected())

	m.AssertExpectations(t)
}

func TestOpenChatPreexistingInquiryReported(t *testing.T) {
	m := new(MockBackend)
	m.On("StartInquiry", mock.Anything, int64(5), int64(9), initialInquiryText).
		Return(api.RawInquiry{ID: 42, PropertyID: 5, UnitID: 9, Status: "active"}, true, nil).
		Once()

	e := newResolverEngine(m)
	e.loaded = true

	res, err := e.OpenChat(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.False(t, res.Created, "backend reported the inquiry already existed")
	assert.EqualValues(t, 42, res.ChatID)
}

func TestOpenChatCreationFailureNotRetried(t *testing.T) {
	m := new(MockBackend)
	m.On("StartInquiry", mock.Anything, int64(5), int64(9), initialInquiryText).
		Return(api.RawInquiry{}, false, &api.Error{Kind: api.KindTransient, Status: 500, Message: "boom"}).
		Once()

	e := newResolverEngine(m)
	e.loaded = true
	ch, cancel := e.bus.Subscribe()
	defer cancel()

	_, err := e.OpenChat(context.Background(), 5, 9)
	require.Error(t, err)
	assert.Contains(t, eventTypes(drainEvents(ch)), notify.EventBannerError)

	// The key is consumed even on failure; the same request is not retried.
	_, err = e.OpenChat(context.Background(), 5, 9)
	require.NoError(t, err)

	m.AssertExpectations(t)
}

func TestOpenKeySentinel(t *testing.T) {
	assert.Equal(t, "7-none", openKey(7, 0))
	assert.Equal(t, "7-3", openKey(7, 3))
	assert.NotEqual(t, openKey(7, 0), openKey(7, 3))
}
