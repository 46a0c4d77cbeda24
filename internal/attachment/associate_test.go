package attachment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantsync/internal/api"
	"tenantsync/internal/chat"
)

func TestAssociateWithinWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	messages := []chat.Message{
		{ID: "msg-1", CreatedAt: base},
		{ID: "msg-2", CreatedAt: base.Add(10 * time.Second)},
	}
	attachments := []api.RawAttachment{
		{ID: 100, FileName: "lease.pdf", CreatedAt: base.Add(time.Second).Format(time.RFC3339)},
		{ID: 101, FileName: "photo.jpg", CreatedAt: base.Add(11 * time.Second).Format(time.RFC3339)},
	}

	out := Associate(messages, attachments)
	require.Len(t, out.ByMessage["msg-1"], 1)
	assert.EqualValues(t, 100, out.ByMessage["msg-1"][0].ID)
	require.Len(t, out.ByMessage["msg-2"], 1)
	assert.EqualValues(t, 101, out.ByMessage["msg-2"][0].ID)
	assert.Empty(t, out.Standalone)
}

func TestAssociateOutsideWindowIsStandalone(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	messages := []chat.Message{{ID: "msg-1", CreatedAt: base}}
	attachments := []api.RawAttachment{
		{ID: 100, CreatedAt: base.Add(5 * time.Second).Format(time.RFC3339)}, // past the window
		{ID: 101, CreatedAt: base.Add(-time.Second).Format(time.RFC3339)},    // before the message
		{ID: 102, CreatedAt: "garbage"},                                      // unparseable timestamp
	}

	out := Associate(messages, attachments)
	assert.Empty(t, out.ByMessage)
	assert.Len(t, out.Standalone, 3)
}

func TestAssociatePrefersLatestEligibleMessage(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	messages := []chat.Message{
		{ID: "msg-1", CreatedAt: base},
		{ID: "msg-2", CreatedAt: base.Add(time.Second)},
	}
	attachments := []api.RawAttachment{
		{ID: 100, CreatedAt: base.Add(1500 * time.Millisecond).Format(time.RFC3339Nano)},
	}

	out := Associate(messages, attachments)
	require.Len(t, out.ByMessage["msg-2"], 1, "both messages are within the window; the later one wins")
}
