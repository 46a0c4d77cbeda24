package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tenantsync/internal/api"
	"tenantsync/internal/chat"
	"tenantsync/internal/notify"
)

// Send appends a tenant message to a chat. The message is inserted locally
// first under a temporary identity so the view updates immediately; the next
// poll cycle replaces it with the authoritative server copy. On backend
// failure the optimistic entry is rolled back and a banner error published.
func (e *Engine) Send(ctx context.Context, chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty message")
	}

	tmpID := "tmp-" + uuid.NewString()
	optimistic := chat.Message{
		ID:          tmpID,
		Sender:      chat.SenderTenant,
		Text:        text,
		CreatedAt:   e.now(),
		DisplayTime: e.now().Local().Format("Jan 2, 15:04"),
		Pending:     true,
	}

	e.mu.Lock()
	idx, ok := e.chatIndexLocked(chatID)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("unknown chat %d", chatID)
	}
	e.chats[idx].Messages = append(e.chats[idx].Messages, optimistic)
	e.mu.Unlock()

	e.bus.Publish(notify.Event{Type: notify.EventChatsUpdated, ChatID: chatID})
	e.bus.Publish(notify.Event{Type: notify.EventScrollHint, ChatID: chatID})

	if err := e.backend.SendMessage(ctx, chatID, text); err != nil {
		e.removeMessage(chatID, tmpID)
		e.bus.Publish(notify.Event{
			Type:   notify.EventBannerError,
			ChatID: chatID,
			Error:  "Your message could not be sent. Please try again.",
		})
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Upload pushes files to a chat and merges the returned metadata into the
// local attachment list without waiting for the next metadata poll.
func (e *Engine) Upload(ctx context.Context, chatID int64, files []api.UploadFile) ([]api.RawAttachment, error) {
	e.mu.Lock()
	_, ok := e.chatIndexLocked(chatID)
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown chat %d", chatID)
	}

	uploaded, err := e.backend.UploadAttachments(ctx, chatID, files)
	if err != nil {
		e.bus.Publish(notify.Event{
			Type:   notify.EventBannerError,
			ChatID: chatID,
			Error:  "Upload failed. Please try again.",
		})
		return nil, fmt.Errorf("upload attachments: %w", err)
	}

	e.mu.Lock()
	known := make(map[int64]struct{}, len(e.attachmentMeta[chatID]))
	for _, a := range e.attachmentMeta[chatID] {
		known[a.ID] = struct{}{}
	}
	for _, a := range uploaded {
		if _, dup := known[a.ID]; !dup {
			e.attachmentMeta[chatID] = append(e.attachmentMeta[chatID], a)
		}
	}
	e.mu.Unlock()

	e.bus.Publish(notify.Event{Type: notify.EventAttachmentsUpdated, ChatID: chatID})
	return uploaded, nil
}

func (e *Engine) removeMessage(chatID int64, messageID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.chatIndexLocked(chatID)
	if !ok {
		return
	}
	msgs := e.chats[idx].Messages
	for i := range msgs {
		if msgs[i].ID == messageID {
			e.chats[idx].Messages = append(msgs[:i], msgs[i+1:]...)
			return
		}
	}
}

func normalizedKey(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
