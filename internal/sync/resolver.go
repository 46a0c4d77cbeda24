package sync

import (
	"context"
	"fmt"

	"tenantsync/internal/chat"
	"tenantsync/internal/notify"
)

// Composer prefills for a freshly opened chat.
const (
	greetingFirstContact = "Hi! I'm interested in this property and would like to know more. Is it still available?"
	greetingFollowUp     = "Hi again! I wanted to follow up on my earlier inquiry."

	// initialInquiryText seeds a newly created inquiry; the parser filters
	// it out of the visible conversation.
	initialInquiryText = "Inquiry started"
)

type openRequest struct {
	key        string
	propertyID int64
	unitID     int64
}

// OpenResult describes how an open request ended.
type OpenResult struct {
	ChatID   int64  `json:"chatId,omitempty"`
	Created  bool   `json:"created,omitempty"`
	Greeting string `json:"greeting,omitempty"`
	// Deferred means the initial load is still in flight; the request will
	// be resolved at the end of the next successful poll cycle and announced
	// on the bus.
	Deferred bool `json:"deferred,omitempty"`
}

func openKey(propertyID, unitID int64) string {
	if unitID == 0 {
		return fmt.Sprintf("%d-none", propertyID)
	}
	return fmt.Sprintf("%d-%d", propertyID, unitID)
}

// OpenChat selects the existing chat for (propertyID, unitID) or creates
// exactly one new inquiry, exactly once per distinct request. A repeated
// request with the same key is a no-op until the key changes; a request
// racing the initial load is deferred rather than allowed to double-create.
func (e *Engine) OpenChat(ctx context.Context, propertyID, unitID int64) (OpenResult, error) {
	req := &openRequest{key: openKey(propertyID, unitID), propertyID: propertyID, unitID: unitID}

	e.mu.Lock()
	if req.key == e.handledKey {
		selected := e.selected
		e.mu.Unlock()
		return OpenResult{ChatID: selected}, nil
	}
	e.handledKey = req.key

	if !e.loaded {
		e.pendingOpen = req
		e.mu.Unlock()
		return OpenResult{Deferred: true}, nil
	}
	e.mu.Unlock()

	return e.resolveOpen(ctx, req)
}

// resolveOpen runs after the read model is loaded. It must not hold the
// engine lock across the creation call.
func (e *Engine) resolveOpen(ctx context.Context, req *openRequest) (OpenResult, error) {
	e.mu.Lock()
	if match := e.matchLocked(req); match != nil {
		e.selected = match.ID
		if match.HasMessages() {
			e.draft = greetingFollowUp
		} else {
			e.draft = greetingFirstContact
		}
		result := OpenResult{ChatID: match.ID, Greeting: e.draft}
		e.mu.Unlock()
		e.bus.Publish(notify.Event{Type: notify.EventChatsUpdated, ChatID: match.ID})
		return result, nil
	}

	if e.creating {
		// Another trigger already started the creation; this one is a no-op.
		e.mu.Unlock()
		return OpenResult{}, nil
	}
	e.creating = true
	e.mu.Unlock()

	inquiry, alreadyExists, err := e.backend.StartInquiry(ctx, req.propertyID, req.unitID, initialInquiryText)

	e.mu.Lock()
	e.creating = false
	if err != nil {
		e.mu.Unlock()
		e.bus.Publish(notify.Event{
			Type:  notify.EventBannerError,
			Error: "Could not start the inquiry. Please try again.",
		})
		return OpenResult{}, fmt.Errorf("start inquiry: %w", err)
	}

	created := chat.Build(inquiry)
	if _, exists := e.chatIndexLocked(created.ID); !exists {
		e.chats = append(e.chats, created)
	}
	e.selected = created.ID
	if created.HasMessages() {
		e.draft = greetingFollowUp
	} else {
		e.draft = greetingFirstContact
	}
	result := OpenResult{ChatID: created.ID, Created: !alreadyExists, Greeting: e.draft}
	e.mu.Unlock()

	e.bus.Publish(notify.Event{Type: notify.EventChatsUpdated, ChatID: created.ID})
	return result, nil
}

// matchLocked finds the most recent chat for the requested property/unit.
func (e *Engine) matchLocked(req *openRequest) *chat.Chat {
	var match *chat.Chat
	for i := range e.chats {
		c := &e.chats[i]
		if c.PropertyID != req.propertyID {
			continue
		}
		if req.unitID != 0 && c.UnitID != req.unitID {
			continue
		}
		if match == nil || c.ID > match.ID {
			match = c
		}
	}
	return match
}

func (e *Engine) chatIndexLocked(id int64) (int, bool) {
	for i := range e.chats {
		if e.chats[i].ID == id {
			return i, true
		}
	}
	return 0, false
}
