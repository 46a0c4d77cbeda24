package chat

import (
	"time"

	"tenantsync/internal/api"
)

// Sender is the message author role.
type Sender string

const (
	SenderTenant  Sender = "tenant"
	SenderManager Sender = "manager"
)

// Message is one normalized conversation entry. ID is either "msg-<serverID>"
// for structured records, "<inquiryID>-<sender>-<index>" for legacy text
// segments, or "tmp-<uuid>" for an optimistic local send awaiting the
// authoritative poll.
type Message struct {
	ID          string    `json:"id"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
	DisplayTime string    `json:"displayTime"` // derived, display only
	Pending     bool      `json:"pending,omitempty"`
}

// Chat is the local read model for one inquiry thread.
// Invariant: at most one Chat per inquiry ID in local state; Messages are
// sorted ascending by CreatedAt.
type Chat struct {
	ID           int64           `json:"id"`
	PropertyID   int64           `json:"propertyId"`
	UnitID       int64           `json:"unitId,omitempty"`
	PropertyName string          `json:"propertyName,omitempty"`
	UnitLabel    string          `json:"unitLabel,omitempty"`
	ManagerName  string          `json:"managerName,omitempty"`
	Status       string          `json:"status"`
	Messages     []Message       `json:"messages"`
	Raw          api.RawInquiry  `json:"raw"` // opaque passthrough for unmodeled fields
}

// HasMessages reports whether the chat holds any visible conversation content.
func (c *Chat) HasMessages() bool { return len(c.Messages) > 0 }
