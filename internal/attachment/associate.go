package attachment

import (
	"time"

	"tenantsync/internal/api"
	"tenantsync/internal/chat"
)

// associationWindow is how far after a message's timestamp an attachment may
// fall and still count as belonging to it. This is a best-effort correlation
// by timestamp proximity, not a real foreign key: the backend does not link
// attachments to messages, so a wrong match is possible under rapid traffic.
const associationWindow = 2 * time.Second

// Associated is the result of matching attachments against a message list.
type Associated struct {
	// ByMessage maps message ID to the attachments considered part of it.
	ByMessage map[string][]api.RawAttachment
	// Standalone holds attachments no message claimed; they render as their
	// own timeline entries.
	Standalone []api.RawAttachment
}

// Associate assigns each attachment to the latest message whose timestamp
// precedes it by at most the association window.
func Associate(messages []chat.Message, attachments []api.RawAttachment) Associated {
	out := Associated{ByMessage: make(map[string][]api.RawAttachment)}

	for _, att := range attachments {
		ts := chat.ParseTimestamp(att.CreatedAt)
		owner := ""
		if !ts.IsZero() {
			for _, msg := range messages {
				if msg.CreatedAt.IsZero() {
					continue
				}
				delta := ts.Sub(msg.CreatedAt)
				if delta >= 0 && delta <= associationWindow {
					owner = msg.ID
				}
			}
		}
		if owner != "" {
			out.ByMessage[owner] = append(out.ByMessage[owner], att)
		} else {
			out.Standalone = append(out.Standalone, att)
		}
	}
	return out
}
