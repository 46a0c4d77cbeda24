package sync

import "tenantsync/internal/chat"

// changeSet is the outcome of comparing two chat read models.
type changeSet struct {
	changed bool
	// scrollChatID is set when the currently selected chat gained messages;
	// views should scroll to the newest entry after rendering.
	scrollChatID int64
}

// detectChanges decides whether a freshly polled chat list differs from the
// held state. Only a detected change makes the engine replace local state,
// so identical consecutive responses cause no re-render signal.
//
// A chat counts as changed when it is new, its message count moved, a
// message id exists that the old copy lacked (covers same-count edits), or
// its status flipped. A bare list-length mismatch counts too, even when no
// per-chat delta was found.
//
// Local optimistic entries are invisible to the comparison: the held state
// may carry Pending messages the server has not echoed yet, and those must
// not make an unchanged server response look like a delta on every cycle.
func detectChanges(old, fresh []chat.Chat, selected int64) changeSet {
	var out changeSet

	oldByID := make(map[int64]*chat.Chat, len(old))
	for i := range old {
		oldByID[old[i].ID] = &old[i]
	}

	for i := range fresh {
		nc := &fresh[i]
		oc, known := oldByID[nc.ID]
		if !known {
			out.changed = true
			if nc.ID == selected && len(nc.Messages) > 0 {
				out.scrollChatID = selected
			}
			continue
		}

		oldCount := serverMessageCount(oc)
		gained := len(nc.Messages) > oldCount
		delta := len(nc.Messages) != oldCount || nc.Status != oc.Status
		if !delta {
			oldIDs := serverMessageIDs(oc)
			for _, m := range nc.Messages {
				if _, ok := oldIDs[m.ID]; !ok {
					delta = true
					break
				}
			}
		}

		if delta {
			out.changed = true
			if nc.ID == selected && gained {
				out.scrollChatID = selected
			}
		}
	}

	if len(fresh) != len(old) {
		out.changed = true
	}
	return out
}

// serverMessageCount counts a held chat's messages minus local Pending ones.
func serverMessageCount(c *chat.Chat) int {
	n := 0
	for _, m := range c.Messages {
		if !m.Pending {
			n++
		}
	}
	return n
}

// serverMessageIDs collects a held chat's message ids minus local Pending
// entries.
func serverMessageIDs(c *chat.Chat) map[string]struct{} {
	ids := make(map[string]struct{}, len(c.Messages))
	for _, m := range c.Messages {
		if !m.Pending {
			ids[m.ID] = struct{}{}
		}
	}
	return ids
}

// attachmentsEqual reports whether two metadata lists carry the same ids in
// the same order.
func attachmentsEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
