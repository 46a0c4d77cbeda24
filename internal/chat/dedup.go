package chat

import "tenantsync/internal/api"

// FromRaw collapses raw inquiry records into Chats with unique identities.
//
// Policy: strict per-id, first occurrence wins. Duplicate IDs in one response
// are dropped; distinct inquiries for the same property/unit (e.g. a reopened
// thread) all survive. The alternative per-property "largest id wins" policy
// silently discards distinct conversations, so it is deliberately not used.
func FromRaw(inquiries []api.RawInquiry) []Chat {
	seen := make(map[int64]struct{}, len(inquiries))
	chats := make([]Chat, 0, len(inquiries))
	for _, inq := range inquiries {
		if _, dup := seen[inq.ID]; dup {
			continue
		}
		seen[inq.ID] = struct{}{}
		chats = append(chats, Build(inq))
	}
	return chats
}

// Build constructs the local read model for one raw inquiry.
func Build(inq api.RawInquiry) Chat {
	return Chat{
		ID:           inq.ID,
		PropertyID:   inq.PropertyID,
		UnitID:       inq.UnitID,
		PropertyName: inq.PropertyName,
		UnitLabel:    inq.UnitLabel,
		ManagerName:  inq.ManagerName,
		Status:       inq.Status,
		Messages:     ParseMessages(inq),
		Raw:          inq,
	}
}
