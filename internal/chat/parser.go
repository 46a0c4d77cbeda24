package chat

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"tenantsync/internal/api"
)

// Legacy records store a whole conversation as one delimited blob per role.
// Separators carry an optional unix-millisecond timestamp suffix.
var legacySeparator = regexp.MustCompile(`---\s*(?:New Message|Manager Reply)(?:\s*\[(\d+)\])?\s*---`)

// placeholderTexts are synthetic bootstrap strings, not real conversation
// content. Compared case-insensitively after trimming.
var placeholderTexts = map[string]struct{}{
	"inquiry started": {},
	"placeholder":     {},
	"init":            {},
}

// ParseMessages turns one raw inquiry record into a normalized, deduplicated,
// time-ordered message list. Malformed timestamps or absent fields never
// fail the parse; missing data degrades to empty string / zero time.
func ParseMessages(inq api.RawInquiry) []Message {
	return parseMessagesAt(inq, time.Now())
}

func parseMessagesAt(inq api.RawInquiry, now time.Time) []Message {
	var msgs []Message

	if len(inq.Messages) > 0 {
		for _, rm := range inq.Messages {
			msgs = append(msgs, Message{
				ID:        fmt.Sprintf("msg-%d", rm.ID),
				Sender:    senderOf(rm, inq.TenantID),
				Text:      strings.TrimSpace(rm.Text),
				CreatedAt: ParseTimestamp(rm.CreatedAt),
			})
		}
	} else {
		msgs = append(msgs, parseLegacyBlob(inq.ID, SenderTenant, inq.Message, now)...)
		msgs = append(msgs, parseLegacyBlob(inq.ID, SenderManager, inq.ManagerReply, now)...)
	}

	// Missing timestamps sort as epoch 0 (the zero time precedes everything).
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	// Coarse duplicate suppression: drop any (sender, normalized text) pair
	// already seen in this parse call.
	seen := make(map[string]struct{}, len(msgs))
	out := msgs[:0]
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		key := string(m.Sender) + "\x00" + normalizeText(m.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		m.DisplayTime = displayTime(m.CreatedAt)
		out = append(out, m)
	}
	return out
}

// parseLegacyBlob splits a per-role conversation blob into messages. Each
// separator opens a new segment; text before the first separator is its own
// segment. A segment without an embedded timestamp gets a synthesized one,
// now minus 60 seconds per remaining segment, which preserves relative order
// without claiming real precision.
func parseLegacyBlob(inquiryID int64, sender Sender, blob string, now time.Time) []Message {
	if strings.TrimSpace(blob) == "" {
		return nil
	}

	type segment struct {
		text string
		ts   time.Time
	}
	var segments []segment

	matches := legacySeparator.FindAllStringSubmatchIndex(blob, -1)
	prevEnd := 0
	prevTS := time.Time{}
	for _, m := range matches {
		if text := blob[prevEnd:m[0]]; strings.TrimSpace(text) != "" {
			segments = append(segments, segment{text: text, ts: prevTS})
		}
		prevEnd = m[1]
		prevTS = time.Time{}
		if m[2] >= 0 {
			if ms, err := strconv.ParseInt(blob[m[2]:m[3]], 10, 64); err == nil {
				prevTS = time.UnixMilli(ms)
			}
		}
	}
	if text := blob[prevEnd:]; strings.TrimSpace(text) != "" {
		segments = append(segments, segment{text: text, ts: prevTS})
	}

	var msgs []Message
	for i, seg := range segments {
		text := strings.TrimSpace(seg.text)
		if isPlaceholder(text) {
			continue
		}
		ts := seg.ts
		if ts.IsZero() {
			remaining := len(segments) - i
			ts = now.Add(-time.Duration(remaining) * 60 * time.Second)
		}
		msgs = append(msgs, Message{
			ID:        fmt.Sprintf("%d-%s-%d", inquiryID, sender, i),
			Sender:    sender,
			Text:      text,
			CreatedAt: ts,
		})
	}
	return msgs
}

func senderOf(rm api.RawMessage, tenantID int64) Sender {
	switch strings.ToLower(rm.Sender) {
	case "tenant":
		return SenderTenant
	case "manager":
		return SenderManager
	}
	if rm.SenderID != 0 && rm.SenderID == tenantID {
		return SenderTenant
	}
	return SenderManager
}

func isPlaceholder(text string) bool {
	_, ok := placeholderTexts[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp tries the timestamp layouts the backend has been seen to emit,
// plus raw unix seconds/milliseconds. Malformed input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n)
		}
		return time.Unix(n, 0)
	}
	return time.Time{}
}

func displayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 15:04")
}
