package migration

import (
	"strings"
)

// ConversationIndexRecord is a row in index.jsonl mapping a conversation to its output file.
type ConversationIndexRecord struct {
	ConversationID string   `json:"conversation_id"`
	Path           string   `json:"path"`
	MessageCount   int      `json:"message_count"`
	Participants   []string `json:"participants,omitempty"`
	FirstMessageAt string   `json:"first_message_at,omitempty"`
	LastMessageAt  string   `json:"last_message_at,omitempty"`
}

// BuildConversationIndexRecord creates a stable index row for a processed conversation.
func BuildConversationIndexRecord(c ConversationResult, path string) ConversationIndexRecord {
	rec := ConversationIndexRecord{
		ConversationID: c.ConversationID,
		Path:           path,
		MessageCount:   len(c.Messages),
		Participants:   dedupeStrings(c.Participants),
	}
	if len(c.Messages) > 0 {
		rec.FirstMessageAt = FormatTimestamp(c.Messages[0].Date)
		rec.LastMessageAt = FormatTimestamp(c.Messages[len(c.Messages)-1].Date)
	}
	return rec
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
