package migration

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedConversation is returned when a conversation's events cannot be decoded.
var ErrMalformedConversation = errors.New("malformed conversation")

func decodeEvents(raw json.RawMessage) ([]rawEvent, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var events []rawEvent
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("%w: decode events: %v", ErrMalformedConversation, err)
	}
	return events, nil
}

// BuildMessages produces one NormalizedMessage per chat message event of the unit, in event order. Events without
// a chat message (membership changes, hangout calls) are skipped. Senders are resolved through participants;
// unknown senders are left blank. Receiver is always blank because the export does not record one.
func BuildMessages(unit RawConversationUnit, participants NameLookup) ([]NormalizedMessage, error) {
	events, err := decodeEvents(unit.Events)
	if err != nil {
		return nil, fmt.Errorf("BuildMessages (id=%q): %w", unit.ID, err)
	}

	msgs := make([]NormalizedMessage, 0, len(events))
	for _, ev := range events {
		if ev.ChatMessage == nil {
			continue
		}
		msgs = append(msgs, buildMessage(ev, participants))
	}
	return msgs, nil
}

func buildMessage(ev rawEvent, participants NameLookup) NormalizedMessage {
	var sender string
	if ev.SenderID != nil && participants != nil {
		sender, _ = participants.Lookup(ev.SenderID.GaiaID)
	}

	content := ev.ChatMessage.MessageContent
	segments := make([]MessageSegment, 0, len(content.Segment))
	var text strings.Builder
	for _, seg := range content.Segment {
		unit, contribution, ok := ClassifySegment(seg)
		if !ok {
			continue
		}
		segments = append(segments, unit)
		text.WriteString(contribution)
	}

	attachments := make([]json.RawMessage, 0, len(content.Attachment))
	for _, att := range content.Attachment {
		segments = append(segments, ClassifyAttachment(att)...)
		attachments = append(attachments, att)
	}

	return NormalizedMessage{
		Date:            string(ev.Timestamp),
		Sender:          sender,
		Receiver:        "",
		MessageText:     text.String(),
		MessageSegments: segments,
		Attachments:     attachments,
	}
}
