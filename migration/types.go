package migration

import (
	"bytes"
	"encoding/json"
)

// DefaultUnitKey is the field name under which a Hangouts export nests its conversations.
const DefaultUnitKey = "conversation_state"

// RawConversationUnit is one conversation discovered in the source document. It is kept as raw JSON so that a
// malformed conversation fails on its own during processing instead of failing the whole parse.
type RawConversationUnit struct {
	// ID is the conversation identifier, or "" when the unit carries none.
	ID string

	// Conversation is the conversation metadata (participant_data lives here).
	Conversation json.RawMessage

	// Events is the raw event list.
	Events json.RawMessage
}

// NormalizedMessage is the flat record produced for each chat message event.
type NormalizedMessage struct {
	Date            string            `json:"date"`
	Sender          string            `json:"sender"`
	Receiver        string            `json:"receiver"`
	MessageText     string            `json:"message_text"`
	MessageSegments []MessageSegment  `json:"message_segments"`
	Attachments     []json.RawMessage `json:"attachments"`
}

// SegmentType is the kind of a MessageSegment.
type SegmentType string

const (
	SegmentText SegmentType = "text"
	SegmentLink SegmentType = "link"
	SegmentFile SegmentType = "file"
)

// MediaCategory is the coarse media class of a file segment.
type MediaCategory string

const (
	MediaImage   MediaCategory = "image"
	MediaVideo   MediaCategory = "video"
	MediaAudio   MediaCategory = "audio"
	MediaUnknown MediaCategory = "unknown"
)

// MessageSegment is one typed unit of a normalized message.
type MessageSegment struct {
	Type SegmentType `json:"type"`

	// Text is set for text segments.
	Text string `json:"text,omitempty"`

	// Path is the display title of a link segment.
	Path string `json:"path,omitempty"`

	// File segment fields.
	URL       string        `json:"url,omitempty"`
	FileType  string        `json:"file_type,omitempty"`
	Category  MediaCategory `json:"category,omitempty"`
	Extension string        `json:"extension,omitempty"`
}

// Hangouts export shapes. Only the fields the importer reads are declared.

type rawConversationID struct {
	ID string `json:"id"`
}

type rawConversation struct {
	ID              *rawConversationID   `json:"id"`
	ParticipantData []rawParticipantData `json:"participant_data"`
}

type rawParticipantData struct {
	ID           *rawParticipantID `json:"id"`
	FallbackName *string           `json:"fallback_name"`
}

type rawParticipantID struct {
	GaiaID string `json:"gaia_id"`
	ChatID string `json:"chat_id"`
}

type rawEvent struct {
	SenderID    *rawParticipantID `json:"sender_id"`
	Timestamp   rawTimestamp      `json:"timestamp"`
	EventType   string            `json:"event_type"`
	ChatMessage *rawChatMessage   `json:"chat_message"`
}

type rawChatMessage struct {
	MessageContent rawMessageContent `json:"message_content"`
}

type rawMessageContent struct {
	Segment    []Segment         `json:"segment"`
	Attachment []json.RawMessage `json:"attachment"`
}

// Segment is one fragment of a chat message's content as it appears in the export.
type Segment struct {
	Type     string       `json:"type"`
	Text     string       `json:"text"`
	LinkData *rawLinkData `json:"link_data,omitempty"`
}

type rawLinkData struct {
	LinkTarget string `json:"link_target"`
	LinkTitle  string `json:"link_title"`
}

// rawTimestamp keeps the export's timestamp verbatim whether it was encoded as a JSON string or number.
type rawTimestamp string

func (t *rawTimestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = rawTimestamp(s)
		return nil
	}
	*t = rawTimestamp(b)
	return nil
}
