package migration

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/buger/jsonparser"
)

// Segment types as they appear in the export.
const (
	segmentTypeText      = "TEXT"
	segmentTypeLineBreak = "LINE_BREAK"
	segmentTypeLink      = "LINK"
)

var fileExtensionRe = regexp.MustCompile(`(?i)\.([0-9a-z]+)(?:[?#]|$)`)

// FileExtensionFromURL returns the first dot-delimited alphanumeric token that is followed by a query, a fragment
// or the end of the URL, or "" when there is none.
func FileExtensionFromURL(url string) string {
	m := fileExtensionRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// ClassifySegment converts one content segment into an output unit and the text it adds to the message body.
// ok is false for segment types the importer does not know; those are dropped without error.
func ClassifySegment(seg Segment) (unit MessageSegment, text string, ok bool) {
	switch seg.Type {
	case segmentTypeText:
		return MessageSegment{Type: SegmentText, Text: seg.Text}, seg.Text, true
	case segmentTypeLineBreak:
		return MessageSegment{Type: SegmentText, Text: "\n"}, "\n", true
	case segmentTypeLink:
		unit = MessageSegment{Type: SegmentLink}
		if seg.LinkData != nil {
			unit.Path = seg.LinkData.LinkTitle
		}
		return unit, seg.Text, true
	default:
		return MessageSegment{}, "", false
	}
}

// ClassifyAttachment derives file segments from the items embedded in one attachment, in document order.
// Items without a url, and items whose media type is not recognised, produce nothing.
func ClassifyAttachment(attachment json.RawMessage) []MessageSegment {
	embed, dataType, _, err := jsonparser.Get(attachment, "embed_item")
	if err != nil || dataType != jsonparser.Object {
		return nil
	}

	var out []MessageSegment
	_ = jsonparser.ObjectEach(embed, func(_ []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		if dataType != jsonparser.Object {
			return nil
		}
		url, err := jsonparser.GetString(value, "url")
		if err != nil || url == "" {
			return nil
		}
		if seg, ok := classifyEmbeddedFile(url, value); ok {
			out = append(out, seg)
		}
		return nil
	})
	return out
}

func classifyEmbeddedFile(url string, item []byte) (MessageSegment, bool) {
	mediaType := ""
	raw, dataType, _, err := jsonparser.Get(item, "media_type")
	switch {
	case err != nil || dataType == jsonparser.Null:
	case dataType == jsonparser.String:
		s, perr := jsonparser.ParseString(raw)
		if perr != nil {
			return MessageSegment{}, false
		}
		mediaType = s
	default:
		return MessageSegment{}, false
	}

	seg := MessageSegment{Type: SegmentFile, URL: url}
	switch mediaType {
	case "PHOTO", "ANIMATED_PHOTO":
		seg.Category = MediaImage
	case "VIDEO":
		seg.Category = MediaVideo
	case "AUDIO":
		seg.Category = MediaAudio
	case "":
		seg.Category = MediaUnknown
		seg.FileType = string(MediaUnknown)
		return seg, true
	default:
		return MessageSegment{}, false
	}

	seg.Extension = FileExtensionFromURL(url)
	seg.FileType = joinNonEmpty("/", string(seg.Category), seg.Extension)
	return seg, true
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
