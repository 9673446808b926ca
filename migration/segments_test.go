package migration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileExtensionFromURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://x.com/a/b.jpg?w=100":       "jpg",
		"https://x.com/a/b":                 "",
		"https://x.com/a/b.PNG":             "PNG",
		"https://x.com/a/clip.mp4#t=3":      "mp4",
		"https://x.com/a/b.tar.gz":          "gz",
		"https://lh3.googleusercontent.com/": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, FileExtensionFromURL(in), in)
	}
}

func TestClassifySegment(t *testing.T) {
	t.Parallel()

	unit, text, ok := ClassifySegment(Segment{Type: "TEXT", Text: "hello"})
	require.True(t, ok)
	assert.Equal(t, MessageSegment{Type: SegmentText, Text: "hello"}, unit)
	assert.Equal(t, "hello", text)

	unit, text, ok = ClassifySegment(Segment{Type: "LINE_BREAK"})
	require.True(t, ok)
	assert.Equal(t, MessageSegment{Type: SegmentText, Text: "\n"}, unit)
	assert.Equal(t, "\n", text)

	unit, text, ok = ClassifySegment(Segment{
		Type:     "LINK",
		Text:     "example",
		LinkData: &rawLinkData{LinkTarget: "https://example.com", LinkTitle: "Example Domain"},
	})
	require.True(t, ok)
	assert.Equal(t, MessageSegment{Type: SegmentLink, Path: "Example Domain"}, unit)
	assert.Equal(t, "example", text, "links contribute their visible text, not the url")

	_, text, ok = ClassifySegment(Segment{Type: "STRIKETHROUGH", Text: "x"})
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestClassifyAttachment_MediaTypes(t *testing.T) {
	t.Parallel()

	att := json.RawMessage(`{"embed_item":{
		"type":["PLUS_PHOTO"],
		"embeds.PlusPhoto.plus_photo":{"url":"https://x.com/p/photo.jpg?sz=1","media_type":"PHOTO"},
		"gif":{"url":"https://x.com/p/anim.gif","media_type":"ANIMATED_PHOTO"},
		"video":{"url":"https://x.com/v/clip","media_type":"VIDEO"},
		"audio":{"url":"https://x.com/a/voice.m4a","media_type":"AUDIO"},
		"bare":{"url":"https://x.com/f/file.bin"},
		"odd":{"url":"https://x.com/f/x.doc","media_type":"DOCUMENT"},
		"nourl":{"media_type":"PHOTO"}
	}}`)

	segs := ClassifyAttachment(att)
	require.Len(t, segs, 5)

	assert.Equal(t, MessageSegment{Type: SegmentFile, URL: "https://x.com/p/photo.jpg?sz=1", FileType: "image/jpg", Category: MediaImage, Extension: "jpg"}, segs[0])
	assert.Equal(t, "image/gif", segs[1].FileType)
	assert.Equal(t, "video", segs[2].FileType, "empty extension is omitted from the label")
	assert.Equal(t, "audio/m4a", segs[3].FileType)
	assert.Equal(t, MediaUnknown, segs[4].Category)
	assert.Equal(t, "unknown", segs[4].FileType)
	assert.Empty(t, segs[4].Extension)
}

func TestClassifyAttachment_Malformed(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ClassifyAttachment(json.RawMessage(`{}`)))
	assert.Empty(t, ClassifyAttachment(json.RawMessage(`{"embed_item":"nope"}`)))
	assert.Empty(t, ClassifyAttachment(json.RawMessage(`[1,2]`)))
	assert.Empty(t, ClassifyAttachment(json.RawMessage(`{"embed_item":{"x":{"url":"u","media_type":7}}}`)))

	segs := ClassifyAttachment(json.RawMessage(`{"embed_item":{"x":{"url":"https://x.com/a.png","media_type":null}}}`))
	require.Len(t, segs, 1)
	assert.Equal(t, MediaUnknown, segs[0].Category)
}
