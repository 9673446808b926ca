package migration

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conversationThreeParticipants = `{"id":{"id":"c1"},"participant_data":[
	{"id":{"gaia_id":"1","chat_id":"1"},"fallback_name":"Alice"},
	{"id":{"gaia_id":"2","chat_id":"2"},"fallback_name":null},
	{"id":{"gaia_id":"3","chat_id":"3"}},
	{"id":{"gaia_id":"1","chat_id":"1"},"fallback_name":"Alice Again"}
]}`

func TestBuildParticipantMap(t *testing.T) {
	t.Parallel()

	m, err := BuildParticipantMap(json.RawMessage(conversationThreeParticipants))
	require.NoError(t, err)
	assert.Equal(t, ParticipantMap{"1": "Alice"}, m)
}

func TestBuildParticipantMap_EmptyNameDoesNotClaimID(t *testing.T) {
	t.Parallel()

	m, err := BuildParticipantMap(json.RawMessage(`{"participant_data":[
		{"id":{"gaia_id":"1","chat_id":"1"},"fallback_name":""},
		{"id":{"gaia_id":"1","chat_id":"1"},"fallback_name":"Bob"},
		{"id":{"gaia_id":"2","chat_id":"2"},"fallback_name":""}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, ParticipantMap{"1": "Bob"}, m)
}

func TestBuildParticipantMap_NoParticipantData(t *testing.T) {
	t.Parallel()

	m, err := BuildParticipantMap(json.RawMessage(`{"id":{"id":"c1"}}`))
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = BuildParticipantMap(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestBuildParticipantMap_Malformed(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		`{"participant_data":"everyone"}`,
		`{"participant_data":[{"fallback_name":"No Id"}]}`,
		`[]`,
	} {
		_, err := BuildParticipantMap(json.RawMessage(in))
		require.Error(t, err, in)
		assert.ErrorIs(t, err, ErrMalformedParticipants, in)
	}
}

func TestResolveParticipants_Precedence(t *testing.T) {
	t.Parallel()

	global := ParticipantMap{"1": "Global Alice", "2": "Bob"}
	m, err := ResolveParticipants(json.RawMessage(conversationThreeParticipants), global)
	require.NoError(t, err)

	assert.Equal(t, "Alice Again", m["1"], "a participant's own fallback name beats the global map")
	assert.Equal(t, "Bob", m["2"])
	assert.Equal(t, UnknownParticipant, m["3"])
}

func TestResolveParticipants_NilGlobal(t *testing.T) {
	t.Parallel()

	m, err := ResolveParticipants(json.RawMessage(conversationThreeParticipants), nil)
	require.NoError(t, err)
	assert.Equal(t, UnknownParticipant, m["2"])
}

func TestResolveParticipants_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ResolveParticipants(json.RawMessage(`{"participant_data":{"id":1}}`), ParticipantMap{})
	assert.ErrorIs(t, err, ErrMalformedParticipants)
}

func TestParticipantDirectory_FirstWriteWins(t *testing.T) {
	t.Parallel()

	d := NewParticipantDirectory()
	assert.Equal(t, 1, d.Merge(ParticipantMap{"1": "Alice"}))
	assert.Equal(t, 1, d.Merge(ParticipantMap{"2": "Bob"}))
	assert.Equal(t, 0, d.Merge(ParticipantMap{"1": "Mallory", "3": ""}))

	name, ok := d.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "Alice", name)

	_, ok = d.Lookup("3")
	assert.False(t, ok, "empty names are never recorded")

	assert.Equal(t, ParticipantMap{"1": "Alice", "2": "Bob"}, d.Snapshot())
	assert.Equal(t, 2, d.Len())
}

func TestParticipantDirectory_Concurrent(t *testing.T) {
	t.Parallel()

	d := NewParticipantDirectory()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Merge(ParticipantMap{"shared": "first", string(rune('a' + i)): "x"})
			_, _ = d.Lookup("shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 17, d.Len())
}
