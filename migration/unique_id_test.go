package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniqueID_Deterministic(t *testing.T) {
	t.Parallel()

	a := BaseRecord{Address: "Alice", Date: "2014-05-13T16:53:20Z", Text: "hi", Service: ServiceHangouts, IsFromMe: true}
	b := BaseRecord{Address: "Alice", Date: "2014-05-13T16:53:20Z", Text: "hi", Service: ServiceHangouts}

	assert.Equal(t, UniqueID(a), UniqueID(b))
	assert.Len(t, UniqueID(a), 40)
}

func TestUniqueID_EachFieldMatters(t *testing.T) {
	t.Parallel()

	base := BaseRecord{Address: "Alice", Date: "d", Text: "hi", Service: "s"}
	variants := []BaseRecord{
		{Address: "Bob", Date: "d", Text: "hi", Service: "s"},
		{Address: "Alice", Date: "e", Text: "hi", Service: "s"},
		{Address: "Alice", Date: "d", Text: "ho", Service: "s"},
		{Address: "Alice", Date: "d", Text: "hi", Service: "t"},
	}
	for _, v := range variants {
		assert.NotEqual(t, UniqueID(base), UniqueID(v), "%+v", v)
	}
}

func TestUniqueID_MatchesSHA1OfJSONArray(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  BaseRecord
		want string // sha1 of the JSON.stringify rendering of [address,date,text,service]
	}{
		{"all empty", BaseRecord{}, "684689d63b554e7b1f328e71dfcc1373977403d5"},
		{"html not escaped", BaseRecord{Text: "<b>"}, "c993074bf0d6dbccb1f81a507d8d3fe8d43e75d0"},
		{"full", BaseRecord{Address: "Alice", Date: "2014-05-13T16:53:20Z", Text: "hi", Service: ServiceHangouts}, "17c139d1a8a23696392d82658b810810d25ebaca"},
		{"empty text", BaseRecord{Address: "Alice", Date: "d", Service: ServiceHangouts}, "6010f815af328d1c2fb1abbff86bbe4f7228539f"},
		{"line separators raw", BaseRecord{Address: "Alice", Date: "d", Text: "a\u2028b\u2029", Service: ServiceHangouts}, "5b3010c067dda2c7fd9be5d81cdd92b0fe3159b1"},
		{"literal backslash u2028", BaseRecord{Address: "Alice", Date: "d", Text: `\u2028`, Service: ServiceHangouts}, "1adead061312b6feb0e5e39c7362570591474bbc"},
		{"control characters", BaseRecord{Address: "Alice", Date: "d", Text: "tab\there\b\f\x01", Service: ServiceHangouts}, "e905ecc3dad443f968cc1b9310cbc5ce9d40228a"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, UniqueID(tc.rec), tc.name)
	}
}

func TestBuildBaseRecord(t *testing.T) {
	t.Parallel()

	msg := NormalizedMessage{Date: "1400000000000000", Sender: "Alice", MessageText: "hello"}
	r := BuildBaseRecord(msg, "Alice")

	assert.Equal(t, "2014-05-13T16:53:20Z", r.Date)
	assert.Equal(t, "Alice", r.Address)
	assert.Equal(t, ServiceHangouts, r.Service)
	assert.True(t, r.IsFromMe)
	assert.Equal(t, UniqueID(r), r.Sha)

	r = BuildBaseRecord(NormalizedMessage{Date: "yesterday", Sender: "Bob"}, "Alice")
	assert.Equal(t, "yesterday", r.Date)
	assert.False(t, r.IsFromMe)
}

func TestRecordIndex_LastWriteWinsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	idx := NewRecordIndex()
	first := BaseRecord{Address: "Alice", Date: "1", Text: "a", Service: ServiceHangouts}
	second := BaseRecord{Address: "Bob", Date: "2", Text: "b", Service: ServiceHangouts}
	dupe := first
	dupe.IsFromMe = true

	idx.Add(first)
	idx.Add(second)
	idx.Add(dupe)

	require.Equal(t, 2, idx.Len())
	recs := idx.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "Alice", recs[0].Address)
	assert.True(t, recs[0].IsFromMe, "later duplicate should replace the earlier record")
	assert.Equal(t, "Bob", recs[1].Address)
}

func TestRecordIndex_AddMessages(t *testing.T) {
	t.Parallel()

	idx := NewRecordIndex()
	msgs := []NormalizedMessage{
		{Date: "1400000000000000", Sender: "Alice", MessageText: "hi"},
		{Date: "1400000000000000", Sender: "Alice", MessageText: "hi"},
		{Date: "1400000000000001", Sender: "Alice", MessageText: "hi"},
	}
	idx.AddMessages(msgs, "")
	assert.Equal(t, 2, idx.Len())
}

func TestFormatTimestamp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2014-05-13T16:53:20Z", FormatTimestamp("1400000000000000"))
	assert.Equal(t, "", FormatTimestamp(""))
	assert.Equal(t, "", FormatTimestamp("0"))
	assert.Equal(t, "", FormatTimestamp("abc"))
}
