package migration

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"
)

// ServiceHangouts is the service name stamped on base records.
const ServiceHangouts = "Hangouts"

// BaseRecord is the flat, dedupe-able form of a message used for archival output.
type BaseRecord struct {
	Sha      string `json:"sha"`
	IsFromMe bool   `json:"is_from_me"`
	Address  string `json:"address"`
	Date     string `json:"date"`
	DateRead string `json:"date_read,omitempty"`
	Text     string `json:"text"`
	Service  string `json:"service"`
}

// UniqueID derives a stable identifier from the record's address, date, text and service: the hex SHA-1 of the
// compact JSON array [address,date,text,service], encoded the way JavaScript's JSON.stringify encodes it so ids
// match those of earlier Hangouts imports.
func UniqueID(r BaseRecord) string {
	info := []string{r.Address, r.Date, r.Text, r.Service}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a slice of strings cannot fail.
	_ = enc.Encode(info)

	sum := sha1.Sum(unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))))
	return hex.EncodeToString(sum[:])
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes encoding/json always emits back into raw runes.
// Escaped backslashes are copied as pairs so text containing a literal "\\u2028" is left alone.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if rest := b[i+1:]; bytes.HasPrefix(rest, []byte("u2028")) || bytes.HasPrefix(rest, []byte("u2029")) {
			out = utf8.AppendRune(out, 0x2020+rune(rest[4]-'0'))
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// BuildBaseRecord flattens a normalized message. selfName, when set, marks messages sent by that display name as
// is_from_me.
func BuildBaseRecord(msg NormalizedMessage, selfName string) BaseRecord {
	date := FormatTimestamp(msg.Date)
	if date == "" {
		date = msg.Date
	}
	r := BaseRecord{
		IsFromMe: selfName != "" && msg.Sender == selfName,
		Address:  msg.Sender,
		Date:     date,
		Text:     msg.MessageText,
		Service:  ServiceHangouts,
	}
	r.Sha = UniqueID(r)
	return r
}

// RecordIndex accumulates base records keyed by their unique id. A later record with the same id replaces the
// earlier one, while Records keeps the position where the id was first seen. It is not safe for concurrent use.
type RecordIndex struct {
	order []string
	byID  map[string]BaseRecord
}

func NewRecordIndex() *RecordIndex {
	return &RecordIndex{byID: make(map[string]BaseRecord)}
}

// Add inserts r, computing its Sha when unset.
func (x *RecordIndex) Add(r BaseRecord) {
	if r.Sha == "" {
		r.Sha = UniqueID(r)
	}
	if _, ok := x.byID[r.Sha]; !ok {
		x.order = append(x.order, r.Sha)
	}
	x.byID[r.Sha] = r
}

// AddMessages flattens and adds every message.
func (x *RecordIndex) AddMessages(msgs []NormalizedMessage, selfName string) {
	for _, m := range msgs {
		x.Add(BuildBaseRecord(m, selfName))
	}
}

func (x *RecordIndex) Len() int {
	return len(x.order)
}

// Records returns each distinct record once, in first-seen order.
func (x *RecordIndex) Records() []BaseRecord {
	out := make([]BaseRecord, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.byID[id])
	}
	return out
}
