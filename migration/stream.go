package migration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/tidwall/gjson"
)

// ErrParse marks errors caused by a malformed source document.
var ErrParse = errors.New("parse source document")

var errStopScan = errors.New("scan stopped")

// ScanUnits lazily discovers conversation units in a JSON document. A unit is any object found as the value of
// key (or as an element of an array held by key), at any depth, that carries a "conversation" or "event" field.
// Objects under key without those fields are searched further, which is how the export's
// {"conversation_id":..., "conversation_state":{...}} wrappers are unwrapped.
//
// The document is read with a streaming decoder; only one unit is held in memory at a time. A malformed document
// yields a single error wrapping ErrParse at the point it is detected, and the sequence ends.
func ScanUnits(r io.Reader, key string) iter.Seq2[RawConversationUnit, error] {
	if key == "" {
		key = DefaultUnitKey
	}
	return func(yield func(RawConversationUnit, error) bool) {
		// The export is typically one huge line; use a larger buffer than default.
		dec := json.NewDecoder(bufio.NewReaderSize(r, 1<<20))
		w := &unitWalker{key: key, yield: yield}

		err := w.walk(dec)
		if err == nil {
			if tok, terr := dec.Token(); terr == nil {
				err = fmt.Errorf("unexpected data after top-level value: %v", tok)
			} else if !errors.Is(terr, io.EOF) {
				err = terr
			}
		}
		if err != nil && !errors.Is(err, errStopScan) {
			yield(RawConversationUnit{}, fmt.Errorf("%w: %w", ErrParse, err))
		}
	}
}

type unitWalker struct {
	key   string
	yield func(RawConversationUnit, error) bool
}

type rawField struct {
	Key   string
	Value json.RawMessage
}

// walk consumes one JSON value, looking for key inside objects.
func (w *unitWalker) walk(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		// Primitive (string/number/bool/null): already fully consumed.
		return nil
	}

	switch d {
	case '[':
		for dec.More() {
			if err := w.walk(dec); err != nil {
				return err
			}
		}
		return expectDelim(dec, ']')
	case '{':
		for dec.More() {
			k, err := readKey(dec)
			if err != nil {
				return err
			}
			if k == w.key {
				err = w.walkUnitValue(dec)
			} else {
				err = w.walk(dec)
			}
			if err != nil {
				return err
			}
		}
		return expectDelim(dec, '}')
	default:
		return fmt.Errorf("unexpected delimiter %q", d)
	}
}

// walkUnitValue consumes the value of a key field.
func (w *unitWalker) walkUnitValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch d {
	case '[':
		for dec.More() {
			if err := w.walkUnitValue(dec); err != nil {
				return err
			}
		}
		return expectDelim(dec, ']')
	case '{':
		var fields []rawField
		for dec.More() {
			k, err := readKey(dec)
			if err != nil {
				return err
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("decode field %q: %w", k, err)
			}
			fields = append(fields, rawField{Key: k, Value: raw})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
		return w.emitFields(fields)
	default:
		return fmt.Errorf("unexpected delimiter %q", d)
	}
}

func (w *unitWalker) emitFields(fields []rawField) error {
	if unit, ok := newUnit(fields); ok {
		if !w.yield(unit, nil) {
			return errStopScan
		}
		return nil
	}

	for _, f := range fields {
		sub := json.NewDecoder(bytes.NewReader(f.Value))
		var err error
		if f.Key == w.key {
			err = w.walkUnitValue(sub)
		} else {
			err = w.walk(sub)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func newUnit(fields []rawField) (RawConversationUnit, bool) {
	var (
		unit     RawConversationUnit
		isUnit   bool
		idSource json.RawMessage
	)
	for _, f := range fields {
		switch f.Key {
		case "conversation":
			unit.Conversation = f.Value
			isUnit = true
		case "event":
			unit.Events = f.Value
			isUnit = true
		case "conversation_id":
			idSource = f.Value
		}
	}
	if !isUnit {
		return RawConversationUnit{}, false
	}

	unit.ID = gjson.GetBytes(idSource, "id").String()
	if unit.ID == "" {
		unit.ID = gjson.GetBytes(unit.Conversation, "id.id").String()
	}
	return unit, true
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("read object key: %w", err)
	}
	k, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected string key, got %T", tok)
	}
	return k, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected closing %q, got %v", want, tok)
	}
	return nil
}
