package migration

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// UnknownParticipant is the display name used when no source knows a participant's name.
const UnknownParticipant = "Unknown"

// ErrMalformedParticipants is returned when a conversation's participant data cannot be enumerated.
var ErrMalformedParticipants = errors.New("malformed participant data")

// ParticipantMap maps a person's gaia id to a display name.
type ParticipantMap map[string]string

// Lookup implements NameLookup.
func (m ParticipantMap) Lookup(gaiaID string) (string, bool) {
	name, ok := m[gaiaID]
	return name, ok
}

// NameLookup resolves a gaia id to a display name.
type NameLookup interface {
	Lookup(gaiaID string) (string, bool)
}

func decodeConversation(raw json.RawMessage) (rawConversation, error) {
	var conv rawConversation
	if len(raw) == 0 {
		return conv, nil
	}
	if err := json.Unmarshal(raw, &conv); err != nil {
		return rawConversation{}, fmt.Errorf("%w: %v", ErrMalformedParticipants, err)
	}
	for i, p := range conv.ParticipantData {
		if p.ID == nil {
			return rawConversation{}, fmt.Errorf("%w: participant %d has no id", ErrMalformedParticipants, i)
		}
	}
	return conv, nil
}

// BuildParticipantMap collects the fallback names a conversation declares for its participants. The first name
// seen for an id wins; participants without a fallback name, or with an empty one, are left out.
func BuildParticipantMap(conversation json.RawMessage) (ParticipantMap, error) {
	conv, err := decodeConversation(conversation)
	if err != nil {
		return nil, fmt.Errorf("BuildParticipantMap: %w", err)
	}

	return fallbackNames(conv), nil
}

func fallbackNames(conv rawConversation) ParticipantMap {
	m := make(ParticipantMap, len(conv.ParticipantData))
	for _, p := range conv.ParticipantData {
		if p.FallbackName == nil || *p.FallbackName == "" {
			continue
		}
		if _, ok := m[p.ID.GaiaID]; !ok {
			m[p.ID.GaiaID] = *p.FallbackName
		}
	}
	return m
}

// ResolveParticipants names every participant of a conversation. A participant's own fallback name wins, then the
// name known to global, then UnknownParticipant.
func ResolveParticipants(conversation json.RawMessage, global NameLookup) (ParticipantMap, error) {
	conv, err := decodeConversation(conversation)
	if err != nil {
		return nil, fmt.Errorf("ResolveParticipants: %w", err)
	}
	return resolveParticipants(conv, global), nil
}

func resolveParticipants(conv rawConversation, global NameLookup) ParticipantMap {
	m := make(ParticipantMap, len(conv.ParticipantData))
	for _, p := range conv.ParticipantData {
		m[p.ID.GaiaID] = resolveName(p, global)
	}
	return m
}

func resolveName(p rawParticipantData, global NameLookup) string {
	if p.FallbackName != nil && *p.FallbackName != "" {
		return *p.FallbackName
	}
	if global != nil {
		if name, ok := global.Lookup(p.ID.GaiaID); ok && name != "" {
			return name
		}
	}
	return UnknownParticipant
}

// participantNames lists the resolved names in participant_data order, without duplicates.
func participantNames(conv rawConversation, resolved ParticipantMap) []string {
	names := make([]string, 0, len(conv.ParticipantData))
	seen := make(map[string]struct{}, len(conv.ParticipantData))
	for _, p := range conv.ParticipantData {
		if _, ok := seen[p.ID.GaiaID]; ok {
			continue
		}
		seen[p.ID.GaiaID] = struct{}{}
		names = append(names, resolved[p.ID.GaiaID])
	}
	return names
}

// ParticipantDirectory is the names accumulated over every conversation of one ingestion run. An id keeps the
// first name recorded for it. It is safe for concurrent use.
type ParticipantDirectory struct {
	mu    sync.RWMutex
	names *orderedmap.OrderedMap[string, string]
}

func NewParticipantDirectory() *ParticipantDirectory {
	return &ParticipantDirectory{names: orderedmap.New[string, string]()}
}

// Merge records every name in m whose id is not known yet and returns how many were added.
func (d *ParticipantDirectory) Merge(m ParticipantMap) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	added := 0
	for id, name := range m {
		if name == "" {
			continue
		}
		if _, present := d.names.Get(id); present {
			continue
		}
		d.names.Set(id, name)
		added++
	}
	return added
}

// Lookup implements NameLookup.
func (d *ParticipantDirectory) Lookup(gaiaID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names.Get(gaiaID)
}

func (d *ParticipantDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names.Len()
}

// Snapshot copies the directory into a ParticipantMap.
func (d *ParticipantDirectory) Snapshot() ParticipantMap {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m := make(ParticipantMap, d.names.Len())
	for pair := d.names.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}
