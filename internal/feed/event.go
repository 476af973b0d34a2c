// Package feed maintains a live view of recent chat entries from all users.
package feed

import (
	"github.com/murmurchat/murmur/store"
)

// EventType is the kind of change carried by an Event.
type EventType int

const (
	Insert EventType = iota
	Update
	Delete
)

func (t EventType) String() string {
	switch t {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a change to the chat entry collection.
type Event struct {
	Type  EventType
	Entry *store.ChatEntry
}

// FromStore converts a change stream event. ok is false for unknown types and
// events without an entry.
func FromStore(event store.ChatEvent) (Event, bool) {
	if event.Entry == nil {
		return Event{}, false
	}
	switch event.Type {
	case store.ChatEventInsert:
		return Event{Type: Insert, Entry: event.Entry}, true
	case store.ChatEventUpdate:
		return Event{Type: Update, Entry: event.Entry}, true
	case store.ChatEventDelete:
		return Event{Type: Delete, Entry: event.Entry}, true
	default:
		return Event{}, false
	}
}

// Apply returns entries with event applied. entries is not modified and event
// payloads are copied, so both may be shared with other readers.
//
// An insert for an ID already present replaces that entry instead of adding a
// duplicate. Inserts and updates keep the known username when the payload
// carries none.
func Apply(entries []*store.ChatEntry, event Event) []*store.ChatEntry {
	index := indexOf(entries, event.Entry.ID)

	switch event.Type {
	case Insert:
		entry := merge(entries, index, event.Entry)
		if index >= 0 {
			return replaceAt(entries, index, entry)
		}
		out := make([]*store.ChatEntry, 0, len(entries)+1)
		out = append(out, entry)
		return append(out, entries...)
	case Update:
		if index < 0 {
			return entries
		}
		return replaceAt(entries, index, merge(entries, index, event.Entry))
	case Delete:
		if index < 0 {
			return entries
		}
		out := make([]*store.ChatEntry, 0, len(entries)-1)
		out = append(out, entries[:index]...)
		return append(out, entries[index+1:]...)
	default:
		return entries
	}
}

func indexOf(entries []*store.ChatEntry, id int32) int {
	for i, entry := range entries {
		if entry.ID == id {
			return i
		}
	}
	return -1
}

func merge(entries []*store.ChatEntry, index int, payload *store.ChatEntry) *store.ChatEntry {
	entry := *payload
	if entry.Username == "" && index >= 0 {
		entry.Username = entries[index].Username
	}
	return &entry
}

func replaceAt(entries []*store.ChatEntry, index int, entry *store.ChatEntry) []*store.ChatEntry {
	out := make([]*store.ChatEntry, len(entries))
	copy(out, entries)
	out[index] = entry
	return out
}
