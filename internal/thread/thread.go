// Package thread projects flat chat entries into conversation threads.
package thread

import (
	"sort"

	"github.com/murmurchat/murmur/store"
)

// Thread is a read-time projection of the chat entries sharing a thread ID.
type Thread struct {
	ID      string
	Entries []*store.ChatEntry
}

// First returns the opening entry of the thread.
func (t *Thread) First() *store.ChatEntry {
	return t.Entries[0]
}

// Last returns the most recent entry of the thread.
func (t *Thread) Last() *store.ChatEntry {
	return t.Entries[len(t.Entries)-1]
}

// LastActivity is the creation time of the most recent entry.
func (t *Thread) LastActivity() int64 {
	return t.Last().CreatedTs
}

// Group builds threads from entries in any order. Entries within a thread are
// ordered by CreatedTs ascending; threads are ordered by the CreatedTs of
// their last entry, newest first. Ties keep first-seen order in both cases.
func Group(entries []*store.ChatEntry) []*Thread {
	index := map[string]*Thread{}
	threads := []*Thread{}
	for _, entry := range entries {
		t, ok := index[entry.ThreadID]
		if !ok {
			t = &Thread{ID: entry.ThreadID}
			index[entry.ThreadID] = t
			threads = append(threads, t)
		}
		t.Entries = append(t.Entries, entry)
	}

	for _, t := range threads {
		sort.SliceStable(t.Entries, func(i, j int) bool {
			return t.Entries[i].CreatedTs < t.Entries[j].CreatedTs
		})
	}
	sort.SliceStable(threads, func(i, j int) bool {
		return threads[i].LastActivity() > threads[j].LastActivity()
	})
	return threads
}

// Find returns the thread with the given ID, or nil.
func Find(threads []*Thread, id string) *Thread {
	for _, t := range threads {
		if t.ID == id {
			return t
		}
	}
	return nil
}
