package thread

import (
	"sync"
	"unicode/utf8"

	"github.com/murmurchat/murmur/store"
)

// PreviewLength is the number of characters shown for a collapsed entry.
const PreviewLength = 100

const ellipsis = "…"

// Truncate cuts text to exactly limit characters followed by an ellipsis.
// Text of limit characters or fewer is returned unchanged.
func Truncate(text string, limit int) (string, bool) {
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	runes := []rune(text)
	return string(runes[:limit]) + ellipsis, true
}

// Expansion tracks which single thread is expanded.
type Expansion struct {
	mu sync.Mutex
	id string
}

// NewExpansion returns an expansion with id expanded. An empty id expands nothing.
func NewExpansion(id string) *Expansion {
	return &Expansion{id: id}
}

// Toggle expands the thread, collapsing whichever thread was expanded before.
// Toggling the expanded thread collapses it.
func (e *Expansion) Toggle(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.id == id {
		e.id = ""
		return
	}
	e.id = id
}

// Expanded reports whether the thread is the expanded one.
func (e *Expansion) Expanded(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return id != "" && e.id == id
}

// Current returns the expanded thread ID, or "" when all threads are collapsed.
func (e *Expansion) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// EntryView is a chat entry as displayed in the feed.
type EntryView struct {
	ID        int32  `json:"id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	Truncated bool   `json:"truncated"`
	CreatedTs int64  `json:"createdTs"`
}

// View is a thread as displayed in the feed.
type View struct {
	ID           string      `json:"id"`
	Expanded     bool        `json:"expanded"`
	EntryCount   int         `json:"entryCount"`
	LastActivity int64       `json:"lastActivity"`
	Entries      []EntryView `json:"entries"`
	// HasMore is set when a collapsed thread hides entries or truncated text.
	HasMore bool `json:"hasMore"`
}

// Render produces display views. Collapsed threads show their first entry
// with message and response cut to PreviewLength; the expanded thread shows
// every entry in full.
func Render(threads []*Thread, expansion *Expansion) []View {
	views := make([]View, 0, len(threads))
	for _, t := range threads {
		view := View{
			ID:           t.ID,
			Expanded:     expansion.Expanded(t.ID),
			EntryCount:   len(t.Entries),
			LastActivity: t.LastActivity(),
		}
		if view.Expanded {
			for _, entry := range t.Entries {
				view.Entries = append(view.Entries, fullView(entry))
			}
		} else {
			preview := previewView(t.First())
			view.Entries = []EntryView{preview}
			view.HasMore = preview.Truncated || len(t.Entries) > 1
		}
		views = append(views, view)
	}
	return views
}

func fullView(entry *store.ChatEntry) EntryView {
	return EntryView{
		ID:        entry.ID,
		Username:  entry.Username,
		Message:   entry.Message,
		Response:  entry.Response,
		CreatedTs: entry.CreatedTs,
	}
}

func previewView(entry *store.ChatEntry) EntryView {
	view := fullView(entry)
	var messageCut, responseCut bool
	view.Message, messageCut = Truncate(entry.Message, PreviewLength)
	view.Response, responseCut = Truncate(entry.Response, PreviewLength)
	view.Truncated = messageCut || responseCut
	return view
}
