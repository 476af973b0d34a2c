// Package chat implements the message exchange between a user and the AI service.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	"github.com/murmurchat/murmur/plugin/ai"
	"github.com/murmurchat/murmur/store/cache"
)

// Message is one turn of a transcript.
type Message = ai.Message

const (
	RoleUser      = ai.RoleUser
	RoleAssistant = ai.RoleAssistant
)

// Session is the in-memory state of one chat composer: its transcript, the
// thread new entries are filed under, and the guest allowance.
type Session struct {
	ID string

	mu                 sync.Mutex
	threadID           string
	transcript         []Message
	hasUsedOneTimeChat bool
	pending            bool
	// epoch changes on Reset so that a reply arriving afterwards is not
	// appended to the new transcript.
	epoch int
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID                 string    `json:"id"`
	ThreadID           string    `json:"threadId"`
	Transcript         []Message `json:"transcript"`
	HasUsedOneTimeChat bool      `json:"hasUsedOneTimeChat"`
	Pending            bool      `json:"pending"`
}

func newSession() *Session {
	return &Session{
		ID:         uuid.NewString(),
		threadID:   shortuuid.New(),
		transcript: []Message{},
	}
}

// Reset starts a new thread with an empty transcript. The guest allowance is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = shortuuid.New()
	s.transcript = []Message{}
	s.pending = false
	s.epoch++
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	transcript := make([]Message, len(s.transcript))
	copy(transcript, s.transcript)
	return Snapshot{
		ID:                 s.ID,
		ThreadID:           s.threadID,
		Transcript:         transcript,
		HasUsedOneTimeChat: s.hasUsedOneTimeChat,
		Pending:            s.pending,
	}
}

func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

func (s *Session) HasUsedOneTimeChat() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasUsedOneTimeChat
}

// Registry holds chat sessions by ID and forgets them after a period of inactivity.
type Registry struct {
	sessions *cache.Cache
	idleTTL  time.Duration
}

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 2 * time.Hour

func NewRegistry(idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		sessions: cache.New(cache.Config{
			DefaultTTL:      idleTTL,
			CleanupInterval: idleTTL / 4,
			MaxItems:        10000,
		}),
		idleTTL: idleTTL,
	}
}

// Get returns the session and refreshes its idle timer.
func (r *Registry) Get(ctx context.Context, id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	value, ok := r.sessions.Get(ctx, id)
	if !ok {
		return nil, false
	}
	sess := value.(*Session)
	r.sessions.Set(ctx, id, sess)
	return sess, true
}

// GetOrCreate returns the session for id, or a new one when id is unknown or expired.
func (r *Registry) GetOrCreate(ctx context.Context, id string) *Session {
	if sess, ok := r.Get(ctx, id); ok {
		return sess
	}
	sess := newSession()
	r.sessions.Set(ctx, sess.ID, sess)
	return sess
}

func (r *Registry) Size() int64 {
	return r.sessions.Size()
}

func (r *Registry) Close() error {
	return r.sessions.Close()
}
