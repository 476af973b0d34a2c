package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/murmurchat/murmur/plugin/ai"
	"github.com/murmurchat/murmur/store"
)

// ClearPolicy decides whether the client clears its input box after an exchange.
type ClearPolicy int

const (
	// ClearAlways clears the input whatever the outcome.
	ClearAlways ClearPolicy = iota
	// ClearOnSuccess keeps the input after a failed exchange.
	ClearOnSuccess
)

// DefaultHistoryTurns is how many prior transcript messages are sent as context.
const DefaultHistoryTurns = 6

// Recorder persists chat entries. *store.Store implements it.
type Recorder interface {
	CreateChatEntry(ctx context.Context, create *store.ChatEntry) (*store.ChatEntry, error)
}

// Result is the outcome of a successful exchange.
type Result struct {
	Reply Message
	// Entry is the persisted chat entry. It is nil for guests.
	Entry *store.ChatEntry
}

type Exchanger struct {
	gen          ai.Generator
	recorder     Recorder
	policy       ClearPolicy
	historyTurns int
}

func NewExchanger(gen ai.Generator, recorder Recorder, policy ClearPolicy, historyTurns int) *Exchanger {
	if historyTurns < 0 {
		historyTurns = DefaultHistoryTurns
	}
	return &Exchanger{
		gen:          gen,
		recorder:     recorder,
		policy:       policy,
		historyTurns: historyTurns,
	}
}

// Send sends text on behalf of user, which is nil for guests.
func (e *Exchanger) Send(ctx context.Context, sess *Session, user *store.User, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		exchangeOutcomes.WithLabelValues(outcomeInvalid).Inc()
		return nil, ErrEmptyMessage
	}

	sess.mu.Lock()
	if err := sess.admit(user); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	history := lastTurns(sess.transcript, e.historyTurns)
	sess.transcript = append(sess.transcript, Message{Role: RoleUser, Content: text})
	pending := sess.begin()
	sess.mu.Unlock()

	return e.complete(ctx, sess, user, pending, text, history)
}

// Retry regenerates the reply to the user message at index. Everything after
// index is dropped from the transcript before the new reply is appended.
func (e *Exchanger) Retry(ctx context.Context, sess *Session, user *store.User, index int) (*Result, error) {
	sess.mu.Lock()
	if err := sess.admit(user); err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	if index < 0 || index >= len(sess.transcript) || sess.transcript[index].Role != RoleUser {
		sess.mu.Unlock()
		exchangeOutcomes.WithLabelValues(outcomeInvalid).Inc()
		return nil, ErrInvalidIndex
	}
	text := sess.transcript[index].Content
	history := lastTurns(sess.transcript[:index], e.historyTurns)
	sess.transcript = sess.transcript[:index+1]
	pending := sess.begin()
	sess.mu.Unlock()

	return e.complete(ctx, sess, user, pending, text, history)
}

// ClearInput reports whether the client should clear its input after an
// exchange that ended with err.
func (e *Exchanger) ClearInput(err error) bool {
	if e.policy == ClearOnSuccess {
		return err == nil
	}
	return true
}

type inFlight struct {
	threadID string
	epoch    int
}

// admit must be called with s.mu held.
func (s *Session) admit(user *store.User) error {
	if user == nil && s.hasUsedOneTimeChat {
		exchangeOutcomes.WithLabelValues(outcomeRefused).Inc()
		return ErrAuthRequired
	}
	if s.pending {
		exchangeOutcomes.WithLabelValues(outcomeBusy).Inc()
		return ErrBusy
	}
	return nil
}

// begin must be called with s.mu held.
func (s *Session) begin() inFlight {
	s.pending = true
	return inFlight{threadID: s.threadID, epoch: s.epoch}
}

func (e *Exchanger) complete(ctx context.Context, sess *Session, user *store.User, pending inFlight, text string, history []Message) (*Result, error) {
	reply, err := e.gen.Generate(ctx, text, history)

	sess.mu.Lock()
	current := sess.epoch == pending.epoch
	if current {
		sess.pending = false
	}
	if err != nil {
		sess.mu.Unlock()
		slog.Error("failed to generate reply", slog.String("session", sess.ID), slog.Any("err", err))
		exchangeOutcomes.WithLabelValues(outcomeFailed).Inc()
		return nil, &ServiceError{Op: OpGenerate, Err: err}
	}
	result := &Result{Reply: Message{Role: RoleAssistant, Content: reply}}
	if current {
		sess.transcript = append(sess.transcript, result.Reply)
	}
	if user == nil {
		sess.hasUsedOneTimeChat = true
	}
	sess.mu.Unlock()

	if user == nil {
		exchangeOutcomes.WithLabelValues(outcomeGuest).Inc()
		return result, nil
	}

	entry, err := e.recorder.CreateChatEntry(ctx, &store.ChatEntry{
		UserID:   user.ID,
		ThreadID: pending.threadID,
		Message:  text,
		Response: reply,
	})
	if err != nil {
		slog.Error("failed to persist chat entry", slog.Int("user", int(user.ID)), slog.String("thread", pending.threadID), slog.Any("err", err))
		exchangeOutcomes.WithLabelValues(outcomeFailed).Inc()
		return result, &ServiceError{Op: OpPersist, Err: err}
	}
	result.Entry = entry
	exchangeOutcomes.WithLabelValues(outcomeSaved).Inc()
	return result, nil
}

func lastTurns(transcript []Message, n int) []Message {
	if n == 0 || len(transcript) == 0 {
		return nil
	}
	if len(transcript) > n {
		transcript = transcript[len(transcript)-n:]
	}
	out := make([]Message, len(transcript))
	copy(out, transcript)
	return out
}
