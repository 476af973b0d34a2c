package vectorstore

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "chat_entries"

// SearchResult is a single semantic-search hit.
type SearchResult struct {
	EntryID  int32
	ThreadID string
	Content  string
	Score    float32
}

// Store wraps chromem-go with a persistent collection of chat entries.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
}

// NewEmbeddingFunc returns an embedding function for an OpenAI-compatible endpoint.
func NewEmbeddingFunc(baseURL, apiKey, model string) chromem.EmbeddingFunc {
	return chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, nil)
}

// New creates (or opens) the persistent vector store at dataDir/vectorstore/.
func New(dataDir string, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(dataDir, "vectorstore")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create vectorstore dir")
	}
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open vectorstore")
	}
	return &Store{db: db, embedFn: embedFunc}, nil
}

func (s *Store) collection() (*chromem.Collection, error) {
	col := s.db.GetCollection(collectionName, s.embedFn)
	if col != nil {
		return col, nil
	}
	col, err := s.db.CreateCollection(collectionName, nil, s.embedFn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create vector collection")
	}
	return col, nil
}

// IndexEntry indexes (or re-indexes) a chat entry's message and response.
func (s *Store) IndexEntry(ctx context.Context, id int32, threadID, message, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection()
	if err != nil {
		return err
	}
	return col.AddDocument(ctx, chromem.Document{
		ID:      strconv.Itoa(int(id)),
		Content: message + "\n\n" + response,
		Metadata: map[string]string{
			"thread_id": threadID,
		},
	})
}

// RemoveEntry drops a chat entry from the index.
func (s *Store) RemoveEntry(ctx context.Context, id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, err := s.collection()
	if err != nil {
		return err
	}
	return col.Delete(ctx, nil, nil, strconv.Itoa(int(id)))
}

// Reset drops every indexed entry.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(collectionName); err != nil {
		return errors.Wrap(err, "failed to reset vector collection")
	}
	return nil
}

// Count returns the number of indexed entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.db.GetCollection(collectionName, s.embedFn)
	if col == nil {
		return 0
	}
	return col.Count()
}

// Search returns the top-k entries most semantically similar to the query.
func (s *Store) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collectionName, s.embedFn)
	if col == nil {
		return nil, nil
	}
	count := col.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var results []chromem.Result
	var err error
	// Query can still reject k right after a concurrent delete; step down until it fits.
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = col.Query(ctx, query, attemptK, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query vectorstore")
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		id, err := strconv.Atoi(r.ID)
		if err != nil {
			slog.Warn("skipping vector document with a foreign id", slog.String("id", r.ID))
			continue
		}
		out = append(out, SearchResult{
			EntryID:  int32(id),
			ThreadID: r.Metadata["thread_id"],
			Content:  r.Content,
			Score:    r.Similarity,
		})
	}
	return out, nil
}
