package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	contractx "github.com/naphat/mathflow/agent/contract"
)

const defaultMemoryCapacity = 100_000

// ConversationStore is the in-memory MemoryStore: append-only conversational
// records per session, with the same scoring and tie-break discipline as the
// document stores. Appends from different sessions are safe concurrently;
// per-session order is preserved as written.
type ConversationStore struct {
	embed    contractx.EmbedFunc
	capacity int

	mu        sync.RWMutex
	bySession map[string][]contractx.MemoryRecord
	total     int
}

type ConversationStoreOption func(*ConversationStore)

func WithMemoryEmbedder(embed contractx.EmbedFunc) ConversationStoreOption {
	return func(cs *ConversationStore) {
		cs.embed = embed
	}
}

// WithCapacity bounds total stored records; appends past the bound fail with
// ErrStorageExhausted. Eviction is an external concern.
func WithCapacity(n int) ConversationStoreOption {
	return func(cs *ConversationStore) {
		if n > 0 {
			cs.capacity = n
		}
	}
}

func NewConversationStore(opts ...ConversationStoreOption) *ConversationStore {
	cs := &ConversationStore{
		capacity:  defaultMemoryCapacity,
		bySession: make(map[string][]contractx.MemoryRecord),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cs)
		}
	}
	return cs
}

func (cs *ConversationStore) Append(ctx context.Context, rec contractx.MemoryRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("%w: memory record session id is empty", contractx.ErrValidation)
	}

	if len(rec.Embedding) == 0 && cs.embed != nil {
		emb, err := cs.embed(ctx, rec.Content)
		if err != nil {
			log.Debug().Err(err).Msg("embed memory record failed, storing without vector")
		} else {
			rec.Embedding = emb
		}
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.total >= cs.capacity {
		return fmt.Errorf("%w: capacity=%d", contractx.ErrStorageExhausted, cs.capacity)
	}
	cs.bySession[rec.SessionID] = append(cs.bySession[rec.SessionID], rec)
	cs.total++
	return nil
}

// Recall returns up to k records for the session by descending score, ties
// broken by ascending turn id then append order. An unknown session yields an
// empty result, never an error.
func (cs *ConversationStore) Recall(ctx context.Context, sessionID, query string, k int) ([]contractx.ScoredMemory, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var queryEmb []float64
	if cs.embed != nil {
		emb, err := cs.embed(ctx, query)
		if err == nil {
			queryEmb = emb
		}
	}

	cs.mu.RLock()
	records := cs.bySession[sessionID]
	hits := make([]scoredAt, 0, len(records))
	for i, rec := range records {
		s := score(query, queryEmb, rec.Content, rec.Embedding)
		if s <= 0 {
			continue
		}
		hits = append(hits, scoredAt{mem: contractx.ScoredMemory{Record: rec, Score: s}, order: i})
	}
	cs.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].mem.Score != hits[j].mem.Score {
			return hits[i].mem.Score > hits[j].mem.Score
		}
		if hits[i].mem.Record.TurnID != hits[j].mem.Record.TurnID {
			return hits[i].mem.Record.TurnID < hits[j].mem.Record.TurnID
		}
		return hits[i].order < hits[j].order
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]contractx.ScoredMemory, len(hits))
	for i, h := range hits {
		out[i] = h.mem
	}
	return out, nil
}

type scoredAt struct {
	mem   contractx.ScoredMemory
	order int
}
