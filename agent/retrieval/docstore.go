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

// DocStore is an in-memory document corpus with pluggable similarity
// scoring. Documents are immutable once added; re-adding an id fails.
type DocStore struct {
	corpus string
	embed  contractx.EmbedFunc

	mu   sync.RWMutex
	docs map[string]contractx.Document
}

type DocStoreOption func(*DocStore)

func WithEmbedder(embed contractx.EmbedFunc) DocStoreOption {
	return func(ds *DocStore) {
		ds.embed = embed
	}
}

func NewDocStore(corpus string, opts ...DocStoreOption) *DocStore {
	ds := &DocStore{
		corpus: corpus,
		docs:   make(map[string]contractx.Document),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ds)
		}
	}
	return ds
}

func (ds *DocStore) Corpus() string {
	return ds.corpus
}

// Add inserts a document. The embedding is computed at ingestion time when an
// embedder is configured and the document does not carry one; an embedding
// failure is non-fatal and leaves the document on lexical scoring.
func (ds *DocStore) Add(ctx context.Context, doc contractx.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return fmt.Errorf("%w: document id is empty", contractx.ErrValidation)
	}
	if doc.Corpus == "" {
		doc.Corpus = ds.corpus
	}

	if len(doc.Embedding) == 0 && ds.embed != nil {
		emb, err := ds.embed(ctx, doc.Text)
		if err != nil {
			log.Warn().Err(err).Str("doc_id", doc.ID).Msg("embed document failed, falling back to lexical scoring")
		} else {
			doc.Embedding = emb
		}
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()
	if _, exists := ds.docs[doc.ID]; exists {
		return fmt.Errorf("%w: %s", contractx.ErrDuplicateDocument, doc.ID)
	}
	ds.docs[doc.ID] = doc
	return nil
}

// Search returns at most k documents by descending score, ties broken by
// ascending document id. Zero-score candidates are dropped.
func (ds *DocStore) Search(ctx context.Context, query string, k int) ([]contractx.ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var queryEmb []float64
	if ds.embed != nil {
		emb, err := ds.embed(ctx, query)
		if err != nil {
			log.Debug().Err(err).Msg("embed query failed, using lexical scoring")
		} else {
			queryEmb = emb
		}
	}

	ds.mu.RLock()
	hits := make([]contractx.ScoredDocument, 0, len(ds.docs))
	for _, doc := range ds.docs {
		s := score(query, queryEmb, doc.Text, doc.Embedding)
		if s <= 0 {
			continue
		}
		hits = append(hits, contractx.ScoredDocument{Document: doc, Score: s})
	}
	ds.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// UserStores lazily creates one DocStore per user, sharing the embedder.
type UserStores struct {
	embed contractx.EmbedFunc

	mu     sync.Mutex
	stores map[string]*DocStore
}

func NewUserStores(embed contractx.EmbedFunc) *UserStores {
	return &UserStores{
		embed:  embed,
		stores: make(map[string]*DocStore),
	}
}

func (us *UserStores) For(userID string) *DocStore {
	us.mu.Lock()
	defer us.mu.Unlock()
	ds, ok := us.stores[userID]
	if !ok {
		ds = NewDocStore("user:"+userID, WithEmbedder(us.embed))
		us.stores[userID] = ds
	}
	return ds
}
