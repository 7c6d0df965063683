package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/naphat/mathflow/agent/contract"
)

// CoordinatorConfig bounds each source's result count and the whole gather.
type CoordinatorConfig struct {
	KGlobal       int           `envconfig:"K_GLOBAL" split_words:"true" default:"3"`
	KUser         int           `envconfig:"K_USER" split_words:"true" default:"3"`
	KMemory       int           `envconfig:"K_MEMORY" split_words:"true" default:"5"`
	GatherTimeout time.Duration `envconfig:"GATHER_TIMEOUT" split_words:"true" default:"3s"`
}

// Coordinator fuses global documents, per-user documents, and conversational
// memory into one ranked context. A failing source contributes nothing and is
// recorded; partial context is preferable to no context.
type Coordinator struct {
	global *DocStore
	users  *UserStores
	memory contractx.MemoryStore
	cfg    CoordinatorConfig
}

func NewCoordinator(global *DocStore, users *UserStores, memory contractx.MemoryStore, cfg CoordinatorConfig) *Coordinator {
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = 3 * time.Second
	}
	return &Coordinator{
		global: global,
		users:  users,
		memory: memory,
		cfg:    cfg,
	}
}

type sourceResult struct {
	source  contractx.ContextSource
	entries []contractx.ContextEntry
	err     error
}

func (c *Coordinator) Gather(ctx context.Context, sessionID, userID, query string) contractx.RetrievedContext {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GatherTimeout)
	defer cancel()

	results := make(chan sourceResult, 3)

	go func() {
		hits, err := c.global.Search(ctx, query, c.cfg.KGlobal)
		results <- sourceResult{source: contractx.SourceGlobalDoc, entries: docEntries(contractx.SourceGlobalDoc, hits), err: err}
	}()
	go func() {
		hits, err := c.memory.Recall(ctx, sessionID, query, c.cfg.KMemory)
		results <- sourceResult{source: contractx.SourceMemory, entries: memoryEntries(hits), err: err}
	}()
	go func() {
		hits, err := c.users.For(userID).Search(ctx, query, c.cfg.KUser)
		results <- sourceResult{source: contractx.SourceUserDoc, entries: docEntries(contractx.SourceUserDoc, hits), err: err}
	}()

	bySource := make(map[contractx.ContextSource][]contractx.ContextEntry, 3)
	var failed []string
	for i := 0; i < 3; i++ {
		select {
		case res := <-results:
			if res.err != nil {
				log.Warn().Err(res.err).Str("source", string(res.source)).Msg("retrieval source failed")
				failed = append(failed, fmt.Sprintf("%s: %v", res.source, res.err))
				continue
			}
			bySource[res.source] = res.entries
		case <-ctx.Done():
			// Whatever completed so far is the context; late sources are
			// counted as failed.
			for _, src := range []contractx.ContextSource{contractx.SourceGlobalDoc, contractx.SourceMemory, contractx.SourceUserDoc} {
				if _, ok := bySource[src]; !ok && !containsSource(failed, src) {
					failed = append(failed, fmt.Sprintf("%s: %v", src, ctx.Err()))
				}
			}
			return merge(bySource, failed)
		}
	}
	return merge(bySource, failed)
}

// merge concatenates per-source results in priority order (global documents,
// memory, user documents) preserving each source's internal ranking, then
// deduplicates by normalized text keeping the first occurrence. Durable
// reference material outranks ephemeral per-user notes when textually equal.
func merge(bySource map[contractx.ContextSource][]contractx.ContextEntry, failed []string) contractx.RetrievedContext {
	seen := make(map[string]struct{})
	var entries []contractx.ContextEntry
	for _, src := range []contractx.ContextSource{contractx.SourceGlobalDoc, contractx.SourceMemory, contractx.SourceUserDoc} {
		for _, e := range bySource[src] {
			key := normalizeText(e.Text)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, e)
		}
	}
	return contractx.RetrievedContext{Entries: entries, FailedSources: failed}
}

func docEntries(src contractx.ContextSource, hits []contractx.ScoredDocument) []contractx.ContextEntry {
	entries := make([]contractx.ContextEntry, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, contractx.ContextEntry{Source: src, Text: h.Document.Text, Score: h.Score})
	}
	return entries
}

func memoryEntries(hits []contractx.ScoredMemory) []contractx.ContextEntry {
	entries := make([]contractx.ContextEntry, 0, len(hits))
	for _, h := range hits {
		entries = append(entries, contractx.ContextEntry{Source: contractx.SourceMemory, Text: h.Record.Content, Score: h.Score})
	}
	return entries
}

func containsSource(failed []string, src contractx.ContextSource) bool {
	prefix := string(src) + ":"
	for _, f := range failed {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

// FormatContext renders a retrieved context as a prompt snippet with
// upper-cased source tags. Empty context renders as an empty string.
func FormatContext(rc contractx.RetrievedContext) string {
	if rc.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant reference material:\n")
	for i, e := range rc.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(e.Source)), e.Text)
	}
	return b.String()
}
