package retrieval

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/naphat/mathflow/agent/contract"
)

func addDoc(t *testing.T, ds *DocStore, id, text string) {
	t.Helper()
	if err := ds.Add(context.Background(), contractx.Document{ID: id, Text: text}); err != nil {
		t.Fatalf("Add(%s) error = %v", id, err)
	}
}

func TestDocStoreAddDuplicate(t *testing.T) {
	t.Parallel()

	ds := NewDocStore("global")
	addDoc(t, ds, "d1", "the power rule")

	err := ds.Add(context.Background(), contractx.Document{ID: "d1", Text: "something else"})
	if !errors.Is(err, contractx.ErrDuplicateDocument) {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}

	err = ds.Add(context.Background(), contractx.Document{ID: "   ", Text: "no id"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank id, got %v", err)
	}
}

func TestDocStoreSearchOrdering(t *testing.T) {
	t.Parallel()

	ds := NewDocStore("global")
	addDoc(t, ds, "d2", "alpha twice over")
	addDoc(t, ds, "d1", "alpha once")
	addDoc(t, ds, "d3", "nothing relevant here")

	hits, err := ds.Search(context.Background(), "alpha", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// both are exact substring hits; the tie breaks on ascending id
	if hits[0].Document.ID != "d1" || hits[1].Document.ID != "d2" {
		t.Fatalf("unexpected order: %s, %s", hits[0].Document.ID, hits[1].Document.ID)
	}
}

func TestDocStoreSearchRanksSubstringAboveOverlap(t *testing.T) {
	t.Parallel()

	ds := NewDocStore("global")
	addDoc(t, ds, "exact", "the chain rule for derivatives")
	addDoc(t, ds, "partial", "the product rule")

	hits, err := ds.Search(context.Background(), "chain rule", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Document.ID != "exact" {
		t.Fatalf("expected substring match first, got %s", hits[0].Document.ID)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("expected strict ranking, got %f vs %f", hits[0].Score, hits[1].Score)
	}
}

func TestDocStoreSearchCapsAtK(t *testing.T) {
	t.Parallel()

	ds := NewDocStore("global")
	addDoc(t, ds, "d1", "alpha")
	addDoc(t, ds, "d2", "alpha")
	addDoc(t, ds, "d3", "alpha")

	hits, err := ds.Search(context.Background(), "alpha", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected k=2 hits, got %d", len(hits))
	}

	hits, err = ds.Search(context.Background(), "alpha", 0)
	if err != nil || hits != nil {
		t.Fatalf("expected empty result for k=0, got %v, %v", hits, err)
	}
}

func TestDocStoreEmbedderUsedAtIngestion(t *testing.T) {
	t.Parallel()

	embeds := 0
	embed := func(ctx context.Context, text string) ([]float64, error) {
		embeds++
		if text == "close" {
			return []float64{1, 0.9}, nil
		}
		return []float64{1, 0}, nil
	}

	ds := NewDocStore("global", WithEmbedder(embed))
	addDoc(t, ds, "near", "close")
	addDoc(t, ds, "far", "orthogonal")
	if embeds != 2 {
		t.Fatalf("expected 2 ingestion embeds, got %d", embeds)
	}

	hits, err := ds.Search(context.Background(), "close", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) == 0 || hits[0].Document.ID != "near" {
		t.Fatalf("expected cosine ranking to favor 'near', got %+v", hits)
	}
}

func TestDocStoreEmbedFailureFallsBackToLexical(t *testing.T) {
	t.Parallel()

	embed := func(ctx context.Context, text string) ([]float64, error) {
		return nil, errors.New("upstream down")
	}
	ds := NewDocStore("global", WithEmbedder(embed))
	addDoc(t, ds, "d1", "alpha beta")

	hits, err := ds.Search(context.Background(), "alpha", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 || hits[0].Score != 1.0 {
		t.Fatalf("expected lexical fallback hit, got %+v", hits)
	}
}

func TestUserStoresIsolatePerUser(t *testing.T) {
	t.Parallel()

	us := NewUserStores(nil)
	a := us.For("alice")
	b := us.For("bob")

	addDoc(t, a, "d1", "alice private note")
	hits, err := b.Search(context.Background(), "alice private note", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no cross-user hits, got %d", len(hits))
	}

	if got := us.For("alice"); got != a {
		t.Fatal("expected the same store instance per user")
	}
	if a.Corpus() != "user:alice" {
		t.Fatalf("unexpected corpus tag: %s", a.Corpus())
	}
}
