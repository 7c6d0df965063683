package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/naphat/mathflow/agent/contract"
)

// memoryRecordRow is the bun model for the append-only memory_records table.
type memoryRecordRow struct {
	bun.BaseModel `bun:"table:memory_records"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SessionID string    `bun:"session_id,notnull"`
	TurnID    string    `bun:"turn_id,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content,notnull"`
	Embedding []float64 `bun:"embedding,array"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// PostgresMemoryStore persists memory records in Postgres via bun. It is a
// drop-in replacement for ConversationStore; scoring happens in-process over
// the session's records, so the same determinism guarantees hold.
type PostgresMemoryStore struct {
	db    *bun.DB
	embed contractx.EmbedFunc
}

func NewPostgresMemoryStore(cfg PostgresConfig, embed contractx.EmbedFunc) (*PostgresMemoryStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contractx.ErrValidation)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	))
	db := bun.NewDB(sqldb, pgdialect.New())

	return &PostgresMemoryStore{db: db, embed: embed}, nil
}

// Init creates the memory_records table when missing. Called once at startup.
func (ps *PostgresMemoryStore) Init(ctx context.Context) error {
	_, err := ps.db.NewCreateTable().
		Model((*memoryRecordRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create memory_records table: %w", err)
	}
	return nil
}

func (ps *PostgresMemoryStore) Close() error {
	return ps.db.Close()
}

func (ps *PostgresMemoryStore) Append(ctx context.Context, rec contractx.MemoryRecord) error {
	if strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("%w: memory record session id is empty", contractx.ErrValidation)
	}

	if len(rec.Embedding) == 0 && ps.embed != nil {
		if emb, err := ps.embed(ctx, rec.Content); err == nil {
			rec.Embedding = emb
		}
	}

	row := &memoryRecordRow{
		SessionID: rec.SessionID,
		TurnID:    rec.TurnID,
		Role:      string(rec.Role),
		Content:   rec.Content,
		Embedding: rec.Embedding,
		CreatedAt: rec.Timestamp.UTC(),
	}
	if _, err := ps.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("%w: insert memory record: %v", contractx.ErrStorageExhausted, err)
	}
	return nil
}

func (ps *PostgresMemoryStore) Recall(ctx context.Context, sessionID, query string, k int) ([]contractx.ScoredMemory, error) {
	if k <= 0 {
		return nil, nil
	}

	var rows []memoryRecordRow
	err := ps.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select memory records: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Reuse the in-memory store's scoring so both backends rank identically.
	cs := NewConversationStore(WithMemoryEmbedder(ps.embed), WithCapacity(len(rows)+1))
	for _, row := range rows {
		rec := contractx.MemoryRecord{
			SessionID: row.SessionID,
			TurnID:    row.TurnID,
			Role:      contractx.MemoryRole(row.Role),
			Content:   row.Content,
			Timestamp: row.CreatedAt,
			Embedding: row.Embedding,
		}
		if err := cs.Append(ctx, rec); err != nil {
			return nil, err
		}
	}
	return cs.Recall(ctx, sessionID, query, k)
}
