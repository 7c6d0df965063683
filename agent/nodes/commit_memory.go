package nodes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/naphat/mathflow/agent/contract"
)

// CommitMemory appends the question and the final answer as memory records.
// A failed append (storage exhaustion included) never fails the turn; it is
// logged in the turn's failure log and the turn proceeds without that write.
func CommitMemory(ctx context.Context, in *GraphState, memory contractx.MemoryStore) (*GraphState, error) {
	if in == nil || in.Turn == nil {
		return nil, fmt.Errorf("%w: graph turn is nil", contractx.ErrValidation)
	}

	records := []contractx.MemoryRecord{
		{
			SessionID: in.SessionID,
			TurnID:    in.Turn.ID,
			Role:      contractx.RoleUser,
			Content:   in.Question,
			Timestamp: in.Now,
		},
		{
			SessionID: in.SessionID,
			TurnID:    in.Turn.ID,
			Role:      contractx.RoleAgent,
			Content:   in.Answer,
			Timestamp: in.Now,
		},
	}

	// Memory commits run on a background-derived context so a cancelled turn
	// still records what happened; committed records are never rolled back.
	commitCtx := context.WithoutCancel(ctx)
	for _, rec := range records {
		if err := memory.Append(commitCtx, rec); err != nil {
			log.Warn().Err(err).Str("turn_id", in.Turn.ID).Str("role", string(rec.Role)).Msg("memory append skipped")
			in.Turn.FailureLog = append(in.Turn.FailureLog, fmt.Sprintf("memory write (%s) skipped: %v", rec.Role, err))
		}
	}
	return in, nil
}
