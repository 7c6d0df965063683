package nodes

import (
	"context"
	"fmt"

	contractx "github.com/naphat/mathflow/agent/contract"
)

// GatherContext fuses document and memory retrieval for the turn. Gather
// never fails; a degraded context arrives with its failed sources listed.
func GatherContext(ctx context.Context, in *GraphState, retriever contractx.Retriever) (*GraphState, error) {
	if in == nil || in.Turn == nil {
		return nil, fmt.Errorf("%w: graph turn is nil", contractx.ErrValidation)
	}
	in.Context = retriever.Gather(ctx, in.SessionID, in.UserID, in.Question)
	return in, nil
}
