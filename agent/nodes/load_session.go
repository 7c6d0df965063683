package nodes

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/naphat/mathflow/agent/contract"
	statex "github.com/naphat/mathflow/agent/state"
)

// LoadSession resolves the session (creating it on first contact) and opens
// the turn. A closed session is a caller error, not a degraded turn.
func LoadSession(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	s, err := store.Load(ctx, in.SessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		s = statex.NewSession(in.SessionID, in.UserID, in.Now)
		if err := store.Save(ctx, s); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if s.Closed {
		return nil, fmt.Errorf("%w: session=%s", contractx.ErrSessionClosed, in.SessionID)
	}
	if in.UserID == "" {
		in.UserID = s.UserID
	}

	turn, err := s.BeginTurn(in.Question, in.Now)
	if err != nil {
		return nil, err
	}

	in.Session = s
	in.Turn = turn
	return in, nil
}
