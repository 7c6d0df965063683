package contract

import "errors"

// Tool boundary.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrToolTimeout      = errors.New("tool execution timed out")
	ErrToolExecution    = errors.New("tool execution failed")
)

// Storage boundary.
var (
	ErrDuplicateDocument = errors.New("duplicate document id")
	ErrStorageExhausted  = errors.New("memory storage exhausted")
)

// Orchestration.
var (
	ErrRetrievalPartial = errors.New("retrieval source unavailable")
	ErrPlannerAborted   = errors.New("planner aborted")
	ErrSessionClosed    = errors.New("session closed")
	ErrValidation       = errors.New("validation failed")
)
