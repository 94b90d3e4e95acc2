package domain

import "errors"

// Error kinds. Every domain error wraps exactly one of these so callers can
// branch with errors.Is without knowing the specific sentinel.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
)

// Error is a domain error tagged with its kind
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Domain errors
var (
	ErrGameNotFound    = newError(ErrNotFound, "game not found")
	ErrPlayerNotFound  = newError(ErrNotFound, "player not found")
	ErrCountryNotFound = newError(ErrNotFound, "country not found")
	ErrIssueNotFound   = newError(ErrNotFound, "issue not found")
	ErrOptionNotFound  = newError(ErrNotFound, "option not found for current issue")

	ErrUserRequired   = newError(ErrForbidden, "user identity is required")
	ErrNotHost        = newError(ErrForbidden, "only host can perform this action")
	ErrNotParticipant = newError(ErrForbidden, "not a participant of this game")

	ErrGameNotInLobby  = newError(ErrInvalidState, "game is not in lobby")
	ErrGameNotActive   = newError(ErrInvalidState, "game is not active")
	ErrNoPlayers       = newError(ErrInvalidState, "no players have joined")
	ErrPlayersNotReady = newError(ErrInvalidState, "not all players are ready")
	ErrNoIssues        = newError(ErrInvalidState, "catalog has no issues")
	ErrNoCurrentIssue  = newError(ErrInvalidState, "no issue for this round")
	ErrNotAllVoted     = newError(ErrInvalidState, "not all players have voted")
	ErrCannotReset     = newError(ErrInvalidState, "game cannot be reset from this status")

	ErrCountryTaken  = newError(ErrConflict, "country already claimed")
	ErrAlreadySeated = newError(ErrConflict, "user already has a country in this game")
	ErrCodeTaken     = newError(ErrConflict, "game code already in use")
)

// Error codes shared by the transports
const (
	CodeNotFound      = "NOT_FOUND"
	CodeForbidden     = "FORBIDDEN"
	CodeInvalidState  = "INVALID_STATE"
	CodeConflict      = "CONFLICT"
	CodeInternalError = "INTERNAL_ERROR"
)

// ErrorCode maps an error to its transport code
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeInternalError
	}
}
