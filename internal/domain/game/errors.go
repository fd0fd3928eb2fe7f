package game

import "errors"

// Kind is the machine-readable failure code surfaced to clients. Callers
// branch on the kind, never on message text.
type Kind string

const (
	KindRoomNotFound        Kind = "ROOM_NOT_FOUND"
	KindPlayerNotFound      Kind = "PLAYER_NOT_FOUND"
	KindPlayerCountLow      Kind = "PLAYER_COUNT_LOW"
	KindGameStarted         Kind = "GAME_STARTED"
	KindGameNotStarted      Kind = "GAME_NOT_STARTED"
	KindRoomFull            Kind = "ROOM_FULL"
	KindPermissionDenied    Kind = "PERMISSION_DENIED"
	KindDisconnected        Kind = "DISCONNECTED"
	KindInternalServerError Kind = "INTERNAL_SERVER_ERROR"
)

// Error is a domain failure tagged with a Kind, optionally wrapping the
// underlying cause.
type Error struct {
	Kind  Kind
	cause error
}

func NewError(kind Kind) *Error {
	return &Error{Kind: kind}
}

func WrapError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two domain errors by kind so errors.Is works against the
// sentinel values below regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrRoomNotFound        = NewError(KindRoomNotFound)
	ErrPlayerNotFound      = NewError(KindPlayerNotFound)
	ErrPlayerCountLow      = NewError(KindPlayerCountLow)
	ErrGameStarted         = NewError(KindGameStarted)
	ErrGameNotStarted      = NewError(KindGameNotStarted)
	ErrRoomFull            = NewError(KindRoomFull)
	ErrPermissionDenied    = NewError(KindPermissionDenied)
	ErrDisconnected        = NewError(KindDisconnected)
	ErrInternalServerError = NewError(KindInternalServerError)
)

// KindOf extracts the failure kind from err, defaulting to
// INTERNAL_SERVER_ERROR for anything that is not a domain error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternalServerError
}
