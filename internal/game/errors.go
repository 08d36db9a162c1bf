package game

import "fmt"

// ErrKind classifies the recoverable command errors. Every kind is reported
// only to the originating caller; none of them terminates a room.
type ErrKind int

const (
	NotFound ErrKind = iota
	Unauthorized
	PreconditionFailed
	InvalidActor
)

// Error is a rejected command. The transition it belongs to has not been
// applied; callers can retry once the precondition holds.
type Error struct {
	Kind    ErrKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func notFound(format string, args ...interface{}) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func unauthorized(format string, args ...interface{}) *Error {
	return &Error{Kind: Unauthorized, Message: fmt.Sprintf(format, args...)}
}

func preconditionFailed(format string, args ...interface{}) *Error {
	return &Error{Kind: PreconditionFailed, Message: fmt.Sprintf(format, args...)}
}

func invalidActor(format string, args ...interface{}) *Error {
	return &Error{Kind: InvalidActor, Message: fmt.Sprintf(format, args...)}
}

// RoomNotFound is the store-miss error shared with the gateway, which looks
// rooms up before the engine ever sees a command.
func RoomNotFound(roomID string) *Error {
	return notFound("room %s does not exist", roomID)
}
