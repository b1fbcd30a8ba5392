package game

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound = errors.New("room-not-found")
	ErrUnknownKind  = errors.New("unknown-game")
	ErrRoomClosed   = errors.New("room-closed")
)

// Client-facing error codes.
const (
	CodeNotFound       = "not-found"
	CodeUnauthorized   = "unauthorized"
	CodeInvalidPhase   = "invalid-phase"
	CodeInvalidPayload = "invalid-payload"
	CodeUnavailable    = "unavailable"
)

// CommandError rejects a command. It is only ever sent to the sender.
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string {
	return e.Code + ": " + e.Message
}

func NotFound(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func InvalidPhase(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeInvalidPhase, Message: fmt.Sprintf(format, args...)}
}

func InvalidPayload(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeInvalidPayload, Message: fmt.Sprintf(format, args...)}
}

func Unavailable(format string, args ...any) *CommandError {
	return &CommandError{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the client-facing code of err, or "" for internal errors.
func ErrorCode(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
