package chat

import (
	"github.com/pkg/errors"
)

var (
	ErrEmptyMessage = errors.New("message must not be empty")
	ErrAuthRequired = errors.New("sign in to keep chatting")
	ErrBusy         = errors.New("a message is already being answered")
	ErrInvalidIndex = errors.New("index does not address a user message")
)

const (
	OpGenerate = "generate"
	OpPersist  = "persist"
)

// ServiceError is a failure of the AI service or of persistence. Progress made
// before the failure is kept in the transcript.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
