package core

import "errors"

// Predefined errors returned by the engine.
var (
	// ErrUnsupportedDialect is returned when no dialect is registered under a name.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrNilProvider is returned when a nil provider is compiled.
	ErrNilProvider = errors.New("nil provider")
	// ErrNilQuerier is returned when an operation needing a connection gets none.
	ErrNilQuerier = errors.New("nil querier")
)

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
