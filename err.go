package docmigrate

import (
	"errors"
	"fmt"
)

// Exit codes returned by the docmigrate command.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitRuntime = 2
)

// Sentinels matched by RemoteError.Is.
var (
	ErrConflict     = errors.New("document already exists")
	ErrNotFound     = errors.New("document not found")
	ErrValidation   = errors.New("document rejected by remote validation")
	ErrUnauthorized = errors.New("request not authorized")
)

// UsageError reports missing or invalid command input.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// Usagef builds a UsageError from a format string.
func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// RemoteKind classifies a RemoteError.
type RemoteKind string

const (
	KindTransport    RemoteKind = "transport"
	KindUnauthorized RemoteKind = "unauthorized"
	KindNotFound     RemoteKind = "not_found"
	KindConflict     RemoteKind = "conflict"
	KindValidation   RemoteKind = "validation"
	KindServer       RemoteKind = "server"
	KindUnexpected   RemoteKind = "unexpected"
)

// RemoteError is returned by the remote collection client for every failed call.
type RemoteError struct {
	// Op is the client operation: "list", "create" or "delete".
	Op string
	// ID is the document the operation targeted, if any.
	ID     string
	Status int
	Kind   RemoteKind
	// Type is the error type reported by the server, e.g. "document_already_exists".
	Type    string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	target := e.Op
	if e.ID != "" {
		target = fmt.Sprintf("%s %q", e.Op, e.ID)
	}
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("remote %s: %v", target, e.Err)
	case e.Message != "":
		return fmt.Sprintf("remote %s: %s (status %d, %s)", target, e.Message, e.Status, e.Kind)
	default:
		return fmt.Sprintf("remote %s: status %d (%s)", target, e.Status, e.Kind)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	}
	return false
}

// DecodeError reports a CSV row that could not be turned into a record.
type DecodeError struct {
	// Row is the 1-based data row, not counting the header.
	Row int
	// Line is the line in the input where the row starts.
	Line  int
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	var loc string
	switch {
	case e.Row == 0 && e.Line == 0:
		return fmt.Sprintf("decode: %v", e.Err)
	case e.Row == 0:
		loc = fmt.Sprintf("line %d", e.Line)
	case e.Line > 0:
		loc = fmt.Sprintf("row %d (line %d)", e.Row, e.Line)
	default:
		loc = fmt.Sprintf("row %d", e.Row)
	}
	if e.Field != "" {
		return fmt.Sprintf("decode %s, field %s: %v", loc, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", loc, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IOError reports a local file failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by a pipeline to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitRuntime
}
