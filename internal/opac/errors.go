package opac

import (
	"errors"
	"fmt"

	"opacbridge/internal/i18n"
)

type ErrorKind int

const (
	// KindValidation is an empty or insufficient query.
	KindValidation ErrorKind = iota + 1
	// KindAuth means the backend rejected the credentials or reported an
	// account level alert.
	KindAuth
	// KindInternalState is an operation invoked out of sequence.
	KindInternalState
	KindNotFound
	// KindUnsupported is a capability gap, not a failed execution.
	KindUnsupported
	// KindBackendProtocol means the backend answered in a shape that could
	// not be interpreted.
	KindBackendProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindInternalState:
		return "internal state"
	case KindNotFound:
		return "not found"
	case KindUnsupported:
		return "unsupported"
	case KindBackendProtocol:
		return "backend protocol"
	}
	return "unknown"
}

// Error is the error type returned by adapters. Key selects the display text,
// Message carries the backend's own text when there is one.
type Error struct {
	Kind    ErrorKind
	Key     i18n.Key
	Message string
	Err     error
}

var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrAuth            = &Error{Kind: KindAuth}
	ErrInternalState   = &Error{Kind: KindInternalState}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUnsupported     = &Error{Kind: KindUnsupported}
	ErrBackendProtocol = &Error{Kind: KindBackendProtocol}
)

func NewError(kind ErrorKind, key i18n.Key, message string) *Error {
	return &Error{Kind: kind, Key: key, Message: message}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Key != "" {
		msg += ": " + string(e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on the kind so errors.Is(err, ErrAuth) holds for every auth error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Display resolves the text shown to the user.
func (e *Error) Display(p i18n.Provider) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Key != "" {
		return p.Get(e.Key)
	}
	return p.Get(i18n.KeyError)
}

func NoCriteriaError() *Error {
	return NewError(KindValidation, i18n.KeyNoCriteria, "")
}

func CombinationNotSupportedError() *Error {
	return NewError(KindValidation, i18n.KeyCombinationNotSupported, "")
}

func AuthError(message string) *Error {
	return NewError(KindAuth, i18n.KeyLoginFailed, message)
}

func InternalStateError(format string, args ...any) *Error {
	return NewError(KindInternalState, i18n.KeyInternalError, fmt.Sprintf(format, args...))
}

func NotFoundError(id string) *Error {
	return NewError(KindNotFound, i18n.KeyNotFound, "'"+id+"' does not resolve")
}

func UnsupportedError(operation string) *Error {
	return NewError(KindUnsupported, i18n.KeyUnsupported, operation)
}

// ProtocolError wraps a failure to interpret backend content.
func ProtocolError(err error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindBackendProtocol,
		Key:     i18n.KeyUnexpectedBackendContent,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// KindOf returns the kind of the Error in err's chain, 0 if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
