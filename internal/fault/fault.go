// Package fault classifies the expected failures of graph mutation.
//
// Every error that a caller may reasonably handle (an entity that is not
// there, a command replayed out of sequence, a duplicate id) carries a
// Kind. Callers branch on the kind with errors.Is against the package
// sentinels or with KindOf, never on message text. Panics are reserved for
// programmer errors such as a nil store.
package fault

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind is the category of an expected failure.
type Kind int

const (
	// KindInternal is any failure that does not belong to a known category.
	KindInternal Kind = iota
	// KindNotFound means the target entity was absent at execute time.
	KindNotFound
	// KindIllegalState means an operation was invoked out of sequence, e.g. a
	// command executed twice or a terminal transaction mutated.
	KindIllegalState
	// KindAlreadyExists means an insert collided with an existing id.
	KindAlreadyExists
	// KindInvalid means the request itself is malformed.
	KindInvalid
	// KindLockTimeout is reserved for callers that layer bounded waits over
	// the lock manager. Nothing in this module returns it.
	KindLockTimeout
	// KindRollbackFailure means a compensating action failed. It is logged
	// and recorded but never returned in place of the original error.
	KindRollbackFailure
)

var kindNames = map[Kind]string{
	KindInternal:        "internal",
	KindNotFound:        "not_found",
	KindIllegalState:    "illegal_state",
	KindAlreadyExists:   "already_exists",
	KindInvalid:         "invalid",
	KindLockTimeout:     "lock_timeout",
	KindRollbackFailure: "rollback_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels, one per kind. An *Error matches the sentinel of its kind.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrIllegalState    = errors.New("illegal state")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalid         = errors.New("invalid request")
	ErrLockTimeout     = errors.New("lock wait timed out")
	ErrRollbackFailure = errors.New("rollback failed")
)

var sentinels = map[Kind]error{
	KindNotFound:        ErrNotFound,
	KindIllegalState:    ErrIllegalState,
	KindAlreadyExists:   ErrAlreadyExists,
	KindInvalid:         ErrInvalid,
	KindLockTimeout:     ErrLockTimeout,
	KindRollbackFailure: ErrRollbackFailure,
}

// Error is a classified failure with the operation and entity it concerns.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "AddNode.Execute".
	Op string
	// ID is the entity the failure is about. uuid.Nil when not applicable.
	ID uuid.UUID
	// Msg is a human-readable detail.
	Msg string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		if s, ok := sentinels[e.Kind]; ok {
			msg = s.Error()
		} else {
			msg = e.Kind.String()
		}
	}
	if e.ID != uuid.Nil {
		msg = fmt.Sprintf("%s (%s)", msg, e.ID)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// New builds a classified error.
func New(kind Kind, op string, id uuid.UUID, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, op string, id uuid.UUID, cause error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: cause}
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(op string, id uuid.UUID, what string) *Error {
	return &Error{Kind: KindNotFound, Op: op, ID: id, Msg: what + " not found"}
}

// IllegalState is shorthand for New(KindIllegalState, ...).
func IllegalState(op string, id uuid.UUID, format string, args ...any) *Error {
	return New(KindIllegalState, op, id, format, args...)
}

// KindOf returns the kind of the first classified error in err's chain.
// Bare sentinels are recognised as well. Anything else is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	for kind, s := range sentinels {
		if errors.Is(err, s) {
			return kind
		}
	}
	return KindInternal
}
