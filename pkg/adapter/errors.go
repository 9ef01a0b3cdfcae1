package adapter

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/portsql/pkg/core"
)

// Sentinel errors matched by QueryError.Is for each error kind.
var (
	ErrBackend             = errors.New("backend error")
	ErrIncompatibleSyntax  = errors.New("incompatible syntax")
	ErrIdentifierTooLong   = errors.New("identifier too long")
	ErrConstraintViolation = errors.New("constraint violation")
)

// Connection state errors.
var (
	ErrNotConnected     = errors.New("database connection not established")
	ErrTxActive         = errors.New("transaction already active")
	ErrNoTx             = errors.New("no active transaction")
	ErrSequenceRequired = errors.New("sequence name required")
)

// QueryError describes a failed query.
type QueryError struct {
	Kind     core.ErrorKind
	Query    string // text as supplied by the caller
	Prepared string // text sent to the backend
	Args     []any
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v (query: %s, args: %v)", e.Kind, e.Err, e.Prepared, e.Args)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind.
func (e *QueryError) Is(target error) bool {
	return target == kindError(e.Kind)
}

func kindError(kind core.ErrorKind) error {
	switch kind {
	case core.ErrorIncompatibleSyntax:
		return ErrIncompatibleSyntax
	case core.ErrorIdentifierTooLong:
		return ErrIdentifierTooLong
	case core.ErrorConstraintViolation:
		return ErrConstraintViolation
	default:
		return ErrBackend
	}
}

// KindOf returns the error kind of err, or ErrorBackend when err is not a QueryError.
func KindOf(err error) core.ErrorKind {
	var qerr *QueryError
	if errors.As(err, &qerr) {
		return qerr.Kind
	}
	return core.ErrorBackend
}

// IsConstraintViolation reports whether err is a uniqueness or integrity violation.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

// IsIncompatibleSyntax reports whether err is a syntax rejection that survived the retry.
func IsIncompatibleSyntax(err error) bool {
	return errors.Is(err, ErrIncompatibleSyntax)
}

// IsIdentifierTooLong reports whether err is an identifier length rejection.
func IsIdentifierTooLong(err error) bool {
	return errors.Is(err, ErrIdentifierTooLong)
}
