package ledger

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error identifier. Codes are logged and
// returned to callers (pool insert, block append, query); they must not
// change meaning once shipped.
type Code string

const (
	InvalidSignature    Code = "InvalidSignature"
	InvalidSequence     Code = "InvalidSequence"
	InsufficientBalance Code = "InsufficientBalance"
	InsufficientStake   Code = "InsufficientStake"
	StakeBelowMinimum   Code = "StakeBelowMinimum"
	UnknownSender       Code = "UnknownSender"
	InvalidParent       Code = "InvalidParent"
	InvalidHeight       Code = "InvalidHeight"
	InvalidMerkleRoot   Code = "InvalidMerkleRoot"
	UnknownProposer     Code = "UnknownProposer"
	DuplicateTransaction Code = "DuplicateTransaction"
	PoolFull            Code = "PoolFull"
	InvalidAmount       Code = "InvalidAmount"
	UnsupportedTxKind   Code = "UnsupportedTxKind"
	StorageFailure      Code = "StorageFailure"
)

// Error pairs a stable Code with the underlying cause. It is always
// Unwrap-able so callers can still errors.Is/As against wrapped causes.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newErr builds an *Error, optionally wrapping a lower-level cause.
func newErr(code Code, format string, args ...any) *Error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the Code from err, or "" if err does not carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
