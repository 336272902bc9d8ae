package keystore

import "fmt"

// Code is the stable, machine-readable identifier for keystore failures,
// matching the code names spec.md §7 reserves for this package.
type Code string

const (
	InvalidCredential Code = "InvalidCredential"
	CorruptKeystore   Code = "CorruptKeystore"
)

// Error pairs a Code with a human-readable cause. The private key is never
// part of either field.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.msg) }

func newErr(code Code, format string, args ...any) *Error {
	return &Error{Code: code, msg: fmt.Sprintf(format, args...)}
}
