package roster

import "fmt"

// UnknownUserError indicates an operation against a username that is not on
// the roster.
type UnknownUserError struct {
	Username string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("user %q is not on the roster", e.Username)
}

// IsUnknownUser returns true if the error is an UnknownUserError.
func IsUnknownUser(err error) bool {
	_, ok := err.(*UnknownUserError)
	return ok
}

// DuplicateUserError indicates an Add call for a username already on the
// roster.
type DuplicateUserError struct {
	Username string
}

func (e *DuplicateUserError) Error() string {
	return fmt.Sprintf("user %q is already on the roster", e.Username)
}

// IsDuplicateUser returns true if the error is a DuplicateUserError.
func IsDuplicateUser(err error) bool {
	_, ok := err.(*DuplicateUserError)
	return ok
}
