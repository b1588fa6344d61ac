package cli

import (
	"errors"
	"fmt"
)

var (
	// ErrUsage marks errors caused by how the command was invoked.
	ErrUsage = errors.New("cli usage error")
	// ErrViolations marks a compile run that found corpus violations.
	ErrViolations = errors.New("corpus violations")
)

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// violationsError is returned after the violations were printed.
type violationsError struct {
	count int
}

func (e violationsError) Error() string {
	if e.count == 1 {
		return "compile failed: 1 violation"
	}
	return fmt.Sprintf("compile failed: %d violations", e.count)
}

func (e violationsError) Is(target error) bool {
	return target == ErrViolations
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	default:
		return 1
	}
}
