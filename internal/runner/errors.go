package runner

import (
	"errors"
	"fmt"
)

var ErrStart = errors.New("start external program")

// ExitError reports a program that ran and exited non-zero.
type ExitError struct {
	Program string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}
