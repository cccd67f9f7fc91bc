package run

import "errors"

var (
	ErrRunNotFound = errors.New("run not found")
	ErrBusy        = errors.New("too many runs in progress")
	ErrInputDir    = errors.New("input dir is not a readable directory")
)
