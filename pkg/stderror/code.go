package stderror

import (
	"fmt"
)

var (
	ErrAlreadyStarted  = fmt.Errorf("ALREADY STARTED")
	ErrInvalidArgument = fmt.Errorf("INVALID ARGUMENT")
	ErrNotReady        = fmt.Errorf("NOT READY")
	ErrNotRunning      = fmt.Errorf("NOT RUNNING")
)
