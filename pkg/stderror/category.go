package stderror

import (
	"errors"
	"io"
	"strings"
)

// IsClosed returns true if the cause of error is connection close.
func IsClosed(err error) bool {
	if errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "read/write on closed pipe") || strings.Contains(s, "use of closed network connection")
}

// IsEOF returns true if the cause of error is EOF.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// ShouldRetry returns true if the caller should retry the same operation again.
func ShouldRetry(err error) bool {
	return errors.Is(err, ErrNotReady)
}
