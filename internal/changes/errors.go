package changes

import (
	"errors"
	"fmt"
)

var (
	ErrFileRead   = errors.New("tracked file unreadable")
	ErrCacheWrite = errors.New("change cache write failed")
)

// FileReadError is returned when a tracked file is missing or unreadable.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrFileRead, e.Path, e.Err)
}

func (e *FileReadError) Unwrap() []error { return []error{ErrFileRead, e.Err} }

// CacheWriteError wraps a failed Save. It is logged, never returned from HasChanged.
type CacheWriteError struct {
	Key string
	Err error
}

func (e *CacheWriteError) Error() string {
	return fmt.Sprintf("%v for %s: %v", ErrCacheWrite, e.Key, e.Err)
}

func (e *CacheWriteError) Unwrap() []error { return []error{ErrCacheWrite, e.Err} }
