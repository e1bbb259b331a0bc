package jobdb

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every *StorageError via errors.Is.
	ErrStorage = errors.New("job storage error")

	// ErrParse matches every *ParseError via errors.Is.
	ErrParse = errors.New("job record parse error")
)

// StorageError reports a failure of the backing directory: it could not be
// created, listed, or a record could not be written.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("job storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// ParseError reports a record that could not be read, decoded or turned
// into a Job. Content holds the raw record (when one was decoded) for
// diagnostics.
type ParseError struct {
	Source  string
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Content == "" {
		return fmt.Sprintf("invalid job record in %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("unable to parse job record in %s: %v\n%s", e.Source, e.Err, e.Content)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
