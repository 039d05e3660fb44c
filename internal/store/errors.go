package store

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	WriteFailed ErrorKind = iota + 1
	CorruptRecord
	ReadFailed
)

func (k ErrorKind) String() string {
	switch k {
	case WriteFailed:
		return "write failed"
	case CorruptRecord:
		return "corrupt record"
	case ReadFailed:
		return "read failed"
	default:
		return "unknown"
	}
}

type StoreError struct {
	Kind     ErrorKind
	Username string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("state store: %s for %s: %v", e.Kind, e.Username, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func IsKind(err error, kind ErrorKind) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == kind
}
