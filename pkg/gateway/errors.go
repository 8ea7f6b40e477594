package gateway

import (
	"errors"
	"fmt"
)

// ErrInput is wrapped by every input validation failure.
var ErrInput = errors.New("invalid input")

// Kind classifies a fatal gateway failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInput
	KindConfiguration
	KindScrape
	KindSummarization
	KindCacheWrite
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConfiguration:
		return "configuration"
	case KindScrape:
		return "scrape"
	case KindSummarization:
		return "summarization"
	case KindCacheWrite:
		return "cache_write"
	default:
		return "unknown"
	}
}

// Error is a classified fatal failure. Cache read failures never produce one.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind of err, or KindUnknown if err is not a gateway Error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindUnknown
}
