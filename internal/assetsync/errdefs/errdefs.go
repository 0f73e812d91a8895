// Package errdefs holds the error taxonomy shared by the synchronization
// pipeline. Every error wraps its cause so callers can match with errors.Is
// and errors.As.
package errdefs

import (
	"errors"
	"fmt"
)

// TransferKind classifies why a transfer failed.
type TransferKind int

const (
	NetworkFailure TransferKind = iota
	NonSuccessStatus
	Timeout
)

func (k TransferKind) String() string {
	switch k {
	case NetworkFailure:
		return "network failure"
	case NonSuccessStatus:
		return "non-success status"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("transfer kind %d", int(k))
	}
}

// TransferError reports a failed remote fetch.
type TransferError struct {
	Kind       TransferKind
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransferError) Error() string {
	switch e.Kind {
	case NonSuccessStatus:
		return fmt.Sprintf("failed to fetch %s : %s", e.URL, e.Status)
	case Timeout:
		if e.Err != nil {
			return fmt.Sprintf("fetching %s timed out: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("fetching %s timed out", e.URL)
	default:
		return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
	}
}

func (e *TransferError) Unwrap() error { return e.Err }

// ManifestError reports a manifest that could not be fetched, parsed or
// verified. It is always recovered by falling back to the static asset list.
type ManifestError struct {
	Op  string
	URL string
	Err error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// DigestMismatchError reports content whose digest differs from the declared one.
type DigestMismatchError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("digest mismatch for %s: expected %s, got %s", e.Name, e.Expected, e.Actual)
}

// IOError reports a local filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsTransferKind reports whether err carries a TransferError of the given kind.
func IsTransferKind(err error, kind TransferKind) bool {
	var te *TransferError
	return errors.As(err, &te) && te.Kind == kind
}
