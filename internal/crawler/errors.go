package crawler

import (
	"errors"
	"fmt"
)

// ErrNoData signals that the listing for a key does not exist (HTTP 404).
// It is an expected outcome, not a failure.
var ErrNoData = errors.New("no data for key")

// FetchError is an unexpected listing fetch failure: a non-200, non-404
// status or a transport error (StatusCode 0).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d: %v", e.URL, e.StatusCode, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
