package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrMalformed marks a response whose payload could not be decoded or
// carried a record failing validation. Callers treat it exactly like a
// transient fetch failure: the cursor is not advanced and the same
// request is retried.
var ErrMalformed = errors.New("remote: malformed response")

// FetchError wraps a failed fetch for one room.
type FetchError struct {
	Room string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch room %s: %v", e.Room, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AppendError wraps a failed append for one room. The dispatcher leaves
// the local echo pending; nothing retries the append automatically.
type AppendError struct {
	Room string
	Err  error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append room %s: %v", e.Room, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the log store.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// IsCancelled reports whether err is an expected close/shutdown
// cancellation rather than a real failure. Request timeouts surface as
// context.DeadlineExceeded and stay ordinary transient failures.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}
