package webhdfs

import (
	"errors"
	"fmt"
)

// errNoLocation is wrapped in a TransportError when the gateway answers 307
// without telling us where the data node is.
var errNoLocation = errors.New("redirect without Location header")

// TransportError reports an unexpected status (or a failed round trip) in
// either phase of a store operation. Body holds the gateway's response text.
type TransportError struct {
	Op         string // create, write, open, read
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhdfs: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("webhdfs: %s %s: unexpected status %d: %s", e.Op, e.Path, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
