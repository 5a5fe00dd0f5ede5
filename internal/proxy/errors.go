package proxy

import (
	"errors"
	"fmt"
)

// ErrEmptyContent means the upstream answered 200 with a parseable body that
// contained no extractable assistant text.
var ErrEmptyContent = errors.New("empty content in upstream response")

// UpstreamHTTPError is a non-2xx answer from the upstream. The raw body is
// kept (truncated) for diagnosability but is never returned to the caller as
// if it were assistant text.
type UpstreamHTTPError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("upstream HTTP error %d", e.StatusCode)
}
