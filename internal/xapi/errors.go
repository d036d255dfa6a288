package xapi

import "fmt"

// HTTPError is a non-2xx response from an X API call that is not covered
// by a retry policy.
type HTTPError struct {
	Op         string // INIT, APPEND, FINALIZE, STATUS, UPLOAD, TWEET
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

// ProcessingError is a terminal media-processing failure reported by the
// STATUS poll.
type ProcessingError struct {
	State string
	Info  string // raw processing_info payload
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("media processing failed: %s", e.Info)
}
