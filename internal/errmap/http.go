package errmap

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aelexs/realtime-chat-client/internal/domain"
)

// HTTPError is a non-2xx directory response mapped to a domain error.
// errors.Is matches the mapped sentinel.
type HTTPError struct {
	StatusCode int
	Detail     string
	err        error
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("directory returned %d: %s: %v", e.StatusCode, e.Detail, e.err)
	}
	return fmt.Sprintf("directory returned %d: %v", e.StatusCode, e.err)
}

func (e *HTTPError) Unwrap() error {
	return e.err
}

// statusMapping defines an HTTP status to domain error mapping.
type statusMapping struct {
	statusCode int
	err        error
}

// statusMappings maps directory status codes to domain errors.
// Anything not listed, including a 400 or 422 that is not a duplicate,
// means the directory is unavailable. ErrInvalidInput is local only.
var statusMappings = []statusMapping{
	{http.StatusNotFound, domain.ErrNotFound},
	{http.StatusConflict, domain.ErrAlreadyExists},
}

// errorBody is the directory's error envelope, e.g. {"detail":"User not found"}.
type errorBody struct {
	Detail string `json:"detail"`
}

// FromHTTPResponse converts a directory response status and body into a
// domain error. 2xx returns nil.
func FromHTTPResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	detail := parseDetail(body)
	mapped := domain.ErrDirectoryUnavailable
	for _, m := range statusMappings {
		if statusCode == m.statusCode {
			mapped = m.err
			break
		}
	}

	// The directory reports duplicate registrations as a plain 400.
	if statusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(detail), "already exists") {
		mapped = domain.ErrAlreadyExists
	}

	return &HTTPError{StatusCode: statusCode, Detail: detail, err: mapped}
}

func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Detail
}
