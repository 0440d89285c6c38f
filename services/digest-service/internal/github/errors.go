package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxMessageBytes bounds the error body kept on an HTTPError.
const maxMessageBytes = 200

// NetworkError is a failure to complete the HTTP exchange: connect, TLS,
// timeout or a body that could not be read.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("github: GET %s: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is any response other than 200 OK.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: GET %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("github: GET %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// ParseError is a 200 response whose body is not the expected JSON.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("github: GET %s: decoding response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// newHTTPError extracts GitHub's {"message": ...} error body when present.
func newHTTPError(endpoint string, statusCode int, body []byte) *HTTPError {
	httpErr := &HTTPError{Endpoint: endpoint, StatusCode: statusCode}

	var wire struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		httpErr.Message = wire.Message
	} else {
		httpErr.Message = strings.TrimSpace(string(body))
	}
	httpErr.Message = truncate(httpErr.Message, maxMessageBytes)
	return httpErr
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an *HTTPError.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 response (unknown user).
func IsNotFound(err error) bool {
	return StatusCode(err) == 404
}

// IsRateLimited reports whether err is a primary (403) or secondary (429) rate limit response.
func IsRateLimited(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.StatusCode == 429 {
		return true
	}
	lower := strings.ToLower(httpErr.Message)
	return httpErr.StatusCode == 403 &&
		(strings.Contains(lower, "rate limit") || strings.Contains(lower, "abuse detection"))
}

// Endpoint returns the API path a client error refers to, or "" for other errors.
func Endpoint(err error) string {
	var (
		netErr   *NetworkError
		httpErr  *HTTPError
		parseErr *ParseError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Endpoint
	case errors.As(err, &netErr):
		return netErr.Endpoint
	case errors.As(err, &parseErr):
		return parseErr.Endpoint
	}
	return ""
}
