package lanfund

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// APIError is a non-2xx response the backend did not explain.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RejectedError is a backend response with success=false. Message is the
// server's own text and is meant to be shown to the user unchanged.
type RejectedError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *RejectedError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return fmt.Sprintf("request rejected by backend (endpoint: %s)", e.Endpoint)
	}
	return e.Message
}

// DecodeError is a response body that was not the expected JSON.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response from %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err carries a backend rejection, returning it.
func IsRejected(err error) (*RejectedError, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// baseResponse is the {success, message} envelope most endpoints return.
type baseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (b *baseResponse) base() *baseResponse { return b }

type enveloped interface {
	base() *baseResponse
}

// responseError builds the error for a non-2xx response. Bodies carrying a
// {success:false, message} envelope become RejectedErrors.
func responseError(status int, endpoint string, body []byte) error {
	var env baseResponse
	if err := json.Unmarshal(body, &env); err == nil && !env.Success && env.Message != "" {
		return &RejectedError{StatusCode: status, Message: env.Message, Endpoint: endpoint}
	}
	var errBody struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errBody); err == nil && errBody.Error != "" {
		msg = errBody.Error
	}
	return &APIError{StatusCode: status, Message: truncate(msg, maxErrorMessage), Endpoint: endpoint}
}

const maxErrorMessage = 256

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
