package clinic

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// ErrUnauthorized is matched by any APIError with status 401.
var ErrUnauthorized = errors.New("clinic: unauthorized")

const maxErrorBody = 300

// APIError is a non-2xx answer from the clinic backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("clinic: status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("clinic: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Temporary reports whether retrying later could succeed: 5xx, 408 and 429.
func (e *APIError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusRequestTimeout || e.Status == http.StatusTooManyRequests
}

// IsRejection reports whether the backend refused the request on its merits (4xx other than
// auth and throttling), e.g. a slot that was taken meanwhile.
func IsRejection(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status == http.StatusUnauthorized || apiErr.Temporary() {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500
}

// errorEnvelope covers both error shapes the backend produces.
type errorEnvelope struct {
	Message     string `json:"message"`
	MessageCode string `json:"messageCode"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Message = env.Message
		apiErr.Code = env.MessageCode
		if env.Error != nil {
			if apiErr.Message == "" {
				apiErr.Message = env.Error.Message
			}
			if apiErr.Code == "" {
				apiErr.Code = env.Error.Code
			}
		}
	}

	if apiErr.Message == "" {
		msg := strings.TrimSpace(string(body))
		msg = truncateRunes(msg, maxErrorBody)
		if msg == "" {
			msg = statusMessage(status)
		}
		apiErr.Message = msg
	}
	return apiErr
}

// truncateRunes cuts s to at most limit bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not found"
	case http.StatusInternalServerError:
		return "Server error"
	default:
		return http.StatusText(status)
	}
}
