package ingest

import (
	"fmt"
	"unicode/utf8"
)

// PreviewLength is how many characters of a bad payload are kept in errors.
const PreviewLength = 300

// RequestError is a transport failure. It is never retried.
type RequestError struct {
	Label string
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed for %s: %v", e.Label, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusError is a non-2xx, non-429 response.
type StatusError struct {
	Label   string
	Code    int
	Preview string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s. Preview: %s", e.Code, e.Label, e.Preview)
}

// DecodeError is a response body that did not match the expected shape.
type DecodeError struct {
	Label   string
	Preview string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("JSON parse error from %s: %v. Preview: %s", e.Label, e.Err, e.Preview)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// preview truncates body to PreviewLength runes.
func preview(body []byte) string {
	if utf8.RuneCount(body) <= PreviewLength {
		return string(body)
	}
	runes := []rune(string(body))
	return string(runes[:PreviewLength])
}
