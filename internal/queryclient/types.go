package queryclient

import (
	"fmt"
	"strings"
)

// Request carries the parameters of one query operation.
type Request struct {
	Limit int `json:"limit"`
	Seed  int `json:"seed"`
}

// TextPayload is the text-shaped event payload variant.
type TextPayload struct {
	Message  string `json:"message"`
	Severity int    `json:"severity"`
}

// BlobPayload is the opaque event payload variant.
type BlobPayload struct {
	Ref      string `json:"ref"`
	SizeHint int64  `json:"sizeHint"`
}

// Payload is a tagged union: exactly one variant is non-nil on well-formed
// responses. Resolution is by checking which variant is present.
type Payload struct {
	Text *TextPayload `json:"text,omitempty"`
	Blob *BlobPayload `json:"blob,omitempty"`
}

// Event is one returned event.
type Event struct {
	ID      string  `json:"id"`
	Payload Payload `json:"payload"`
}

// QueryError is a structured application-level error returned alongside a
// response.
type QueryError struct {
	Message string `json:"message"`
}

// Response is the result of one query operation: a list of events, a list
// of structured errors, or both.
type Response struct {
	Events []Event      `json:"events"`
	Errors []QueryError `json:"errors,omitempty"`
}

// HasErrors reports whether the response carries structured errors.
func (r *Response) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// ErrorSummary joins the structured error messages for logging.
func (r *Response) ErrorSummary() string {
	if r == nil || len(r.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// PayloadCost sums the accounted byte cost of the response. Only the text
// variant contributes, as len(message)+severity; opaque payloads contribute
// zero. The asymmetry is load-shaping, not an accounting bug.
func (r *Response) PayloadCost() int64 {
	if r == nil {
		return 0
	}
	var total int64
	for _, ev := range r.Events {
		if ev.Payload.Text != nil {
			total += int64(len(ev.Payload.Text.Message) + ev.Payload.Text.Severity)
		}
	}
	return total
}

// StatusError is returned when the endpoint responds with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code: %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}
