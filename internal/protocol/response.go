package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"rentmesh/internal/domain/shared"
)

// ErrorKind names a rejection category on the wire. Every cross-agent
// call resolves to either a success payload or one of these kinds; no
// handler failure crosses the wire as anything else.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindInvalidCode   ErrorKind = "invalid_code"
	KindAlreadyExists ErrorKind = "already_exists"
	KindConflict      ErrorKind = "conflict"
	KindInternal      ErrorKind = "internal"
)

// Response is the reply carried by every answered request. Status false
// always comes with a Kind and a human-readable message; Status true may
// carry a typed content payload decoded per call site.
type Response struct {
	Status  bool            `json:"status"`
	Kind    ErrorKind       `json:"kind,omitempty"`
	Message string          `json:"message,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// OK builds a success response around a content payload.
func OK(content any) (*Response, error) {
	if content == nil {
		return &Response{Status: true}, nil
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response content: %w", err)
	}
	return &Response{Status: true, Content: raw}, nil
}

// Fail builds a rejection response from a domain error.
func Fail(err error) *Response {
	return &Response{
		Status:  false,
		Kind:    KindOf(err),
		Message: err.Error(),
	}
}

// KindOf maps a domain error onto its wire kind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return KindNotFound
	case errors.Is(err, shared.ErrInvalidCode):
		return KindInvalidCode
	case errors.Is(err, shared.ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, shared.ErrAlreadyReserved):
		return KindConflict
	default:
		return KindInternal
	}
}

// Err converts a rejection back into the matching domain error. A
// successful response yields nil.
func (r *Response) Err() error {
	if r.Status {
		return nil
	}
	switch r.Kind {
	case KindNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, r.Message)
	case KindInvalidCode:
		return shared.ErrInvalidCode
	case KindAlreadyExists:
		return fmt.Errorf("%w: %s", shared.ErrAlreadyExists, r.Message)
	case KindConflict:
		return fmt.Errorf("%w: %s", shared.ErrAlreadyReserved, r.Message)
	default:
		return fmt.Errorf("peer rejected request: %s", r.Message)
	}
}

// DecodeContent unmarshals the success payload into the given struct.
func (r *Response) DecodeContent(into any) error {
	if len(r.Content) == 0 {
		return nil
	}
	return json.Unmarshal(r.Content, into)
}
