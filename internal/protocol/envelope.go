package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentmesh/internal/domain/shared"
)

// Envelope frames every message on the wire. Requests carry a fresh ID;
// replies echo it in CorrelationID so the sender can match them up.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id,omitzero"`
	Type          MessageType     `json:"type"`
	From          string          `json:"from"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     int64           `json:"timestamp"`
}

// NewEnvelope wraps a payload in a request envelope.
func NewEnvelope(msgType MessageType, from string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Envelope{
		ID:        uuid.New(),
		Type:      msgType,
		From:      from,
		Payload:   raw,
		Timestamp: time.Now().Unix(),
	}, nil
}

// NewReply wraps a response payload in an envelope correlated to req.
func NewReply(req *Envelope, from string, resp *Response) (*Envelope, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &Envelope{
		ID:            uuid.New(),
		CorrelationID: req.ID,
		Type:          TypeResponse,
		From:          from,
		Payload:       raw,
		Timestamp:     time.Now().Unix(),
	}, nil
}

// ParseEnvelope parses a JSON envelope from the wire.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}
	return &env, nil
}

// Decode unmarshals the envelope payload into the given message struct.
func (e *Envelope) Decode(into any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, into)
}

// IsReply reports whether the envelope answers an earlier request.
func (e *Envelope) IsReply() bool {
	return e.CorrelationID != uuid.Nil
}
