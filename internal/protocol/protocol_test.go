package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentmesh/internal/domain/shared"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(shared.ErrItemNotFound))
	assert.Equal(t, KindNotFound, KindOf(shared.ErrTicketNotFound))
	assert.Equal(t, KindInvalidCode, KindOf(shared.ErrInvalidCode))
	assert.Equal(t, KindAlreadyExists, KindOf(shared.ErrAlreadyExists))
	assert.Equal(t, KindConflict, KindOf(shared.ErrAlreadyReserved))
	assert.Equal(t, KindInternal, KindOf(shared.ErrLedgerMismatch))
}

func TestResponseErrRoundTrip(t *testing.T) {
	// A domain error surviving the wire must still satisfy errors.Is
	// against its base sentinel on the caller side.
	resp := Fail(shared.ErrTicketNotFound)
	assert.ErrorIs(t, resp.Err(), shared.ErrNotFound)

	resp = Fail(shared.ErrInvalidCode)
	assert.ErrorIs(t, resp.Err(), shared.ErrInvalidCode)

	resp = Fail(shared.ErrAlreadyReserved)
	assert.ErrorIs(t, resp.Err(), shared.ErrAlreadyReserved)

	ok, err := OK(nil)
	require.NoError(t, err)
	assert.NoError(t, ok.Err())
}

func TestEnvelopeReplyCorrelation(t *testing.T) {
	req, err := NewEnvelope(TypeItemRequest, "ws://renter:8082/ws", ItemRequest{Name: "drill"})
	require.NoError(t, err)
	require.False(t, req.IsReply())

	content, err := OK(ListingList{})
	require.NoError(t, err)
	reply, err := NewReply(req, "ws://registry:8080/ws", content)
	require.NoError(t, err)

	assert.True(t, reply.IsReply())
	assert.Equal(t, req.ID, reply.CorrelationID)
	assert.Equal(t, TypeResponse, reply.Type)
}

func TestParseEnvelopeRejectsMissingType(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"from": "ws://x:1/ws"})
	require.NoError(t, err)

	_, err = ParseEnvelope(raw)
	assert.ErrorIs(t, err, shared.ErrMessageTypeRequired)
}

func TestEnvelopeDecode(t *testing.T) {
	env, err := NewEnvelope(TypePaymentRequest, "ws://owner:8081/ws", PaymentRequest{
		FromAddress:      "ws://renter:8082/ws",
		ToAddress:        "ws://owner:8081/ws",
		AmountCents:      1500,
		FrequencyMinutes: 1440,
	})
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	parsed, err := ParseEnvelope(data)
	require.NoError(t, err)

	var req PaymentRequest
	require.NoError(t, parsed.Decode(&req))
	assert.Equal(t, int64(1500), req.AmountCents)
	assert.Equal(t, 1440, req.FrequencyMinutes)
}
