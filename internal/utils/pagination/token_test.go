package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeCursor(t *testing.T) {
	createdAt := time.Date(2026, 5, 15, 14, 30, 45, 123456789, time.UTC)
	token := EncodeCursor(createdAt, "txn-123")
	assert.NotEmpty(t, token, "Token should not be empty")

	decodedAt, decodedID, err := DecodeCursor(token)
	assert.NoError(t, err, "Decoding should not return an error")
	assert.Equal(t, createdAt, decodedAt, "Created at time should match after decode")
	assert.Equal(t, "txn-123", decodedID, "Transaction ID should match after decode")

	// Current time round trip
	now := time.Now().UTC()
	nowToken := EncodeCursor(now, "txn-456")
	decodedNow, _, err := DecodeCursor(nowToken)
	assert.NoError(t, err, "Decoding current time should not return an error")
	assert.True(t, now.Equal(decodedNow), "Current time should match after decode")
}

func TestDecodeCursorError(t *testing.T) {
	// Invalid base64
	_, _, err := DecodeCursor("this is not base64!")
	assert.Error(t, err, "Should return an error for invalid base64")
	assert.Contains(t, err.Error(), "base64 decode", "Error should mention base64 decoding")

	// Missing separator
	_, _, err = DecodeCursor("MjAyMy0wNS0xNVQwMDowMDowMFo=")
	assert.Error(t, err, "Should return an error for a token without a separator")
	assert.Contains(t, err.Error(), "split", "Error should mention splitting issue")

	// Invalid timestamp: base64 of "notadate|txn-123"
	_, _, err = DecodeCursor("bm90YWRhdGV8dHhuLTEyMw==")
	assert.Error(t, err, "Should return an error for an invalid timestamp")
	assert.Contains(t, err.Error(), "created_at parse", "Error should mention timestamp parsing")

	// Empty transaction ID
	_, _, err = DecodeCursor(EncodeCursor(time.Now().UTC(), ""))
	assert.Error(t, err, "Should return an error for an empty transaction ID")
	assert.Contains(t, err.Error(), "empty id", "Error should mention the empty id")
}
