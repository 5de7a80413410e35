package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSignature(t *testing.T) {
	payload := []byte(`{"task_id":"tsk_1","status":"completed"}`)
	apiKey := "secret-key"

	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, GenerateSignature(payload, apiKey))
}

func TestGenerateSignature_ExactBodyBytes(t *testing.T) {
	apiKey := "secret-key"
	a := GenerateSignature([]byte(`{"a":1}`), apiKey)
	b := GenerateSignature([]byte(`{"a": 1}`), apiKey)
	assert.NotEqual(t, a, b, "signature must cover the exact body bytes")
}

func TestValidateSignature(t *testing.T) {
	payload := []byte("payload")
	signature := GenerateSignature(payload, "key")

	assert.True(t, ValidateSignature(payload, "key", signature))
	assert.False(t, ValidateSignature(payload, "other-key", signature))
	assert.False(t, ValidateSignature([]byte("tampered"), "key", signature))
}
