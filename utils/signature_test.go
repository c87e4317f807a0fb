package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func hmacHex(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyBillingSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"id":"evt_1","type":"subscription.updated"}`)
	now := time.Now()

	valid := SignBillingPayload(body, secret, now)
	assert.NoError(t, VerifyBillingSignature(body, valid, secret, now))

	// Missing header fails closed.
	assert.ErrorIs(t, VerifyBillingSignature(body, "", secret, now), ErrMissingSignature)

	// Malformed headers.
	assert.ErrorIs(t, VerifyBillingSignature(body, "garbage", secret, now), ErrMalformedSignature)
	assert.ErrorIs(t, VerifyBillingSignature(body, "t=notanumber,v1=abc", secret, now), ErrMalformedSignature)
	assert.ErrorIs(t, VerifyBillingSignature(body, "v1=abcdef", secret, now), ErrMalformedSignature)

	// Stale timestamps outside the tolerance window.
	stale := SignBillingPayload(body, secret, now.Add(-BillingSignatureTolerance-time.Minute))
	assert.ErrorIs(t, VerifyBillingSignature(body, stale, secret, now), ErrStaleSignature)
	ahead := SignBillingPayload(body, secret, now.Add(BillingSignatureTolerance+time.Minute))
	assert.ErrorIs(t, VerifyBillingSignature(body, ahead, secret, now), ErrStaleSignature)

	// Wrong secret.
	wrong := SignBillingPayload(body, "other_secret", now)
	assert.ErrorIs(t, VerifyBillingSignature(body, wrong, secret, now), ErrBadSignature)

	// Tampered body.
	assert.ErrorIs(t, VerifyBillingSignature([]byte(`{"id":"evt_2"}`), valid, secret, now), ErrBadSignature)
}

func TestVerifySimpleSignature(t *testing.T) {
	secret := "email_secret"
	body := []byte(`{"messageId":"m1"}`)

	valid := hmacHex(body, secret)
	assert.NoError(t, VerifySimpleSignature(body, valid, secret))

	assert.ErrorIs(t, VerifySimpleSignature(body, "", secret), ErrMissingSignature)
	assert.ErrorIs(t, VerifySimpleSignature(body, "deadbeef", secret), ErrBadSignature)
	assert.ErrorIs(t, VerifySimpleSignature([]byte("tampered"), valid, secret), ErrBadSignature)
}
