// utils/signature.go
package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSignature   = errors.New("signature header missing")
	ErrMalformedSignature = errors.New("signature header malformed")
	ErrStaleSignature     = errors.New("signature timestamp outside tolerance")
	ErrBadSignature       = errors.New("signature verification failed")
)

// BillingSignatureTolerance bounds the accepted clock skew between the
// provider's signing timestamp and our clock, limiting replay windows.
const BillingSignatureTolerance = 5 * time.Minute

// VerifySimpleSignature checks a plain hex HMAC-SHA256 of the body, the
// scheme the email provider uses.
func VerifySimpleSignature(body []byte, header, secret string) error {
	if header == "" {
		return ErrMissingSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(header))) {
		return ErrBadSignature
	}
	return nil
}

// VerifyBillingSignature checks the billing provider's
// "t=<unix>,v1=<hex>" header, where the hex value is
// HMAC-SHA256(secret, "<t>.<body>"). Comparison is constant time and
// the timestamp must fall within the tolerance window around now.
func VerifyBillingSignature(body []byte, header, secret string, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	var tsPart, sigPart string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			tsPart = kv[1]
		case "v1":
			sigPart = kv[1]
		}
	}
	if tsPart == "" || sigPart == "" {
		return ErrMalformedSignature
	}

	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}
	signedAt := time.Unix(ts, 0)
	if signedAt.Before(now.Add(-BillingSignatureTolerance)) || signedAt.After(now.Add(BillingSignatureTolerance)) {
		return ErrStaleSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", tsPart, body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(sigPart))) {
		return ErrBadSignature
	}
	return nil
}

// SignBillingPayload produces a header in the provider's format. It is
// the test-side counterpart of VerifyBillingSignature.
func SignBillingPayload(body []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", ts, body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
