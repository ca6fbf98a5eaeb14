// Package webhook verifies and parses signed deliveries from the Relay
// service. It is independent of the Step model; callers use it inside their
// own webhook handlers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reason explains a verification outcome.
type Reason string

const (
	ReasonNoSignatureHeader  Reason = "no_signature_header"
	ReasonMissingV1Signature Reason = "missing_v1_signature"
	ReasonTimestampExpired   Reason = "timestamp_expired"
	ReasonSignatureMismatch  Reason = "signature_mismatch"
	ReasonValid              Reason = "valid"
	ReasonValidPrimary       Reason = "valid_primary"
	ReasonValidSecondary     Reason = "valid_secondary"
	ReasonVerificationError  Reason = "verification_error"
)

// Result reports the outcome of verifying one delivery.
type Result struct {
	Valid     bool
	Reason    Reason
	Timestamp int64
}

// DefaultTolerance is the acceptance window for the signature timestamp.
const DefaultTolerance = 300 * time.Second

// Verifier holds verification settings. The zero value uses
// DefaultTolerance and the wall clock.
type Verifier struct {
	Tolerance time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Verify checks a delivery against one secret.
//
// The signature header has the form "t=<unix-seconds>,v1=<hex hmac-sha256>",
// and the signed string is "<t>.<rawPayload>".
func (v Verifier) Verify(payload []byte, header, secret string) Result {
	return v.VerifyWithSecrets(payload, header, secret, "")
}

// VerifyWithSecrets checks a delivery against a primary secret and, when the
// primary fails, an optional secondary. The ordered fallback exists so secret
// rotation has no delivery gap: during rotation both old and new secrets
// verify.
func (v Verifier) VerifyWithSecrets(payload []byte, header, primary, secondary string) Result {
	if primary == "" {
		return Result{Reason: ReasonVerificationError}
	}
	if strings.TrimSpace(header) == "" {
		return Result{Reason: ReasonNoSignatureHeader}
	}

	timestamp, signatures, err := parseSignatureHeader(header)
	if err != nil {
		return Result{Reason: ReasonMissingV1Signature}
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	age := now().Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if age > int64(tolerance/time.Second) {
		return Result{Reason: ReasonTimestampExpired, Timestamp: timestamp}
	}

	signedPayload := fmt.Sprintf("%d.%s", timestamp, payload)

	if matchesAny(signedPayload, primary, signatures) {
		reason := ReasonValid
		if secondary != "" {
			reason = ReasonValidPrimary
		}
		return Result{Valid: true, Reason: reason, Timestamp: timestamp}
	}
	if secondary != "" && matchesAny(signedPayload, secondary, signatures) {
		return Result{Valid: true, Reason: ReasonValidSecondary, Timestamp: timestamp}
	}

	return Result{Reason: ReasonSignatureMismatch, Timestamp: timestamp}
}

// Verify checks a delivery against one secret using default settings.
func Verify(payload []byte, header, secret string) Result {
	return Verifier{}.Verify(payload, header, secret)
}

// VerifyWithSecrets checks a delivery against two rotating secrets using
// default settings.
func VerifyWithSecrets(payload []byte, header, primary, secondary string) Result {
	return Verifier{}.VerifyWithSecrets(payload, header, primary, secondary)
}

// Sign produces the signature header value for a payload at time t. Used by
// tests and by callers emulating the service.
func Sign(payload []byte, secret string, t time.Time) string {
	ts := t.Unix()
	sig := computeSignature(fmt.Sprintf("%d.%s", ts, payload), secret)
	return fmt.Sprintf("t=%d,v1=%s", ts, sig)
}

func matchesAny(signedPayload, secret string, signatures []string) bool {
	expected := computeSignature(signedPayload, secret)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

// parseSignatureHeader parses "t=timestamp,v1=signature[,v1=signature2...]".
func parseSignatureHeader(header string) (int64, []string, error) {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])

		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == 0 {
		return 0, nil, fmt.Errorf("missing timestamp")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("missing v1 signature")
	}
	return timestamp, signatures, nil
}

func computeSignature(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
