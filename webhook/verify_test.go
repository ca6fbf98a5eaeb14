package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signHex(secret, signedPayload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return hex.EncodeToString(mac.Sum(nil))
}

func headerFor(secret string, t time.Time, payload []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", t.Unix(), signHex(secret, fmt.Sprintf("%d.%s", t.Unix(), payload)))
}

func TestVerify_Valid(t *testing.T) {
	payload := []byte(`{"job_id":"job_1","status":"success"}`)
	now := time.Now()

	result := Verify(payload, headerFor("whsec_test", now, payload), "whsec_test")
	if !result.Valid || result.Reason != ReasonValid {
		t.Fatalf("expected valid, got %+v", result)
	}
	if result.Timestamp != now.Unix() {
		t.Errorf("expected timestamp %d, got %d", now.Unix(), result.Timestamp)
	}
}

func TestVerify_SignFunctionRoundTrip(t *testing.T) {
	payload := []byte("hello")
	now := time.Now()

	header := Sign(payload, "whsec_test", now)
	result := Verify(payload, header, "whsec_test")
	if !result.Valid {
		t.Fatalf("Sign output must verify, got %+v", result)
	}
}

func TestVerify_Failures(t *testing.T) {
	payload := []byte("payload")
	now := time.Now()

	tests := []struct {
		name   string
		header string
		want   Reason
	}{
		{"empty header", "", ReasonNoSignatureHeader},
		{"blank header", "   ", ReasonNoSignatureHeader},
		{"missing v1", fmt.Sprintf("t=%d", now.Unix()), ReasonMissingV1Signature},
		{"missing timestamp", "v1=deadbeef", ReasonMissingV1Signature},
		{"garbage header", "not-a-header", ReasonMissingV1Signature},
		{"wrong signature", fmt.Sprintf("t=%d,v1=deadbeef", now.Unix()), ReasonSignatureMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Verify(payload, tt.header, "whsec_test")
			if result.Valid {
				t.Fatalf("expected invalid, got %+v", result)
			}
			if result.Reason != tt.want {
				t.Errorf("expected reason %s, got %s", tt.want, result.Reason)
			}
		})
	}
}

func TestVerify_TimestampExpired(t *testing.T) {
	payload := []byte("payload")
	old := time.Now().Add(-10 * time.Minute)

	// Correct secret must not rescue an expired timestamp.
	result := Verify(payload, headerFor("whsec_test", old, payload), "whsec_test")
	if result.Valid || result.Reason != ReasonTimestampExpired {
		t.Fatalf("expected timestamp_expired, got %+v", result)
	}
}

func TestVerify_FutureTimestampExpired(t *testing.T) {
	payload := []byte("payload")
	future := time.Now().Add(10 * time.Minute)

	result := Verify(payload, headerFor("whsec_test", future, payload), "whsec_test")
	if result.Valid || result.Reason != ReasonTimestampExpired {
		t.Fatalf("expected timestamp_expired for future timestamp, got %+v", result)
	}
}

func TestVerify_CustomTolerance(t *testing.T) {
	payload := []byte("payload")
	issued := time.Now().Add(-8 * time.Minute)
	header := headerFor("whsec_test", issued, payload)

	v := Verifier{Tolerance: 10 * time.Minute}
	if result := v.Verify(payload, header, "whsec_test"); !result.Valid {
		t.Errorf("expected valid inside widened tolerance, got %+v", result)
	}

	strict := Verifier{Tolerance: time.Minute}
	if result := strict.Verify(payload, header, "whsec_test"); result.Reason != ReasonTimestampExpired {
		t.Errorf("expected expired under strict tolerance, got %+v", result)
	}
}

func TestVerify_InjectedClock(t *testing.T) {
	payload := []byte("payload")
	issued := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	header := headerFor("whsec_test", issued, payload)

	v := Verifier{Now: func() time.Time { return issued.Add(2 * time.Minute) }}
	if result := v.Verify(payload, header, "whsec_test"); !result.Valid {
		t.Errorf("expected valid with injected clock, got %+v", result)
	}
}

func TestVerifyWithSecrets_Rotation(t *testing.T) {
	payload := []byte("payload")
	now := time.Now()
	header := headerFor("whsec_old", now, payload)

	tests := []struct {
		name      string
		primary   string
		secondary string
		wantValid bool
		want      Reason
	}{
		{"primary matches", "whsec_old", "whsec_new", true, ReasonValidPrimary},
		{"secondary matches", "whsec_new", "whsec_old", true, ReasonValidSecondary},
		{"neither matches", "whsec_a", "whsec_b", false, ReasonSignatureMismatch},
		{"single secret valid", "whsec_old", "", true, ReasonValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := VerifyWithSecrets(payload, header, tt.primary, tt.secondary)
			if result.Valid != tt.wantValid || result.Reason != tt.want {
				t.Errorf("got %+v, want valid=%v reason=%s", result, tt.wantValid, tt.want)
			}
		})
	}
}

func TestVerify_MultipleV1Signatures(t *testing.T) {
	// During secret rotation the service may send several v1 entries; any
	// matching one verifies.
	payload := []byte("payload")
	now := time.Now()
	good := signHex("whsec_test", fmt.Sprintf("%d.%s", now.Unix(), payload))
	header := fmt.Sprintf("t=%d,v1=deadbeef,v1=%s", now.Unix(), good)

	if result := Verify(payload, header, "whsec_test"); !result.Valid {
		t.Errorf("expected any matching v1 entry to verify, got %+v", result)
	}
}

func TestVerify_EmptySecret(t *testing.T) {
	payload := []byte("payload")
	header := headerFor("whsec_test", time.Now(), payload)

	result := Verify(payload, header, "")
	if result.Valid || result.Reason != ReasonVerificationError {
		t.Fatalf("expected verification_error for empty secret, got %+v", result)
	}
}

func TestVerify_PayloadTampering(t *testing.T) {
	now := time.Now()
	header := headerFor("whsec_test", now, []byte("original"))

	result := Verify([]byte("tampered"), header, "whsec_test")
	if result.Valid || result.Reason != ReasonSignatureMismatch {
		t.Fatalf("expected mismatch for tampered payload, got %+v", result)
	}
}
