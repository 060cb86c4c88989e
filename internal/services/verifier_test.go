package services

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"trendscope-pipeline/internal/models"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestVerifyValidSignature(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	verifier := NewSignatureVerifier("8f742231b10e8888abcd99yyyzzz85a5")
	verifier.now = fixedClock(now)

	body := []byte("token=xyz&team_id=T123&command=%2Ftrending-news&text=category%3Ascience")
	timestamp := strconv.FormatInt(now.Unix(), 10)
	signature := ComputeSignature("8f742231b10e8888abcd99yyyzzz85a5", timestamp, body)

	if err := verifier.Verify(timestamp, signature, body); err != nil {
		t.Fatalf("Expected valid signature to verify, got %v", err)
	}
}

func TestVerifyRejectsMutations(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	secret := "test-signing-secret"
	verifier := NewSignatureVerifier(secret)
	verifier.now = fixedClock(now)

	body := []byte("user_id=U12345678&text=total%3A5")
	timestamp := strconv.FormatInt(now.Unix(), 10)
	signature := ComputeSignature(secret, timestamp, body)

	mutatedBody := append([]byte(nil), body...)
	mutatedBody[0] ^= 0x01
	if err := verifier.Verify(timestamp, signature, mutatedBody); err == nil {
		t.Error("Expected mutated body to fail verification")
	}

	wrongSecret := ComputeSignature("different-secret", timestamp, body)
	if err := verifier.Verify(timestamp, wrongSecret, body); err == nil {
		t.Error("Expected signature from wrong secret to fail")
	}

	laterTS := strconv.FormatInt(now.Unix()+10, 10)
	if err := verifier.Verify(laterTS, signature, body); err == nil {
		t.Error("Expected signature over different timestamp to fail")
	}
}

func TestVerifyTimestampWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	secret := "test-signing-secret"
	verifier := NewSignatureVerifier(secret)
	verifier.now = fixedClock(now)

	body := []byte("command=%2Ftrending-news")

	cases := []struct {
		name   string
		offset int64
		valid  bool
	}{
		{"exactly at past edge", -300, true},
		{"exactly at future edge", 300, true},
		{"just past stale", -301, false},
		{"just past future", 301, false},
		{"fresh", -5, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			timestamp := strconv.FormatInt(now.Unix()+tc.offset, 10)
			signature := ComputeSignature(secret, timestamp, body)

			err := verifier.Verify(timestamp, signature, body)
			if tc.valid && err != nil {
				t.Errorf("Expected timestamp offset %d to verify, got %v", tc.offset, err)
			}
			if !tc.valid && err == nil {
				t.Errorf("Expected timestamp offset %d to be rejected", tc.offset)
			}
		})
	}
}

func TestVerifyMissingInputs(t *testing.T) {
	now := time.Now()
	secret := "test-signing-secret"
	body := []byte("x=y")
	timestamp := fmt.Sprintf("%d", now.Unix())
	signature := ComputeSignature(secret, timestamp, body)

	noSecret := NewSignatureVerifier("")
	if err := noSecret.Verify(timestamp, signature, body); !models.IsType(err, models.ErrorTypeSecurity) {
		t.Errorf("Expected security error without secret, got %v", err)
	}

	verifier := NewSignatureVerifier(secret)

	if err := verifier.Verify("", signature, body); err == nil {
		t.Error("Expected missing timestamp to fail")
	}
	if err := verifier.Verify(timestamp, "", body); err == nil {
		t.Error("Expected missing signature to fail")
	}
	if err := verifier.Verify("not-a-number", signature, body); err == nil {
		t.Error("Expected non-numeric timestamp to fail")
	}
}
