package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"trendscope-pipeline/internal/models"
)

// MaxTimestampSkew is the replay-protection window. Requests whose
// timestamp differs from the local clock by more than this are rejected
// regardless of signature validity.
const MaxTimestampSkew = 300 * time.Second

const signatureVersion = "v0"

// SignatureVerifier authenticates inbound webhooks against the shared
// signing secret. It must run before any other request processing.
type SignatureVerifier struct {
	secret string
	now    func() time.Time
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret, now: time.Now}
}

// ComputeSignature builds the "v0=<hex hmac-sha256>" signature over
// "v0:<timestamp>:<body>".
func ComputeSignature(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the request signature and freshness. All failures are
// security errors; the caller must produce no side effects after one.
func (v *SignatureVerifier) Verify(timestamp, signature string, body []byte) error {
	if v.secret == "" {
		return models.NewSecurityError("SIGNING_SECRET_MISSING", "no signing secret configured")
	}
	if timestamp == "" {
		return models.NewSecurityError("TIMESTAMP_MISSING", "request timestamp header missing")
	}
	if signature == "" {
		return models.NewSecurityError("SIGNATURE_MISSING", "request signature header missing")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return models.NewSecurityError("TIMESTAMP_INVALID", "request timestamp is not an integer").WithCause(err)
	}

	skew := v.now().Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if time.Duration(skew)*time.Second > MaxTimestampSkew {
		return models.NewSecurityError("TIMESTAMP_STALE", "request timestamp outside the accepted window")
	}

	expected := ComputeSignature(v.secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return models.NewSecurityError("SIGNATURE_INVALID", "request signature mismatch")
	}

	return nil
}
