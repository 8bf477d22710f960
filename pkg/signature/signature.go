// Package signature verifies HMAC-SHA256 webhook signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Verify checks an HMAC-SHA256 signature over the raw payload bytes.
// The expected signature is lowercase hex; the supplied header may carry an
// optional "sha256=" prefix (case-insensitive). Fails closed: empty payload,
// header or secret is always false. The hex comparison is constant-time;
// a length mismatch returns false immediately.
func Verify(payload []byte, signatureHeader, secret string) bool {
	if len(payload) == 0 || signatureHeader == "" || secret == "" {
		return false
	}

	supplied := strings.TrimSpace(signatureHeader)
	if len(supplied) >= 7 && strings.EqualFold(supplied[:7], "sha256=") {
		supplied = supplied[7:]
	}
	if supplied == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant-time over equal-length inputs
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(supplied)))
}
