package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// SignHMACSHA256 returns the base64 HMAC-SHA256 of the concatenated parts.
func SignHMACSHA256(secret []byte, parts ...[]byte) string {
	mac := hmac.New(sha256.New, secret)
	for _, part := range parts {
		mac.Write(part)
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA256 compares a base64 signature against the expected HMAC in constant time.
func VerifyHMACSHA256(signature string, secret []byte, parts ...[]byte) bool {
	if signature == "" || len(secret) == 0 {
		return false
	}
	expected := SignHMACSHA256(secret, parts...)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SHA256Hex hashes the payload and returns the lowercase hex digest.
func SHA256Hex(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// SHA256Base64 hashes the payload and returns the standard base64 digest.
func SHA256Base64(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two strings without leaking timing.
func ConstantTimeEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
