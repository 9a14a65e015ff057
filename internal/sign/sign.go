// Package sign produces deterministic request signatures for venue
// authentication. Signing is pure: identical secret and payload always yield
// byte-identical output.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// HexHMACSHA256 signs payload with secret and returns the lowercase hex
// digest. Binance-style query-string authentication.
func HexHMACSHA256(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Base64HMACSHA256 signs payload with secret and returns the base64 digest.
// OKX-style header authentication.
func Base64HMACSHA256(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// PrefixedPayload canonicalizes a timestamp-prefixed message in the order OKX
// expects: timestamp + method + requestPath + body.
func PrefixedPayload(timestamp, method, requestPath, body string) string {
	return timestamp + method + requestPath + body
}
