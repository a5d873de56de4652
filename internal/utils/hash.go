// Package utils contains small helpers shared by the transport and the recorder.
package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// CalculateHash returns the hex HMAC-SHA256 of body keyed with key.
func CalculateHash(body []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidHash reports whether sum is the hash of body under key.
func ValidHash(body []byte, key, sum string) bool {
	want, err := hex.DecodeString(sum)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return hmac.Equal(h.Sum(nil), want)
}
