package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

func newHMACSHA256(key []byte) hash.Hash {
	return hmac.New(sha256.New, key)
}

// HMACSHA256 returns the 32-byte HMAC-SHA256 MAC of message under key.
func HMACSHA256(key, message []byte) [SHA256LenBytes]byte {
	h := newHMACSHA256(key)
	h.Write(message)
	var result [SHA256LenBytes]byte
	copy(result[:], h.Sum(nil))
	return result
}

// HMACSHA256Slice is HMACSHA256 with the MAC returned as a slice.
func HMACSHA256Slice(key, message []byte) []byte {
	h := newHMACSHA256(key)
	h.Write(message)
	return h.Sum(nil)
}

// NewHMACSHA256 returns a hash.Hash for incremental HMAC-SHA256, useful
// when the message is assembled across multiple Write calls.
func NewHMACSHA256(key []byte) hash.Hash {
	return newHMACSHA256(key)
}

// HMACEqual compares two MACs in constant time. Use this instead of
// bytes.Equal to avoid leaking timing information about where they differ.
func HMACEqual(mac1, mac2 []byte) bool {
	return hmac.Equal(mac1, mac2)
}
