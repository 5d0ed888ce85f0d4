// Package crypto implements the cryptographic primitives used by Matter
// sessions: hashing, HMAC, HKDF/PBKDF2 key derivation, P256 ECDH/ECDSA,
// AES-CCM-backed group operations, and AES-CTR privacy encryption.
package crypto

import (
	"crypto/sha256"
	"hash"
)

// Output-length constants for SHA-256 (CRYPTO_HASH_LEN_BITS/BYTES).
const (
	SHA256LenBits  = 256
	SHA256LenBytes = 32
)

// SHA256 returns the SHA-256 digest of message.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

// SHA256Slice is SHA256 with the digest returned as a slice rather than a
// fixed-size array, for callers that need to pass it on without copying.
func SHA256Slice(message []byte) []byte {
	sum := sha256.Sum256(message)
	return sum[:]
}

// NewSHA256 returns a hash.Hash for incremental SHA-256 hashing, e.g. over
// a message assembled from multiple buffers.
func NewSHA256() hash.Hash {
	return sha256.New()
}
