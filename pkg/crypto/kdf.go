package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 iteration bounds (CRYPTO_PBKDF_ITERATIONS_MIN/MAX).
const (
	PBKDF2IterationsMin = 1000
	PBKDF2IterationsMax = 100000
)

func expand(reader io.Reader, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HKDFSHA256 runs the full HKDF-Extract-then-Expand chain (RFC 5869) and
// returns length bytes of derived key material from inputKey, salt, and
// info. salt and info may be nil.
func HKDFSHA256(inputKey, salt, info []byte, length int) ([]byte, error) {
	return expand(hkdf.New(sha256.New, inputKey, salt, info), length)
}

// HKDFExtractSHA256 runs only HKDF-Extract, returning the 32-byte
// pseudorandom key. salt may be nil, in which case it defaults to a
// zero-filled hash-length block.
func HKDFExtractSHA256(inputKey, salt []byte) []byte {
	return hkdf.Extract(sha256.New, inputKey, salt)
}

// HKDFExpandSHA256 runs only HKDF-Expand against an already-extracted prk,
// returning length bytes of output keying material.
func HKDFExpandSHA256(prk, info []byte, length int) ([]byte, error) {
	return expand(hkdf.Expand(sha256.New, prk, info), length)
}

// PBKDF2SHA256 derives keyLen bytes from password using PBKDF2-HMAC-SHA256
// with the given salt and iteration count. Matter requires a 16-32 byte
// salt and an iteration count within [PBKDF2IterationsMin,
// PBKDF2IterationsMax]; callers validating passcode parameters enforce that
// range before calling this.
func PBKDF2SHA256(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}
