package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// AES-128-CTR parameters for privacy encryption (Section 3.7), built on
// the counter construction from NIST 800-38C Appendix A.3 with q=2.
const (
	AESCTRKeySize   = 16
	AESCTRNonceSize = 13 // CRYPTO_PRIVACY_NONCE_LENGTH_BYTES

	aesCTRBlockSize = 16
	aesCTRLenSize   = 2 // L = 15 - nonceSize
)

var (
	ErrAESCTRInvalidKeySize   = errors.New("aesctr: invalid key size, must be 16 bytes")
	ErrAESCTRInvalidNonceSize = errors.New("aesctr: invalid nonce size, must be 13 bytes")
)

// AESCTR is an AES-128-CTR cipher instance for Matter privacy encryption.
type AESCTR struct {
	block cipher.Block
}

// NewAESCTR builds an AESCTR from a 16-byte key.
func NewAESCTR(key []byte) (*AESCTR, error) {
	if len(key) != AESCTRKeySize {
		return nil, ErrAESCTRInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &AESCTR{block: block}, nil
}

// NonceSize returns the nonce length this cipher requires.
func (c *AESCTR) NonceSize() int {
	return AESCTRNonceSize
}

// Encrypt runs Crypto_Privacy_Encrypt (Section 3.7.1): AES-CTR over
// plaintext with a 13-byte nonce, returning ciphertext of equal length.
func (c *AESCTR) Encrypt(nonce, plaintext []byte) ([]byte, error) {
	if len(nonce) != AESCTRNonceSize {
		return nil, ErrAESCTRInvalidNonceSize
	}
	ciphertext := make([]byte, len(plaintext))
	c.ctrXOR(nonce, ciphertext, plaintext)
	return ciphertext, nil
}

// Decrypt runs Crypto_Privacy_Decrypt (Section 3.7.2). CTR mode makes this
// the same transform as Encrypt.
func (c *AESCTR) Decrypt(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != AESCTRNonceSize {
		return nil, ErrAESCTRInvalidNonceSize
	}
	plaintext := make([]byte, len(ciphertext))
	c.ctrXOR(nonce, plaintext, ciphertext)
	return plaintext, nil
}

// ctrXOR builds the initial counter block A_1 (Flags || Nonce || Counter,
// with Flags = L-1 and the counter starting at 1, not 0 — counter 0 is
// reserved for S_0 tag encryption in AES-CCM) and runs CTR mode over src.
func (c *AESCTR) ctrXOR(nonce []byte, dst, src []byte) {
	if len(src) == 0 {
		return
	}

	var ctr [aesCTRBlockSize]byte
	ctr[0] = aesCTRLenSize - 1
	copy(ctr[1:1+AESCTRNonceSize], nonce)
	ctr[aesCTRBlockSize-1] = 1

	cipher.NewCTR(c.block, ctr[:]).XORKeyStream(dst, src)
}

// AESCTREncrypt is Encrypt without a pre-built AESCTR.
func AESCTREncrypt(key, nonce, plaintext []byte) ([]byte, error) {
	ctr, err := NewAESCTR(key)
	if err != nil {
		return nil, err
	}
	return ctr.Encrypt(nonce, plaintext)
}

// AESCTRDecrypt is Decrypt without a pre-built AESCTR.
func AESCTRDecrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	ctr, err := NewAESCTR(key)
	if err != nil {
		return nil, err
	}
	return ctr.Decrypt(nonce, ciphertext)
}
