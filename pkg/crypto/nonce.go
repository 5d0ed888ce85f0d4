package crypto

import (
	"encoding/binary"
	"errors"
)

// AEAD and privacy nonce/key sizes (Sections 4.8, 4.9).
const (
	NonceSize        = 13 // CRYPTO_AEAD_NONCE_LENGTH_BYTES
	SymmetricKeySize = 16 // CRYPTO_SYMMETRIC_KEY_LENGTH_BYTES
	MICSize          = 16 // CRYPTO_AEAD_MIC_LENGTH_BYTES

	PrivacyNonceMICOffset = 5  // start of the MIC fragment folded into the privacy nonce
	PrivacyNonceMICLength = 11 // length of that fragment
)

var privacyKeyInfo = []byte("PrivacyKey")

var (
	ErrInvalidKeySize = errors.New("nonce: invalid key size, must be 16 bytes")
	ErrInvalidMICSize = errors.New("nonce: invalid MIC size, must be 16 bytes")
)

// BuildAEADNonce builds the 13-byte AES-CCM nonce (Section 4.8.1.1, Table
// 17): SecurityFlags (1 byte) || MessageCounter (4 bytes LE) ||
// SourceNodeID (8 bytes LE). sourceNodeID is UnspecifiedNodeID for PASE,
// the operational node ID for CASE, or the message's source node ID for
// group sessions.
func BuildAEADNonce(securityFlags uint8, messageCounter uint32, sourceNodeID uint64) []byte {
	nonce := make([]byte, NonceSize)
	nonce[0] = securityFlags
	binary.LittleEndian.PutUint32(nonce[1:5], messageCounter)
	binary.LittleEndian.PutUint64(nonce[5:13], sourceNodeID)
	return nonce
}

// DerivePrivacyKey derives the 16-byte privacy key from a session
// encryption key (Section 4.9.1): HKDF(encryptionKey, salt=[],
// info="PrivacyKey", length=16).
func DerivePrivacyKey(encryptionKey []byte) ([]byte, error) {
	if len(encryptionKey) != SymmetricKeySize {
		return nil, ErrInvalidKeySize
	}
	return HKDFSHA256(encryptionKey, nil, privacyKeyInfo, SymmetricKeySize)
}

// BuildPrivacyNonce builds the 13-byte AES-CTR privacy nonce (Section
// 4.9.2): SessionID (2 bytes BE) || MIC[5:16] (11 bytes).
func BuildPrivacyNonce(sessionID uint16, mic []byte) ([]byte, error) {
	if len(mic) != MICSize {
		return nil, ErrInvalidMICSize
	}
	nonce := make([]byte, NonceSize)
	binary.BigEndian.PutUint16(nonce[0:2], sessionID)
	copy(nonce[2:13], mic[PrivacyNonceMICOffset:PrivacyNonceMICOffset+PrivacyNonceMICLength])
	return nonce, nil
}
