package crypto

import (
	"encoding/binary"
	"errors"
)

// Group-credential field sizes (Section 4.17.2).
const (
	CompressedFabricIDSize = 8
	GroupSessionIDSize     = 2
)

var (
	groupKeyInfo     = []byte("GroupKey v1.0")
	groupKeyHashInfo = []byte("GroupKeyHash")
)

var (
	ErrInvalidEpochKeySize           = errors.New("group: invalid epoch key size, must be 16 bytes")
	ErrInvalidCompressedFabricIDSize = errors.New("group: invalid compressed fabric ID size, must be 8 bytes")
	ErrInvalidOperationalKeySize     = errors.New("group: invalid operational key size, must be 16 bytes")
)

// DeriveGroupOperationalKeyV1 derives the operational group key from epochKey
// and compressedFabricID (Section 4.17.2.1): HKDF-SHA256 with the fabric ID
// as salt and "GroupKey v1.0" as info, producing a 16-byte key.
func DeriveGroupOperationalKeyV1(epochKey, compressedFabricID []byte) ([]byte, error) {
	if len(epochKey) != SymmetricKeySize {
		return nil, ErrInvalidEpochKeySize
	}
	if len(compressedFabricID) != CompressedFabricIDSize {
		return nil, ErrInvalidCompressedFabricIDSize
	}
	return HKDFSHA256(epochKey, compressedFabricID, groupKeyInfo, SymmetricKeySize)
}

// DeriveGroupSessionIDV1 derives the 16-bit group session ID from an
// operational group key: the top 2 bytes of HKDF-SHA256(operationalKey,
// salt=[], info="GroupKeyHash"), read big-endian.
func DeriveGroupSessionIDV1(operationalKey []byte) (uint16, error) {
	if len(operationalKey) != SymmetricKeySize {
		return 0, ErrInvalidOperationalKeySize
	}
	gkh, err := HKDFSHA256(operationalKey, nil, groupKeyHashInfo, GroupSessionIDSize)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(gkh), nil
}

// GroupOperationalCredentials bundles the keys and session ID derived from
// one group key set.
type GroupOperationalCredentials struct {
	EncryptionKey []byte // operational group key, used for AES-CCM
	PrivacyKey    []byte // derived from EncryptionKey, used for AES-CTR privacy
	SessionID     uint16
}

// DeriveGroupCredentialsV1 runs DeriveGroupOperationalKeyV1, DerivePrivacyKey,
// and DeriveGroupSessionIDV1 in sequence and bundles the results.
func DeriveGroupCredentialsV1(epochKey, compressedFabricID []byte) (*GroupOperationalCredentials, error) {
	encryptionKey, err := DeriveGroupOperationalKeyV1(epochKey, compressedFabricID)
	if err != nil {
		return nil, err
	}
	privacyKey, err := DerivePrivacyKey(encryptionKey)
	if err != nil {
		return nil, err
	}
	sessionID, err := DeriveGroupSessionIDV1(encryptionKey)
	if err != nil {
		return nil, err
	}
	return &GroupOperationalCredentials{
		EncryptionKey: encryptionKey,
		PrivacyKey:    privacyKey,
		SessionID:     sessionID,
	}, nil
}
