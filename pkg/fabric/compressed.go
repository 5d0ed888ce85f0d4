package fabric

import (
	"encoding/binary"
	"errors"

	"github.com/quietridge/matter/pkg/crypto"
)

// compressedFabricInfo is the HKDF info string "CompressedFabric", Spec
// Section 4.3.2.2.
var compressedFabricInfo = []byte{
	0x43, 0x6f, 0x6d, 0x70, 0x72, 0x65, 0x73, 0x73,
	0x65, 0x64, 0x46, 0x61, 0x62, 0x72, 0x69, 0x63,
}

var (
	ErrInvalidRootPublicKey = errors.New("fabric: invalid root public key length")
	ErrInvalidFabricID      = errors.New("fabric: invalid fabric ID")
)

// rawPublicKeyPoint strips the 0x04 uncompressed-point prefix from a
// public key if present, returning the 64-byte X||Y coordinates.
func rawPublicKeyPoint(key []byte) ([]byte, error) {
	switch len(key) {
	case 64:
		return key, nil
	case 65:
		if key[0] != 0x04 {
			return nil, ErrInvalidRootPublicKey
		}
		return key[1:], nil
	default:
		return nil, ErrInvalidRootPublicKey
	}
}

// CompressedFabricID derives the 64-bit compressed fabric identifier used
// in DNS-SD operational discovery in place of the full root-key/fabric-ID
// pair.
//
// Spec Section 4.3.2.2:
//
//	CompressedFabricIdentifier = Crypto_KDF(
//	    inputKey = TargetOperationalRootPublicKey (64 bytes, without 0x04 prefix),
//	    salt = TargetOperationalFabricID (8 bytes, big-endian),
//	    info = "CompressedFabric",
//	    len = 64 bits
//	)
//
// rootPublicKey may be given as 64 raw bytes or 65 bytes with the 0x04
// prefix; either is accepted and normalized.
func CompressedFabricID(rootPublicKey []byte, fabricID FabricID) ([CompressedFabricIDSize]byte, error) {
	var result [CompressedFabricIDSize]byte

	if !fabricID.IsValid() {
		return result, ErrInvalidFabricID
	}

	keyBytes, err := rawPublicKeyPoint(rootPublicKey)
	if err != nil {
		return result, err
	}

	salt := make([]byte, 8)
	binary.BigEndian.PutUint64(salt, uint64(fabricID))

	derived, err := crypto.HKDFSHA256(keyBytes, salt, compressedFabricInfo, CompressedFabricIDSize)
	if err != nil {
		return result, err
	}

	copy(result[:], derived)
	return result, nil
}

// CompressedFabricIDFromCert is CompressedFabricID for a public key taken
// straight from a certificate (65 bytes, 0x04-prefixed).
func CompressedFabricIDFromCert(rootPublicKey [RootPublicKeySize]byte, fabricID FabricID) ([CompressedFabricIDSize]byte, error) {
	return CompressedFabricID(rootPublicKey[:], fabricID)
}
