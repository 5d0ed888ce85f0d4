package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// P-256 field sizes (Section 3.5.1).
const (
	P256GroupSizeBits                = 256
	P256GroupSizeBytes               = 32
	P256PublicKeySizeBytes           = 65 // 0x04 || X || Y
	P256CompressedPublicKeySizeBytes = 33 // 0x02/0x03 || X
	P256SignatureSizeBytes           = 64 // r || s
)

// P256KeyPair is a P-256 key pair, kept in both ecdh and ecdsa form since
// Matter uses the same key for both ECDH (CASE/PASE key agreement) and
// ECDSA (certificate and message signing).
type P256KeyPair struct {
	ecdhPrivate  *ecdh.PrivateKey
	ecdsaPrivate *ecdsa.PrivateKey
}

// P256PublicKey returns the public key uncompressed: 0x04 || X || Y.
func (kp *P256KeyPair) P256PublicKey() []byte {
	return kp.ecdhPrivate.PublicKey().Bytes()
}

// P256PublicKeyCompressed returns the public key compressed: (0x02 if Y is
// even, else 0x03) || X.
func (kp *P256KeyPair) P256PublicKeyCompressed() []byte {
	pub := kp.ecdsaPrivate.PublicKey
	return elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y)
}

// P256PrivateKey returns the private key as a 32-byte scalar.
func (kp *P256KeyPair) P256PrivateKey() []byte {
	return kp.ecdhPrivate.Bytes()
}

// P256GenerateKeyPair generates a random P-256 key pair (Crypto_GenerateKeyPair,
// Section 3.5.2).
func P256GenerateKeyPair() (*P256KeyPair, error) {
	ecdhPriv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDH key: %w", err)
	}
	return keyPairFromECDH(ecdhPriv)
}

// P256KeyPairFromPrivateKey rebuilds a key pair from its 32-byte scalar.
func P256KeyPairFromPrivateKey(privateKey []byte) (*P256KeyPair, error) {
	if len(privateKey) != P256GroupSizeBytes {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", P256GroupSizeBytes, len(privateKey))
	}
	ecdhPriv, err := ecdh.P256().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return keyPairFromECDH(ecdhPriv)
}

func keyPairFromECDH(ecdhPriv *ecdh.PrivateKey) (*P256KeyPair, error) {
	ecdsaPriv, err := ecdhToECDSA(ecdhPriv)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to ECDSA key: %w", err)
	}
	return &P256KeyPair{ecdhPrivate: ecdhPriv, ecdsaPrivate: ecdsaPriv}, nil
}

// ecdhToECDSA rebuilds an ecdsa.PrivateKey from an ecdh.PrivateKey; the two
// stdlib packages don't share a representation even though the underlying
// scalar and curve point are the same.
func ecdhToECDSA(ecdhKey *ecdh.PrivateKey) (*ecdsa.PrivateKey, error) {
	d := new(big.Int).SetBytes(ecdhKey.Bytes())

	pubBytes := ecdhKey.PublicKey().Bytes()
	if len(pubBytes) != P256PublicKeySizeBytes || pubBytes[0] != 0x04 {
		return nil, errors.New("unexpected public key format")
	}
	x := new(big.Int).SetBytes(pubBytes[1:33])
	y := new(big.Int).SetBytes(pubBytes[33:65])

	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y},
		D:         d,
	}, nil
}

// parseUncompressedPublicKey parses and curve-validates a 65-byte
// uncompressed public key, shared by P256Verify and P256ValidatePublicKey.
func parseUncompressedPublicKey(publicKey []byte) (*ecdsa.PublicKey, error) {
	if len(publicKey) != P256PublicKeySizeBytes {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", P256PublicKeySizeBytes, len(publicKey))
	}
	if publicKey[0] != 0x04 {
		return nil, errors.New("public key must be in uncompressed format (starting with 0x04)")
	}

	x := new(big.Int).SetBytes(publicKey[1:33])
	y := new(big.Int).SetBytes(publicKey[33:65])
	if !elliptic.P256().IsOnCurve(x, y) {
		return nil, errors.New("public key point is not on the P-256 curve")
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}

// P256Sign signs message with ECDSA over its SHA-256 digest (Crypto_Sign,
// Section 3.5.3), returning a 64-byte r||s signature with each component
// zero-padded to 32 bytes.
func P256Sign(keyPair *P256KeyPair, message []byte) ([]byte, error) {
	hash := SHA256(message)
	r, s, err := ecdsa.Sign(rand.Reader, keyPair.ecdsaPrivate, hash[:])
	if err != nil {
		return nil, fmt.Errorf("ECDSA sign failed: %w", err)
	}

	sig := make([]byte, P256SignatureSizeBytes)
	rBytes, sBytes := r.Bytes(), s.Bytes()
	copy(sig[P256GroupSizeBytes-len(rBytes):P256GroupSizeBytes], rBytes)
	copy(sig[P256SignatureSizeBytes-len(sBytes):], sBytes)
	return sig, nil
}

// P256Verify checks a 64-byte r||s signature over message against a
// 65-byte uncompressed publicKey (Crypto_Verify, Section 3.5.3).
func P256Verify(publicKey, message, signature []byte) (bool, error) {
	pub, err := parseUncompressedPublicKey(publicKey)
	if err != nil {
		return false, err
	}
	if len(signature) != P256SignatureSizeBytes {
		return false, fmt.Errorf("signature must be %d bytes, got %d", P256SignatureSizeBytes, len(signature))
	}

	r := new(big.Int).SetBytes(signature[:P256GroupSizeBytes])
	s := new(big.Int).SetBytes(signature[P256GroupSizeBytes:])
	hash := SHA256(message)
	return ecdsa.Verify(pub, hash[:], r, s), nil
}

// P256ECDH computes the 32-byte ECDH shared secret (x-coordinate of the
// shared point) between keyPair and a peer's 65-byte uncompressed public
// key (Crypto_ECDH, Section 3.5.4).
func P256ECDH(keyPair *P256KeyPair, peerPublicKey []byte) ([]byte, error) {
	if len(peerPublicKey) != P256PublicKeySizeBytes {
		return nil, fmt.Errorf("peer public key must be %d bytes, got %d", P256PublicKeySizeBytes, len(peerPublicKey))
	}
	peerPub, err := ecdh.P256().NewPublicKey(peerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid peer public key: %w", err)
	}
	secret, err := keyPair.ecdhPrivate.ECDH(peerPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH computation failed: %w", err)
	}
	return secret, nil
}

// P256ECDHFromPrivateKey is P256ECDH starting from a raw private key scalar.
func P256ECDHFromPrivateKey(privateKey, peerPublicKey []byte) ([]byte, error) {
	kp, err := P256KeyPairFromPrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return P256ECDH(kp, peerPublicKey)
}

// P256PublicKeyFromCompressed expands a 33-byte compressed public key
// (0x02/0x03 || X) into 65-byte uncompressed form (0x04 || X || Y).
func P256PublicKeyFromCompressed(compressed []byte) ([]byte, error) {
	if len(compressed) != P256CompressedPublicKeySizeBytes {
		return nil, fmt.Errorf("compressed key must be %d bytes, got %d", P256CompressedPublicKeySizeBytes, len(compressed))
	}

	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), compressed)
	if x == nil {
		return nil, errors.New("failed to decompress public key")
	}

	result := make([]byte, P256PublicKeySizeBytes)
	result[0] = 0x04
	xBytes, yBytes := x.Bytes(), y.Bytes()
	copy(result[1+P256GroupSizeBytes-len(xBytes):1+P256GroupSizeBytes], xBytes)
	copy(result[1+P256GroupSizeBytes+P256GroupSizeBytes-len(yBytes):], yBytes)
	return result, nil
}

// P256ValidatePublicKey checks that publicKey is a well-formed, on-curve
// uncompressed P-256 point.
func P256ValidatePublicKey(publicKey []byte) error {
	_, err := parseUncompressedPublicKey(publicKey)
	return err
}
