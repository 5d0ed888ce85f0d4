package credentials

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
)

// buildX509Extensions builds X.509 extensions from Matter extensions.
func buildX509Extensions(cert *Certificate) ([]pkix.Extension, error) {
	var exts []pkix.Extension

	// Basic Constraints
	if cert.Extensions.BasicConstraints != nil {
		bc := cert.Extensions.BasicConstraints
		var bcValue struct {
			IsCA       bool `asn1:"optional"`
			MaxPathLen int  `asn1:"optional,default:-1"`
		}
		bcValue.IsCA = bc.IsCA
		if bc.PathLenConstraint != nil {
			bcValue.MaxPathLen = int(*bc.PathLenConstraint)
		} else {
			bcValue.MaxPathLen = -1
		}

		value, err := asn1.Marshal(bcValue)
		if err != nil {
			return nil, fmt.Errorf("basic constraints: %w", err)
		}

		exts = append(exts, pkix.Extension{
			Id:       OIDExtensionBasicConstraints,
			Critical: true,
			Value:    value,
		})
	}

	// Key Usage
	if cert.Extensions.KeyUsage != nil {
		ku := cert.Extensions.KeyUsage.Usage
		bits := keyUsageToBitString(ku)
		value, err := asn1.Marshal(bits)
		if err != nil {
			return nil, fmt.Errorf("key usage: %w", err)
		}

		exts = append(exts, pkix.Extension{
			Id:       OIDExtensionKeyUsage,
			Critical: true,
			Value:    value,
		})
	}

	// Extended Key Usage
	if cert.Extensions.ExtendedKeyUsage != nil {
		var oids []asn1.ObjectIdentifier
		for _, kp := range cert.Extensions.ExtendedKeyUsage.KeyPurposes {
			oid := KeyPurposeToOID(kp)
			if oid != nil {
				oids = append(oids, oid)
			}
		}

		value, err := asn1.Marshal(oids)
		if err != nil {
			return nil, fmt.Errorf("extended key usage: %w", err)
		}

		exts = append(exts, pkix.Extension{
			Id:       OIDExtensionExtKeyUsage,
			Critical: true,
			Value:    value,
		})
	}

	// Subject Key Identifier
	if cert.Extensions.SubjectKeyID != nil {
		value, err := asn1.Marshal(cert.Extensions.SubjectKeyID.KeyID[:])
		if err != nil {
			return nil, fmt.Errorf("subject key ID: %w", err)
		}

		exts = append(exts, pkix.Extension{
			Id:       OIDExtensionSubjectKeyID,
			Critical: false,
			Value:    value,
		})
	}

	// Authority Key Identifier
	if cert.Extensions.AuthorityKeyID != nil {
		// AuthorityKeyIdentifier with just keyIdentifier field
		aki := struct {
			KeyIdentifier []byte `asn1:"optional,tag:0"`
		}{
			KeyIdentifier: cert.Extensions.AuthorityKeyID.KeyID[:],
		}

		value, err := asn1.Marshal(aki)
		if err != nil {
			return nil, fmt.Errorf("authority key ID: %w", err)
		}

		exts = append(exts, pkix.Extension{
			Id:       OIDExtensionAuthorityKeyID,
			Critical: false,
			Value:    value,
		})
	}

	// Future extensions (pass through as-is)
	for _, fe := range cert.Extensions.FutureExtensions {
		// The future extension data should be the raw extension value
		// We don't know the OID, so we can't properly reconstruct it
		// This is a limitation - future extensions need special handling
		_ = fe
	}

	return exts, nil
}

// keyUsageToBitString converts Matter KeyUsage to ASN.1 bit string.
func keyUsageToBitString(ku KeyUsage) asn1.BitString {
	// Calculate the number of bits needed
	var bytes []byte
	var bitLen int

	// Key usage bits in ASN.1 order
	// Bit 0 = digitalSignature, Bit 1 = nonRepudiation, etc.
	var bits uint16
	if ku&KeyUsageDigitalSignature != 0 {
		bits |= 0x8000
	}
	if ku&KeyUsageNonRepudiation != 0 {
		bits |= 0x4000
	}
	if ku&KeyUsageKeyEncipherment != 0 {
		bits |= 0x2000
	}
	if ku&KeyUsageDataEncipherment != 0 {
		bits |= 0x1000
	}
	if ku&KeyUsageKeyAgreement != 0 {
		bits |= 0x0800
	}
	if ku&KeyUsageKeyCertSign != 0 {
		bits |= 0x0400
	}
	if ku&KeyUsageCRLSign != 0 {
		bits |= 0x0200
	}
	if ku&KeyUsageEncipherOnly != 0 {
		bits |= 0x0100
	}
	if ku&KeyUsageDecipherOnly != 0 {
		bits |= 0x0080
	}

	// Determine minimum bytes needed
	if bits&0x00FF != 0 {
		bytes = []byte{byte(bits >> 8), byte(bits)}
		bitLen = 16 - trailingZeroBits(uint16(bits))
	} else if bits != 0 {
		bytes = []byte{byte(bits >> 8)}
		bitLen = 8 - trailingZeroBits(uint16(bits>>8))
	} else {
		bytes = []byte{0}
		bitLen = 0
	}

	return asn1.BitString{Bytes: bytes, BitLength: bitLen}
}

// trailingZeroBits counts trailing zero bits in a uint16.
func trailingZeroBits(v uint16) int {
	if v == 0 {
		return 16
	}
	n := 0
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}
