package credentials

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"
)

// convertExtensions converts X.509 extensions to Matter format.
func convertExtensions(x509Cert *x509.Certificate) (Extensions, error) {
	var ext Extensions

	// Process extensions in the order they appear
	for _, x509Ext := range x509Cert.Extensions {
		switch {
		case x509Ext.Id.Equal(OIDExtensionBasicConstraints):
			bc, err := parseBasicConstraints(x509Ext.Value)
			if err != nil {
				return ext, err
			}
			ext.BasicConstraints = bc

		case x509Ext.Id.Equal(OIDExtensionKeyUsage):
			ku, err := parseKeyUsage(x509Ext.Value)
			if err != nil {
				return ext, err
			}
			ext.KeyUsage = ku

		case x509Ext.Id.Equal(OIDExtensionExtKeyUsage):
			eku, err := parseExtKeyUsage(x509Ext.Value)
			if err != nil {
				return ext, err
			}
			ext.ExtendedKeyUsage = eku

		case x509Ext.Id.Equal(OIDExtensionSubjectKeyID):
			ski, err := parseSubjectKeyID(x509Ext.Value)
			if err != nil {
				return ext, err
			}
			ext.SubjectKeyID = ski

		case x509Ext.Id.Equal(OIDExtensionAuthorityKeyID):
			aki, err := parseAuthorityKeyID(x509Ext.Value)
			if err != nil {
				return ext, err
			}
			ext.AuthorityKeyID = aki

		default:
			// Store as future extension (raw DER including OID)
			der, err := asn1.Marshal(x509Ext)
			if err != nil {
				return ext, fmt.Errorf("%w: future extension: %v", ErrInvalidExtension, err)
			}
			ext.FutureExtensions = append(ext.FutureExtensions, FutureExtensionExt{
				Data: der,
			})
		}
	}

	return ext, nil
}

// parseBasicConstraints parses the BasicConstraints extension value.
func parseBasicConstraints(value []byte) (*BasicConstraints, error) {
	var bc struct {
		IsCA       bool `asn1:"optional"`
		MaxPathLen int  `asn1:"optional,default:-1"`
	}

	if _, err := asn1.Unmarshal(value, &bc); err != nil {
		return nil, fmt.Errorf("%w: basic constraints: %v", ErrInvalidExtension, err)
	}

	result := &BasicConstraints{
		IsCA: bc.IsCA,
	}

	if bc.MaxPathLen >= 0 {
		pl := uint8(bc.MaxPathLen)
		result.PathLenConstraint = &pl
	}

	return result, nil
}

// parseKeyUsage parses the KeyUsage extension value.
func parseKeyUsage(value []byte) (*KeyUsageExt, error) {
	var bits asn1.BitString
	if _, err := asn1.Unmarshal(value, &bits); err != nil {
		return nil, fmt.Errorf("%w: key usage: %v", ErrInvalidExtension, err)
	}

	// Convert ASN.1 bit string to Matter key usage flags
	// ASN.1 bit string has bits in reverse order within each byte
	var usage KeyUsage
	if bits.At(0) != 0 {
		usage |= KeyUsageDigitalSignature
	}
	if bits.At(1) != 0 {
		usage |= KeyUsageNonRepudiation
	}
	if bits.At(2) != 0 {
		usage |= KeyUsageKeyEncipherment
	}
	if bits.At(3) != 0 {
		usage |= KeyUsageDataEncipherment
	}
	if bits.At(4) != 0 {
		usage |= KeyUsageKeyAgreement
	}
	if bits.At(5) != 0 {
		usage |= KeyUsageKeyCertSign
	}
	if bits.At(6) != 0 {
		usage |= KeyUsageCRLSign
	}
	if bits.At(7) != 0 {
		usage |= KeyUsageEncipherOnly
	}
	if bits.At(8) != 0 {
		usage |= KeyUsageDecipherOnly
	}

	return &KeyUsageExt{Usage: usage}, nil
}

// parseExtKeyUsage parses the ExtendedKeyUsage extension value.
func parseExtKeyUsage(value []byte) (*ExtendedKeyUsageExt, error) {
	var oids []asn1.ObjectIdentifier
	if _, err := asn1.Unmarshal(value, &oids); err != nil {
		return nil, fmt.Errorf("%w: extended key usage: %v", ErrInvalidExtension, err)
	}

	var purposes []KeyPurposeID
	for _, oid := range oids {
		kp := OIDToKeyPurpose(oid)
		if kp == KeyPurposeUnknown {
			return nil, fmt.Errorf("%w: unknown key purpose OID: %v", ErrInvalidExtension, oid)
		}
		purposes = append(purposes, kp)
	}

	return &ExtendedKeyUsageExt{KeyPurposes: purposes}, nil
}

// parseSubjectKeyID parses the SubjectKeyIdentifier extension value.
func parseSubjectKeyID(value []byte) (*SubjectKeyIDExt, error) {
	var keyID []byte
	if _, err := asn1.Unmarshal(value, &keyID); err != nil {
		return nil, fmt.Errorf("%w: subject key ID: %v", ErrInvalidExtension, err)
	}

	if len(keyID) != 20 {
		return nil, fmt.Errorf("%w: subject key ID must be 20 bytes, got %d", ErrInvalidExtension, len(keyID))
	}

	ski := &SubjectKeyIDExt{}
	copy(ski.KeyID[:], keyID)
	return ski, nil
}

// parseAuthorityKeyID parses the AuthorityKeyIdentifier extension value.
func parseAuthorityKeyID(value []byte) (*AuthorityKeyIDExt, error) {
	// AuthorityKeyIdentifier has optional fields: keyIdentifier, authorityCertIssuer, authorityCertSerialNumber
	// Matter only supports keyIdentifier
	var aki struct {
		KeyIdentifier             []byte        `asn1:"optional,tag:0"`
		AuthorityCertIssuer       asn1.RawValue `asn1:"optional,tag:1"`
		AuthorityCertSerialNumber *big.Int      `asn1:"optional,tag:2"`
	}

	if _, err := asn1.Unmarshal(value, &aki); err != nil {
		return nil, fmt.Errorf("%w: authority key ID: %v", ErrInvalidExtension, err)
	}

	if len(aki.KeyIdentifier) != 20 {
		return nil, fmt.Errorf("%w: authority key ID must be 20 bytes, got %d", ErrInvalidExtension, len(aki.KeyIdentifier))
	}

	result := &AuthorityKeyIDExt{}
	copy(result.KeyID[:], aki.KeyIdentifier)
	return result, nil
}
