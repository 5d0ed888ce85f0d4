package credentials

import "strings"

// SignatureAlgo is the signature algorithm field of a Matter certificate.
// Spec Section 6.5.5
type SignatureAlgo uint8

const (
	SignatureAlgoUnknown     SignatureAlgo = 0
	SignatureAlgoECDSASHA256 SignatureAlgo = 1 // only supported algorithm
)

func (s SignatureAlgo) String() string {
	if s == SignatureAlgoECDSASHA256 {
		return "ecdsa-with-SHA256"
	}
	return "unknown"
}

// PublicKeyAlgo is the public key algorithm field of a Matter certificate.
// Spec Section 6.5.8
type PublicKeyAlgo uint8

const (
	PublicKeyAlgoUnknown PublicKeyAlgo = 0
	PublicKeyAlgoEC      PublicKeyAlgo = 1 // only supported algorithm
)

func (p PublicKeyAlgo) String() string {
	if p == PublicKeyAlgoEC {
		return "id-ecPublicKey"
	}
	return "unknown"
}

// EllipticCurveID is the curve field of a Matter certificate's public key.
// Spec Section 6.5.9
type EllipticCurveID uint8

const (
	EllipticCurveUnknown    EllipticCurveID = 0
	EllipticCurvePrime256v1 EllipticCurveID = 1 // only supported curve
)

func (e EllipticCurveID) String() string {
	if e == EllipticCurvePrime256v1 {
		return "prime256v1"
	}
	return "unknown"
}

// KeyUsage holds the X.509 key usage extension flags.
// Spec Section 6.5.11.2
type KeyUsage uint16

const (
	KeyUsageDigitalSignature KeyUsage = 0x0001
	KeyUsageNonRepudiation   KeyUsage = 0x0002
	KeyUsageKeyEncipherment  KeyUsage = 0x0004
	KeyUsageDataEncipherment KeyUsage = 0x0008
	KeyUsageKeyAgreement     KeyUsage = 0x0010
	KeyUsageKeyCertSign      KeyUsage = 0x0020
	KeyUsageCRLSign          KeyUsage = 0x0040
	KeyUsageEncipherOnly     KeyUsage = 0x0080
	KeyUsageDecipherOnly     KeyUsage = 0x0100
)

var keyUsageFlagNames = []struct {
	flag KeyUsage
	name string
}{
	{KeyUsageDigitalSignature, "digitalSignature"},
	{KeyUsageNonRepudiation, "nonRepudiation"},
	{KeyUsageKeyEncipherment, "keyEncipherment"},
	{KeyUsageDataEncipherment, "dataEncipherment"},
	{KeyUsageKeyAgreement, "keyAgreement"},
	{KeyUsageKeyCertSign, "keyCertSign"},
	{KeyUsageCRLSign, "cRLSign"},
	{KeyUsageEncipherOnly, "encipherOnly"},
	{KeyUsageDecipherOnly, "decipherOnly"},
}

func (k KeyUsage) String() string {
	var names []string
	for _, f := range keyUsageFlagNames {
		if k.HasFlag(f.flag) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}

func (k KeyUsage) HasFlag(flag KeyUsage) bool {
	return k&flag != 0
}

// KeyPurposeID is an extended key usage purpose identifier.
// Spec Section 6.5.11.3
type KeyPurposeID uint8

const (
	KeyPurposeUnknown         KeyPurposeID = 0
	KeyPurposeServerAuth      KeyPurposeID = 1
	KeyPurposeClientAuth      KeyPurposeID = 2
	KeyPurposeCodeSigning     KeyPurposeID = 3
	KeyPurposeEmailProtection KeyPurposeID = 4
	KeyPurposeTimeStamping    KeyPurposeID = 5
	KeyPurposeOCSPSigning     KeyPurposeID = 6
)

var keyPurposeNames = map[KeyPurposeID]string{
	KeyPurposeServerAuth:      "serverAuth",
	KeyPurposeClientAuth:      "clientAuth",
	KeyPurposeCodeSigning:     "codeSigning",
	KeyPurposeEmailProtection: "emailProtection",
	KeyPurposeTimeStamping:    "timeStamping",
	KeyPurposeOCSPSigning:     "OCSPSigning",
}

func (k KeyPurposeID) String() string {
	if name, ok := keyPurposeNames[k]; ok {
		return name
	}
	return "unknown"
}

// CertificateType classifies a Matter certificate by role.
type CertificateType int

const (
	CertTypeUnknown CertificateType = iota
	CertTypeRCAC                    // Root CA Certificate
	CertTypeICAC                    // Intermediate CA Certificate
	CertTypeNOC                     // Node Operational Certificate
	CertTypeVVSC                    // Vendor Verification Signer Certificate
	CertTypeFirmwareSigning         // Firmware Signing Certificate
)

var certTypeNames = map[CertificateType]string{
	CertTypeRCAC:            "RCAC",
	CertTypeICAC:            "ICAC",
	CertTypeNOC:             "NOC",
	CertTypeVVSC:            "VVSC",
	CertTypeFirmwareSigning: "FirmwareSigning",
}

func (c CertificateType) String() string {
	if name, ok := certTypeNames[c]; ok {
		return name
	}
	return "Unknown"
}
