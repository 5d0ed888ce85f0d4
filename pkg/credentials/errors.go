package credentials

import "errors"

// Parsing and encoding errors.
var (
	ErrInvalidCertificate  = errors.New("invalid certificate")
	ErrInvalidSerialNumber = errors.New("serial number must be 1-20 bytes")
	ErrInvalidSignatureAlgo = errors.New("unsupported signature algorithm")
	ErrInvalidPublicKeyAlgo = errors.New("unsupported public key algorithm")
	ErrInvalidEllipticCurve = errors.New("unsupported elliptic curve")
	ErrInvalidPublicKey     = errors.New("invalid public key")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidDN            = errors.New("invalid distinguished name")
	ErrInvalidExtension     = errors.New("invalid extension")
	ErrMissingExtension     = errors.New("missing required extension")
	ErrInvalidKeyUsage      = errors.New("invalid key usage")
	ErrInvalidTime          = errors.New("invalid time value")
	ErrCertificateTooLarge  = errors.New("certificate exceeds maximum size")
	ErrUnsupportedOID       = errors.New("unsupported OID")
)

// Certificate-type and certificate-chain validation errors.
var (
	ErrInvalidCertType  = errors.New("cannot determine certificate type")
	ErrMissingNodeID    = errors.New("NOC must have matter-node-id")
	ErrMissingFabricID  = errors.New("NOC must have matter-fabric-id")
	ErrMissingRCACID    = errors.New("RCAC must have matter-rcac-id")
	ErrMissingICACID    = errors.New("ICAC must have matter-icac-id")
	ErrInvalidNodeID    = errors.New("invalid node ID")
	ErrInvalidFabricID  = errors.New("fabric ID must not be 0")
	ErrTooManyDNAttributes = errors.New("DN must have at most 5 attributes")
	ErrTooManyNOCCATs   = errors.New("NOC must have at most 3 matter-noc-cat attributes")
	ErrDuplicateNOCCAT  = errors.New("duplicate CAT identifier")
	ErrForbiddenAttribute      = errors.New("forbidden DN attribute for certificate type")
	ErrBasicConstraintsMismatch = errors.New("basic constraints mismatch for certificate type")
	ErrKeyUsageMismatch    = errors.New("key usage mismatch for certificate type")
	ErrExtKeyUsageMismatch = errors.New("extended key usage mismatch for certificate type")
	ErrMissingSubjectKeyID   = errors.New("missing subject key identifier extension")
	ErrMissingAuthorityKeyID = errors.New("missing authority key identifier extension")
	ErrSelfSignedMismatch    = errors.New("RCAC subject key ID must match authority key ID")
	ErrFabricIDMismatch      = errors.New("fabric ID mismatch in certificate chain")
)

// X.509 interop errors.
var (
	ErrX509ParseFailed           = errors.New("failed to parse X.509 certificate")
	ErrX509EncodeFailed          = errors.New("failed to encode X.509 certificate")
	ErrUnsupportedX509Feature    = errors.New("unsupported X.509 feature")
	ErrSignatureConversionFailed = errors.New("failed to convert signature format")
)
