package discovery

import (
	"testing"
	"time"
)

func TestParseCommissionableTXTRequiresDiscriminatorAndMode(t *testing.T) {
	if _, err := ParseCommissionableTXT([]string{"CM=1"}); err != ErrInvalidTXTRecord {
		t.Fatalf("expected ErrInvalidTXTRecord for missing D, got %v", err)
	}
	if _, err := ParseCommissionableTXT([]string{"D=840"}); err != ErrInvalidTXTRecord {
		t.Fatalf("expected ErrInvalidTXTRecord for missing CM, got %v", err)
	}
}

func TestParseCommissionableTXTRoundTrip(t *testing.T) {
	src := CommissionableTXT{
		Discriminator:     840,
		CommissioningMode: CommissioningModeBasic,
		VendorID:          0xFFF1,
		ProductID:         1,
		DeviceType:        22,
		DeviceName:        "thermostat",
		ActiveThreshold:   5 * time.Second,
		RotatingID:        "abc123",
	}

	parsed, err := ParseCommissionableTXT(src.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Discriminator != src.Discriminator {
		t.Fatalf("discriminator mismatch: got %d, want %d", parsed.Discriminator, src.Discriminator)
	}
	if parsed.CommissioningMode != src.CommissioningMode {
		t.Fatalf("commissioning mode mismatch")
	}
	if parsed.ActiveThreshold != src.ActiveThreshold {
		t.Fatalf("active threshold mismatch: got %v, want %v", parsed.ActiveThreshold, src.ActiveThreshold)
	}
	if parsed.RotatingID != src.RotatingID {
		t.Fatalf("rotating id mismatch")
	}
}

func TestParseCommissionableTXTPreservesUnknownKeys(t *testing.T) {
	parsed, err := ParseCommissionableTXT([]string{"D=840", "CM=1", "XQ=future"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Unknown["XQ"] != "future" {
		t.Fatalf("expected unrecognized key XQ to be preserved, got %v", parsed.Unknown)
	}
}

func TestCommissionableTXTValidateAllowsZeroValueStructLiteral(t *testing.T) {
	// A caller building a TXT record to advertise (not parsed off the wire)
	// is free to leave CommissioningMode at its zero value.
	txt := CommissionableTXT{Discriminator: 840}
	if err := txt.Validate(); err != nil {
		t.Fatalf("unexpected validation error for a freshly constructed record: %v", err)
	}
}

func TestCommissionableTXTValidateRejectsOutOfRangeDiscriminator(t *testing.T) {
	txt := CommissionableTXT{Discriminator: MaxDiscriminator + 1}
	if err := txt.Validate(); err != ErrInvalidDiscriminator {
		t.Fatalf("expected ErrInvalidDiscriminator, got %v", err)
	}
}

func TestCommissionableTXTShortDiscriminator(t *testing.T) {
	txt := CommissionableTXT{Discriminator: 0x0F23}
	if got := txt.ShortDiscriminator(); got != 0xF {
		t.Fatalf("got %x, want 0xF", got)
	}
}

func TestParseOperationalTXTRoundTrip(t *testing.T) {
	src := OperationalTXT{
		IdleInterval:    500 * time.Millisecond,
		ActiveInterval:  300 * time.Millisecond,
		ActiveThreshold: 4 * time.Second,
		TCPSupported:    true,
		ICDMode:         ICDModeLIT,
		ICDSet:          true,
	}
	parsed, err := ParseOperationalTXT(src.Encode())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.IdleInterval != src.IdleInterval {
		t.Fatalf("idle interval mismatch")
	}
	if parsed.ICDMode != src.ICDMode || !parsed.ICDSet {
		t.Fatalf("ICD mode mismatch")
	}
}

func TestParseOperationalTXTPreservesUnknownKeys(t *testing.T) {
	parsed, err := ParseOperationalTXT([]string{"XQ=future"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Unknown["XQ"] != "future" {
		t.Fatalf("expected unrecognized key XQ to be preserved, got %v", parsed.Unknown)
	}
}
