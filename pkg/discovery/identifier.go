package discovery

import (
	"fmt"

	"github.com/quietridge/matter/pkg/dnscodec"
	"github.com/quietridge/matter/pkg/fabric"
)

// CommissionableIdentifier selects which commissionable devices a caller is
// looking for. Exactly one of its fields should normally be set; the
// resolution priority chain (instance, long discriminator, short
// discriminator, vendor, device type, product, bare commissioning-mode) is
// applied by queryID and by matches.
type CommissionableIdentifier struct {
	InstanceName        string
	LongDiscriminator   *uint16
	ShortDiscriminator  *uint8
	VendorID            *fabric.VendorID
	DeviceType          *uint32
	ProductID           *uint16
	CommissioningModeOnly bool
}

// queryID derives a stable identifier for the active-query table, following
// the same priority chain used to resolve incoming records.
func (c CommissionableIdentifier) queryID() (string, error) {
	switch {
	case c.InstanceName != "":
		return "commissionable:instance:" + c.InstanceName, nil
	case c.LongDiscriminator != nil:
		return fmt.Sprintf("commissionable:long:%d", *c.LongDiscriminator), nil
	case c.ShortDiscriminator != nil:
		return fmt.Sprintf("commissionable:short:%d", *c.ShortDiscriminator), nil
	case c.VendorID != nil:
		return fmt.Sprintf("commissionable:vendor:%d", *c.VendorID), nil
	case c.DeviceType != nil:
		return fmt.Sprintf("commissionable:devtype:%d", *c.DeviceType), nil
	case c.ProductID != nil:
		return fmt.Sprintf("commissionable:product:%d", *c.ProductID), nil
	case c.CommissioningModeOnly:
		return "commissionable:cm", nil
	default:
		return "", ErrNoQueryIdentifier
	}
}

// subtypeQueries returns the DNS-SD PTR query tuples that will surface
// matching devices for this identifier.
func (c CommissionableIdentifier) subtypeQueries() []DNSQuery {
	name := commissionableSubtypeName(c)
	return []DNSQuery{{Name: name, Type: dnscodec.TypePTR}}
}

func commissionableSubtypeName(c CommissionableIdentifier) string {
	const base = "_sub." + ServiceCommissionable + "." + DefaultDomain
	switch {
	case c.LongDiscriminator != nil:
		return fmt.Sprintf("_L%d.%s", *c.LongDiscriminator, base)
	case c.ShortDiscriminator != nil:
		return fmt.Sprintf("_S%d.%s", *c.ShortDiscriminator, base)
	case c.VendorID != nil:
		return fmt.Sprintf("_V%d.%s", *c.VendorID, base)
	case c.DeviceType != nil:
		return fmt.Sprintf("_T%d.%s", *c.DeviceType, base)
	default:
		return fmt.Sprintf("_CM.%s", base)
	}
}

// matches reports whether a parsed commissionable record satisfies this identifier.
func (c CommissionableIdentifier) matches(instanceName string, txt *CommissionableTXT) bool {
	switch {
	case c.InstanceName != "":
		return instanceName == c.InstanceName
	case c.LongDiscriminator != nil:
		return txt.Discriminator == *c.LongDiscriminator
	case c.ShortDiscriminator != nil:
		return txt.ShortDiscriminator() == *c.ShortDiscriminator
	case c.VendorID != nil:
		return txt.VendorID == *c.VendorID
	case c.DeviceType != nil:
		return txt.DeviceType == *c.DeviceType
	case c.ProductID != nil:
		return txt.ProductID == *c.ProductID
	case c.CommissioningModeOnly:
		return txt.CommissioningMode != CommissioningModeDisabled
	default:
		return false
	}
}
