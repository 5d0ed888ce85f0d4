package discovery

import (
	"net"
	"testing"
	"time"
)

func TestRecordCacheSetGetDelete(t *testing.T) {
	c := newRecordCache[*OperationalDeviceRecord]()

	if _, ok := c.get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	rec := &OperationalDeviceRecord{DeviceIdentifier: "a"}
	c.set("a", rec)

	got, ok := c.get("a")
	if !ok || got != rec {
		t.Fatal("expected to get back the same record")
	}

	c.delete("a")
	if _, ok := c.get("a"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestRecordCacheSnapshotIsIndependentCopy(t *testing.T) {
	c := newRecordCache[*OperationalDeviceRecord]()
	c.set("a", &OperationalDeviceRecord{DeviceIdentifier: "a"})

	snap := c.snapshot()
	c.set("b", &OperationalDeviceRecord{DeviceIdentifier: "b"})

	if len(snap) != 1 {
		t.Fatalf("snapshot should not see later writes, got %d entries", len(snap))
	}
}

func TestOperationalDeviceRecordHasAddresses(t *testing.T) {
	rec := &OperationalDeviceRecord{Addresses: map[string]AddressEntry{}}
	if rec.HasAddresses() {
		t.Fatal("expected no addresses")
	}
	rec.Addresses["fd00::1"] = AddressEntry{IP: net.ParseIP("fd00::1"), Port: 5540}
	if !rec.HasAddresses() {
		t.Fatal("expected addresses present")
	}
}

func TestScopedAddressesSortedByPreference(t *testing.T) {
	rec := &OperationalDeviceRecord{Addresses: map[string]AddressEntry{
		"192.0.2.1": {IP: net.ParseIP("192.0.2.1"), Port: 1, Interface: "eth0", ExpiresAt: time.Now().Add(time.Minute)},
		"fd00::1":   {IP: net.ParseIP("fd00::1"), Port: 1, Interface: "eth0", ExpiresAt: time.Now().Add(time.Minute)},
	}}

	sorted := rec.ScopedAddresses()
	if len(sorted) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(sorted))
	}
	if !sorted[0].IP.Equal(net.ParseIP("fd00::1")) {
		t.Fatalf("expected ULA address first, got %s", sorted[0].IP)
	}
}

func TestZoneOfLinkLocalUsesInterface(t *testing.T) {
	if zoneOf(net.ParseIP("fe80::1"), "eth0") != "eth0" {
		t.Fatal("expected link-local address to carry its interface as zone")
	}
	if zoneOf(net.ParseIP("fd00::1"), "eth0") != "" {
		t.Fatal("expected non-link-local address to have no zone")
	}
}
