package reversezone

import "testing"

func TestConvertPTRtoIPv4ClasslessDelegation(t *testing.T) {
	addr, err := ConvertPTRtoIPv4("0/26.2.0.192.in-addr.arpa.", "25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "192.0.2.25" {
		t.Errorf("got %q, want 192.0.2.25", addr)
	}
}

func TestPtrIsInZoneClasslessDelegation(t *testing.T) {
	if err := PtrIsInZone("0/26.2.0.192.in-addr.arpa.", "25", RecordTypePTR); err != nil {
		t.Errorf("expected record inside delegated zone to be ok, got %v", err)
	}
}

func TestPtrIsInZoneIPv4OutsideZone(t *testing.T) {
	err := PtrIsInZone("2.0.192.in-addr.arpa.", "25.3", RecordTypePTR)
	if err == nil {
		t.Fatal("expected an InvalidRequestError")
	}
	if _, ok := err.(*InvalidRequestError); !ok {
		t.Errorf("expected *InvalidRequestError, got %T", err)
	}
}

func TestPtrIsInZoneIPv6Valid(t *testing.T) {
	zone := "0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa."
	record := "0.0.0.0.0.0.0.0"
	if err := PtrIsInZone(zone, record, RecordTypePTR); err != nil {
		t.Errorf("expected a valid IPv6 PTR to be ok, got %v", err)
	}
}

func TestPtrIsInZoneIPv6Invalid(t *testing.T) {
	zone := "0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa."
	record := "zz"
	if err := PtrIsInZone(zone, record, RecordTypePTR); err == nil {
		t.Error("expected an invalid nibble to be rejected")
	}
}

func TestPtrIsInZoneNonPTRAlwaysOK(t *testing.T) {
	if err := PtrIsInZone("2.0.192.in-addr.arpa.", "anything at all", "A"); err != nil {
		t.Errorf("non-PTR record types must never be rejected, got %v", err)
	}
}

func TestPtrIsInZoneNeitherV4NorV6(t *testing.T) {
	if err := PtrIsInZone("example.com.", "www", RecordTypePTR); err == nil {
		t.Error("expected a forward zone to be rejected for a PTR record")
	}
}

func TestZoneCIDRv4Classful(t *testing.T) {
	cases := map[string]string{
		"192.in-addr.arpa.":         "192.0.0.0/8",
		"0.192.in-addr.arpa.":       "192.0.0.0/16",
		"2.0.192.in-addr.arpa.":     "192.0.2.0/24",
		"0/26.2.0.192.in-addr.arpa.": "192.0.2.0/26",
	}
	for zone, want := range cases {
		got, err := ZoneCIDRv4(zone)
		if err != nil {
			t.Errorf("ZoneCIDRv4(%q): unexpected error: %v", zone, err)
			continue
		}
		if got != want {
			t.Errorf("ZoneCIDRv4(%q) = %q, want %q", zone, got, want)
		}
	}
}

func TestZoneCIDRv4RejectsMalformed(t *testing.T) {
	if _, err := ZoneCIDRv4("in-addr.arpa."); err == nil {
		t.Error("expected a zero-octet zone to be rejected")
	}
}

func TestConvertPTRtoIPv6(t *testing.T) {
	zone := "0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa."
	record := "0.0.0.0.0.0.0.0"
	addr, err := ConvertPTRtoIPv6(zone, record)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != "2001:0db8:0000:0000:0000:0000:0000:0000" {
		t.Errorf("got %q", addr)
	}
}

func TestValidIPv6PTRCaseInsensitive(t *testing.T) {
	zone := "0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.B.D.0.1.0.0.2.ip6.arpa."
	record := "0.0.0.0.0.0.0.0"
	if !ValidIPv6PTR(zone, record) {
		t.Error("expected uppercase hex nibbles to still match")
	}
}

func TestCIDRContainsIPv4PadsShortAddress(t *testing.T) {
	contains, err := CIDRContainsIPv4("192.0.2.0/24", "192.0.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !contains {
		t.Error("expected a right-padded short address to be contained")
	}
}
