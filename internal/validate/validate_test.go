package validate

import "testing"

func TestFQDN(t *testing.T) {
	cases := map[string]bool{
		"example.com.":       true,
		"example.com":        false,
		".":                  true,
		"2.0.192.in-addr.arpa.": true,
		"-bad.com.":           false,
		"":                    false,
	}
	for name, want := range cases {
		if got := FQDN(name); got != want {
			t.Errorf("FQDN(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestEmail(t *testing.T) {
	cases := map[string]bool{
		"admin@example.com": true,
		"admin@localhost":   false,
		"not-an-email":      false,
		"@example.com":      false,
	}
	for addr, want := range cases {
		if got := Email(addr); got != want {
			t.Errorf("Email(%q) = %v, want %v", addr, got, want)
		}
	}
}

func TestHostOrIPv4(t *testing.T) {
	cases := map[string]bool{
		"ns1.example.com": true,
		"192.0.2.1":       true,
		"::1":             false,
		"-bad-host":       false,
	}
	for s, want := range cases {
		if got := HostOrIPv4(s); got != want {
			t.Errorf("HostOrIPv4(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestHostPort(t *testing.T) {
	host, port, hasPort, ok := HostPort("ns1.example.com:53")
	if host != "ns1.example.com" || port != 53 || !hasPort || !ok {
		t.Fatalf("got (%q, %d, %v, %v)", host, port, hasPort, ok)
	}

	host, _, hasPort, ok = HostPort("ns1.example.com")
	if host != "ns1.example.com" || hasPort || !ok {
		t.Fatalf("got (%q, hasPort=%v, ok=%v)", host, hasPort, ok)
	}

	_, _, hasPort, ok = HostPort("ns1.example.com:notaport")
	if !hasPort || ok {
		t.Fatalf("expected invalid port to fail, got hasPort=%v ok=%v", hasPort, ok)
	}
}

func TestPortBounds(t *testing.T) {
	if _, ok := Port("0"); ok {
		t.Error("port 0 should be invalid")
	}
	if _, ok := Port("65536"); ok {
		t.Error("port 65536 should be invalid")
	}
	if p, ok := Port("65535"); !ok || p != 65535 {
		t.Error("port 65535 should be valid")
	}
}
