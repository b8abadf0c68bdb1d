// Package validate implements the generic field-level validators shared by
// the zone model's builder: string length bounds, RFC 1035 hostnames,
// IPv4 literals, port numbers, and RFC-5322-lite email addresses.
package validate

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

// labelRegex matches a single RFC 1035 LDH label: starts and ends with an
// alphanumeric, hyphens allowed in the middle.
var labelRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// emailRegex is a deliberately loose RFC-5322-lite check: local@domain,
// domain has at least one dot. Full RFC 5322 grammar is out of scope.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// StringLength reports whether s has a length in [min, max], inclusive.
func StringLength(s string, min, max int) bool {
	n := len(s)
	return n >= min && n <= max
}

// NonEmpty reports whether s is non-empty.
func NonEmpty(s string) bool {
	return s != ""
}

// FQDN reports whether name is a fully qualified domain name: trailing dot
// and every label RFC 1035 LDH-valid. It checks shape only; the overall
// 2..255 length bound is enforced separately by the zone model.
func FQDN(name string) bool {
	if !strings.HasSuffix(name, ".") {
		return false
	}
	trimmed := strings.TrimSuffix(name, ".")
	if trimmed == "" {
		// The root zone "." is a degenerate but shape-valid FQDN.
		return true
	}
	for _, label := range strings.Split(trimmed, ".") {
		if label == "" || len(label) > 63 || !labelRegex.MatchString(label) {
			return false
		}
	}
	return true
}

// Email reports whether addr has the shape local@domain, domain containing
// at least one dot.
func Email(addr string) bool {
	return emailRegex.MatchString(addr)
}

// Hostname reports whether s is a syntactically valid hostname: an FQDN-
// shaped name without the mandatory trailing dot, or with one.
func Hostname(s string) bool {
	if s == "" {
		return false
	}
	trimmed := strings.TrimSuffix(s, ".")
	if trimmed == "" {
		return false
	}
	if len(trimmed) > 255 {
		return false
	}
	for _, label := range strings.Split(trimmed, ".") {
		if label == "" || len(label) > 63 || !labelRegex.MatchString(label) {
			return false
		}
	}
	return true
}

// IPv4Literal reports whether s parses as a dotted-quad IPv4 address.
func IPv4Literal(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// HostOrIPv4 reports whether s is either a valid hostname or a valid IPv4
// literal, the rule a zone's primaryServer host must satisfy.
func HostOrIPv4(s string) bool {
	return Hostname(s) || IPv4Literal(s)
}

// Port parses s as a port number in 1..65535. ok is false if s does not
// parse or is out of range.
func Port(s string) (port int, ok bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return 0, false
	}
	return n, true
}

// HostPort splits a "host[:port]" string into host and an optional port.
// hasPort is false when no ":port" suffix was present. ok is false when the
// string has a port suffix that fails to parse as 1..65535.
func HostPort(s string) (host string, port int, hasPort, ok bool) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return s, 0, false, true
	}
	host = s[:idx]
	portStr := s[idx+1:]
	p, portOK := Port(portStr)
	if !portOK {
		return host, 0, true, false
	}
	return host, p, true, true
}
