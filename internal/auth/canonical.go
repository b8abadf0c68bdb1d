package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const (
	algorithm       = "AWS4-HMAC-SHA256"
	scopeTerminator = "aws4_request"
)

// buildCanonicalRequest reconstructs the AWS Signature V4 canonical request
// for view, given the headers the caller claims to have signed and the
// already-hashed body. missingHeader is set if one of signedHeaders has no
// value at all on the request.
func buildCanonicalRequest(view RequestView, signedHeaders []string, bodyHash string) (canonical string, missingHeader bool) {
	var sb strings.Builder

	sb.WriteString(view.Method())
	sb.WriteByte('\n')

	sb.WriteString(canonicalURI(view.Path()))
	sb.WriteByte('\n')

	sb.WriteString(canonicalQueryString(view.Query()))
	sb.WriteByte('\n')

	headers, ok := canonicalHeaders(view, signedHeaders)
	if !ok {
		return "", true
	}
	sb.WriteString(headers)
	sb.WriteByte('\n')

	sb.WriteString(strings.Join(signedHeaders, ";"))
	sb.WriteByte('\n')

	sb.WriteString(bodyHash)

	return sb.String(), false
}

// buildStringToSign builds the AWS Signature V4 string-to-sign.
func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	hash := sha256.Sum256([]byte(canonicalRequest))
	return algorithm + "\n" +
		amzDate + "\n" +
		scope + "\n" +
		hex.EncodeToString(hash[:])
}

// deriveSigningKey derives the SigV4 signing key by the four-step
// HMAC-SHA256 chain: kDate, kRegion, kService, kSigning.
func deriveSigningKey(secretKey, dateStr, region, service string) []byte {
	dateKey := hmacSHA256([]byte("AWS4"+secretKey), dateStr)
	regionKey := hmacSHA256(dateKey, region)
	serviceKey := hmacSHA256(regionKey, service)
	return hmacSHA256(serviceKey, scopeTerminator)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// canonicalURI returns the URI-encoded absolute path. Forward slashes are
// not encoded; an empty path becomes "/".
func canonicalURI(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = uriEncode(seg, false)
	}
	return strings.Join(segments, "/")
}

// canonicalQueryString returns the sorted, URI-encoded query string.
// Parameters with no value use an empty value ("acl=").
func canonicalQueryString(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	var pairs []string
	for key, vals := range values {
		encodedKey := uriEncode(key, true)
		if len(vals) == 0 {
			pairs = append(pairs, encodedKey+"=")
		}
		for _, val := range vals {
			pairs = append(pairs, encodedKey+"="+uriEncode(val, true))
		}
	}

	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// canonicalHeaders builds the canonical headers string from the signed
// header list. ok is false if any signed header has no value on the
// request at all.
func canonicalHeaders(view RequestView, signedHeaders []string) (canonical string, ok bool) {
	var sb strings.Builder
	for _, name := range signedHeaders {
		name = strings.ToLower(name)
		values := view.HeaderValues(name)
		if len(values) == 0 {
			return "", false
		}

		joined := strings.Join(values, ",")
		joined = strings.TrimSpace(joined)
		for strings.Contains(joined, "  ") {
			joined = strings.ReplaceAll(joined, "  ", " ")
		}

		sb.WriteString(name)
		sb.WriteByte(':')
		sb.WriteString(joined)
		sb.WriteByte('\n')
	}
	return sb.String(), true
}

// uriEncode encodes a string per AWS SigV4 URI encoding rules: A-Z, a-z,
// 0-9, '-', '_', '.', '~' pass through unencoded; everything else is
// percent-encoded with uppercase hex. If encodeSlash is false, '/' also
// passes through unencoded.
func uriEncode(s string, encodeSlash bool) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) || (!encodeSlash && c == '/') {
			sb.WriteByte(c)
		} else {
			sb.WriteByte('%')
			sb.WriteByte(hexDigit(c >> 4))
			sb.WriteByte(hexDigit(c & 0x0f))
		}
	}
	return sb.String()
}

func isURIUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}

func hexDigit(b byte) byte {
	if b < 10 {
		return '0' + b
	}
	return 'A' + b - 10
}
