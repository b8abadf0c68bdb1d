package auth

import "strings"

// parsedAuth holds the parsed components of an Authorization header.
type parsedAuth struct {
	AccessKeyID   string
	DateStr       string // YYYYMMDD
	Region        string
	Service       string
	SignedHeaders []string
	Signature     string
}

// parseAuthorizationHeader parses the AWS SigV4 Authorization header:
//
//	AWS4-HMAC-SHA256 Credential=<AK>/<yyyymmdd>/<region>/<service>/aws4_request, SignedHeaders=<h1;h2>, Signature=<hex>
//
// The scheme token is matched case-insensitively; everything after it is
// matched case-sensitively.
func parseAuthorizationHeader(header string) (*parsedAuth, bool) {
	if len(header) < len(algorithm) || !strings.EqualFold(header[:len(algorithm)], algorithm) {
		return nil, false
	}
	rest := strings.TrimSpace(header[len(algorithm):])

	parts := make(map[string]string)
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		idx := strings.IndexByte(part, '=')
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(part[:idx])
		value := strings.TrimSpace(part[idx+1:])
		parts[key] = value
	}

	credential, ok := parts["Credential"]
	if !ok || credential == "" {
		return nil, false
	}
	signedHeadersStr, ok := parts["SignedHeaders"]
	if !ok || signedHeadersStr == "" {
		return nil, false
	}
	signature, ok := parts["Signature"]
	if !ok || signature == "" {
		return nil, false
	}

	credParts := strings.SplitN(credential, "/", 5)
	if len(credParts) != 5 || credParts[4] != scopeTerminator {
		return nil, false
	}

	return &parsedAuth{
		AccessKeyID:   credParts[0],
		DateStr:       credParts[1],
		Region:        credParts[2],
		Service:       credParts[3],
		SignedHeaders: strings.Split(signedHeadersStr, ";"),
		Signature:     signature,
	}, true
}
