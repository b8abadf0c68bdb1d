// Package auth authenticates inbound zone-management requests using
// AWS-Signature-Version-4-style HMAC verification against a per-account
// secret, without depending on any particular transport or persistence
// layer.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/zonewarden/zonewarden/internal/crypto"
)

// Config selects the policy the authenticator applies at composition time.
// It replaces the process-wide configuration lookups a quick port would be
// tempted to reach for; callers build one Config and pass it explicitly.
type Config struct {
	// EncryptUserSecrets gates whether a principal's stored secret is run
	// through Algebra.Decrypt before use. When false the stored secret is
	// already plaintext.
	EncryptUserSecrets bool
}

// Authenticate verifies an inbound request against the credentials
// resolved from provider, following the AWS Signature Version 4 algorithm.
// body must be the exact bytes of the request body the caller will act on;
// callers of a streaming transport must materialize it before calling in.
//
// The returned error is non-nil only for infrastructural faults (provider
// I/O, a failing crypto algebra) that must propagate to a 5xx; every
// expected authentication result, success or failure, comes back as the
// returned AuthenticationOutcome with a nil error.
func Authenticate(ctx context.Context, view RequestView, body []byte, provider AuthPrincipalProvider, algebra crypto.Algebra, cfg Config) (AuthenticationOutcome, error) {
	authHeaders := view.HeaderValues("Authorization")
	if len(authHeaders) == 0 {
		return CredentialsMissing("Authorization header not found"), nil
	}
	// Duplicate Authorization headers: use the first in header order.
	authHeader := authHeaders[0]

	parsed, ok := parseAuthorizationHeader(authHeader)
	if !ok {
		return CredentialsRejected("Authorization header could not be parsed"), nil
	}

	principal, err := provider.GetAuthPrincipal(ctx, parsed.AccessKeyID)
	if err != nil {
		return AuthenticationOutcome{}, fmt.Errorf("resolving principal for access key %s: %w", parsed.AccessKeyID, err)
	}
	if principal == nil {
		return CredentialsRejected(fmt.Sprintf("Account with accessKey %s specified was not found", parsed.AccessKeyID)), nil
	}

	secret := principal.SecretKey
	if cfg.EncryptUserSecrets {
		decrypted, err := algebra.Decrypt([]byte(secret))
		if err != nil {
			return AuthenticationOutcome{}, fmt.Errorf("decrypting secret for access key %s: %w", parsed.AccessKeyID, err)
		}
		secret = string(decrypted)
	}

	bodyHash := sha256.Sum256(body)
	canonicalRequest, missingHeader := buildCanonicalRequest(view, parsed.SignedHeaders, hex.EncodeToString(bodyHash[:]))
	if missingHeader {
		return CredentialsRejected("Request signature could not be validated"), nil
	}

	amzDate := firstHeaderValue(view, "X-Amz-Date")
	scope := fmt.Sprintf("%s/%s/%s/%s", parsed.DateStr, parsed.Region, parsed.Service, scopeTerminator)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)

	signingKey := deriveSigningKey(secret, parsed.DateStr, parsed.Region, parsed.Service)
	expected := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(parsed.Signature)) != 1 {
		return CredentialsRejected("Request signature could not be validated"), nil
	}

	return Authenticated(principal), nil
}

func firstHeaderValue(view RequestView, name string) string {
	values := view.HeaderValues(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
