package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"

	"github.com/zonewarden/zonewarden/internal/crypto"
)

type fakeView struct {
	method  string
	path    string
	host    string
	headers map[string][]string
	query   url.Values
}

func (v fakeView) Method() string { return v.method }
func (v fakeView) Path() string   { return v.path }
func (v fakeView) Host() string   { return v.host }
func (v fakeView) Query() url.Values {
	if v.query == nil {
		return url.Values{}
	}
	return v.query
}
func (v fakeView) HeaderValues(name string) []string {
	for k, vals := range v.headers {
		if equalFold(k, name) {
			return vals
		}
	}
	return nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

type fakeProvider struct {
	principals map[string]*Principal
	err        error
}

func (p fakeProvider) GetAuthPrincipal(ctx context.Context, accessKey string) (*Principal, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.principals[accessKey], nil
}

// signRequest computes a valid Authorization header for view+body signed
// with secret, using the same machinery Authenticate verifies with. This
// keeps the test fixtures self-consistent without depending on any
// external SigV4 implementation.
func signRequest(t *testing.T, view fakeView, body []byte, accessKey, secret, dateStr, region, service string, signedHeaders []string, amzDate string) string {
	t.Helper()
	bodyHash := sha256.Sum256(body)
	canonicalRequest, missing := buildCanonicalRequest(view, signedHeaders, hex.EncodeToString(bodyHash[:]))
	if missing {
		t.Fatalf("signRequest: a signed header is missing from the fixture")
	}
	scope := dateStr + "/" + region + "/" + service + "/" + scopeTerminator
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)
	signingKey := deriveSigningKey(secret, dateStr, region, service)
	signature := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	return algorithm + " Credential=" + accessKey + "/" + dateStr + "/" + region + "/" + service + "/" + scopeTerminator +
		", SignedHeaders=" + joinSemicolon(signedHeaders) + ", Signature=" + signature
}

func joinSemicolon(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ";"
		}
		out += s
	}
	return out
}

func baseView(body []byte, authHeader string) fakeView {
	return fakeView{
		method: "GET",
		path:   "/zones",
		host:   "zones.example.com",
		headers: map[string][]string{
			"Host":          {"zones.example.com"},
			"X-Amz-Date":    {"20180101T000000Z"},
			"Authorization": {authHeader},
		},
	}
}

func TestAuthenticateHappyPath(t *testing.T) {
	signedHeaders := []string{"host", "x-amz-date"}
	view := baseView(nil, "")
	auth := signRequest(t, view, nil, "AKID", "shh", "20180101", "us-east-1", "dns", signedHeaders, "20180101T000000Z")
	view = baseView(nil, auth)

	provider := fakeProvider{principals: map[string]*Principal{
		"AKID": {UserID: "user-1", AccessKey: "AKID", SecretKey: "shh"},
	}}

	outcome, err := Authenticate(context.Background(), view, nil, provider, crypto.Noop{}, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != KindAuthenticated {
		t.Fatalf("expected Authenticated, got %v (%s)", outcome.Kind(), outcome.Reason())
	}
	if outcome.Principal().AccessKey != "AKID" {
		t.Errorf("unexpected principal: %+v", outcome.Principal())
	}
}

func TestAuthenticateMissingHeader(t *testing.T) {
	view := baseView(nil, "")
	view.headers = map[string][]string{"Host": {"zones.example.com"}}

	outcome, err := Authenticate(context.Background(), view, nil, fakeProvider{}, crypto.Noop{}, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != KindCredentialsMissing {
		t.Fatalf("expected CredentialsMissing, got %v", outcome.Kind())
	}
	if outcome.Reason() != "Authorization header not found" {
		t.Errorf("unexpected reason: %q", outcome.Reason())
	}
}

func TestAuthenticateUnparseableHeader(t *testing.T) {
	view := baseView(nil, "Bearer xyz")

	outcome, err := Authenticate(context.Background(), view, nil, fakeProvider{}, crypto.Noop{}, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != KindCredentialsRejected {
		t.Fatalf("expected CredentialsRejected, got %v", outcome.Kind())
	}
	if outcome.Reason() != "Authorization header could not be parsed" {
		t.Errorf("unexpected reason: %q", outcome.Reason())
	}
}

func TestAuthenticateUnknownAccessKey(t *testing.T) {
	signedHeaders := []string{"host", "x-amz-date"}
	view := baseView(nil, "")
	auth := signRequest(t, view, nil, "AKID", "shh", "20180101", "us-east-1", "dns", signedHeaders, "20180101T000000Z")
	view = baseView(nil, auth)

	outcome, err := Authenticate(context.Background(), view, nil, fakeProvider{}, crypto.Noop{}, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != KindCredentialsRejected {
		t.Fatalf("expected CredentialsRejected, got %v", outcome.Kind())
	}
	if outcome.Reason() != "Account with accessKey AKID specified was not found" {
		t.Errorf("unexpected reason: %q", outcome.Reason())
	}
}

func TestAuthenticateBadSignatureOnTamperedBody(t *testing.T) {
	signedHeaders := []string{"host", "x-amz-date"}
	body := []byte("original body")
	view := baseView(body, "")
	auth := signRequest(t, view, body, "AKID", "shh", "20180101", "us-east-1", "dns", signedHeaders, "20180101T000000Z")
	view = baseView(body, auth)

	provider := fakeProvider{principals: map[string]*Principal{
		"AKID": {UserID: "user-1", AccessKey: "AKID", SecretKey: "shh"},
	}}

	tampered := []byte("tampered body")
	outcome, err := Authenticate(context.Background(), view, tampered, provider, crypto.Noop{}, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != KindCredentialsRejected {
		t.Fatalf("expected CredentialsRejected, got %v", outcome.Kind())
	}
	if outcome.Reason() != "Request signature could not be validated" {
		t.Errorf("unexpected reason: %q", outcome.Reason())
	}
}

func TestAuthenticatePropagatesProviderError(t *testing.T) {
	signedHeaders := []string{"host", "x-amz-date"}
	view := baseView(nil, "")
	auth := signRequest(t, view, nil, "AKID", "shh", "20180101", "us-east-1", "dns", signedHeaders, "20180101T000000Z")
	view = baseView(nil, auth)

	provider := fakeProvider{err: errBoom}
	_, err := Authenticate(context.Background(), view, nil, provider, crypto.Noop{}, Config{})
	if err == nil {
		t.Fatal("expected an infrastructural error to propagate")
	}
}

func TestAuthenticateMissingSignedHeaderIsRejected(t *testing.T) {
	signedHeaders := []string{"host", "x-amz-date", "x-missing"}
	view := baseView(nil, "")
	// Sign with a view that has the header, but serve a request that lacks it.
	signingView := view
	signingView.headers = map[string][]string{
		"Host":          {"zones.example.com"},
		"X-Amz-Date":    {"20180101T000000Z"},
		"X-Missing":     {"present-at-signing-time"},
		"Authorization": {""},
	}
	auth := signRequest(t, signingView, nil, "AKID", "shh", "20180101", "us-east-1", "dns", signedHeaders, "20180101T000000Z")
	view = baseView(nil, auth)

	provider := fakeProvider{principals: map[string]*Principal{
		"AKID": {UserID: "user-1", AccessKey: "AKID", SecretKey: "shh"},
	}}

	outcome, err := Authenticate(context.Background(), view, nil, provider, crypto.Noop{}, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != KindCredentialsRejected {
		t.Fatalf("expected CredentialsRejected for a signed header missing at verification time, got %v", outcome.Kind())
	}
}

func TestAuthenticateDecryptsSecretWhenConfigured(t *testing.T) {
	signedHeaders := []string{"host", "x-amz-date"}
	view := baseView(nil, "")
	auth := signRequest(t, view, nil, "AKID", "shh", "20180101", "us-east-1", "dns", signedHeaders, "20180101T000000Z")
	view = baseView(nil, auth)

	provider := fakeProvider{principals: map[string]*Principal{
		// Noop algebra: "encrypted" form is identical to plaintext.
		"AKID": {UserID: "user-1", AccessKey: "AKID", SecretKey: "shh"},
	}}

	outcome, err := Authenticate(context.Background(), view, nil, provider, crypto.Noop{}, Config{EncryptUserSecrets: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != KindAuthenticated {
		t.Fatalf("expected Authenticated, got %v (%s)", outcome.Kind(), outcome.Reason())
	}
}

var errBoom = &infraError{"boom"}

type infraError struct{ msg string }

func (e *infraError) Error() string { return e.msg }
