package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/config"
	"github.com/zonewarden/zonewarden/internal/crypto"
	"github.com/zonewarden/zonewarden/internal/metrics"
	"github.com/zonewarden/zonewarden/internal/store"
)

// generateRequestID generates a 16-character lowercase hexadecimal request
// ID using crypto/rand.
func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%016x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// commonHeaders is HTTP middleware that injects a request ID and server
// identification on every response.
func commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", generateRequestID())
		w.Header().Set("Server", "zonewarden")
		next.ServeHTTP(w, r)
	})
}

// responseRecorder wraps http.ResponseWriter to capture the status code
// written, for metricsMiddleware.
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.wroteHeader {
		rr.statusCode = code
		rr.wroteHeader = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.wroteHeader {
		rr.statusCode = http.StatusOK
		rr.wroteHeader = true
	}
	return rr.ResponseWriter.Write(b)
}

// metricsMiddleware records request count and latency by normalized path.
// /metrics itself is excluded to avoid self-instrumentation recursion.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rec, r)

		duration := time.Since(start).Seconds()
		normalizedPath := metrics.NormalizePath(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, normalizedPath, strconv.Itoa(rec.statusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
	})
}

// authMiddleware authenticates every request not exempted by skipAuth
// using auth.Authenticate, storing the resolved principal in the request
// context for downstream handlers. CredentialsMissing and
// CredentialsRejected map to 401; an infrastructural error from the
// principal provider maps to 500.
func authMiddleware(principals store.PrincipalStore, algebra crypto.Algebra, cfg config.AuthConfig) func(http.Handler) http.Handler {
	authCfg := auth.Config{EncryptUserSecrets: cfg.EncryptUserSecrets}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipAuth(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "reading request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			view := auth.NewHTTPRequestView(r)
			outcome, err := auth.Authenticate(r.Context(), view, body, principals, algebra, authCfg)
			if err != nil {
				metrics.AuthInfraFaultsTotal.Inc()
				http.Error(w, "authentication unavailable", http.StatusInternalServerError)
				return
			}

			outcomeLabel := "authenticated"
			switch outcome.Kind() {
			case auth.KindCredentialsMissing:
				outcomeLabel = "credentials_missing"
			case auth.KindCredentialsRejected:
				outcomeLabel = "credentials_rejected"
			}
			metrics.AuthOutcomesTotal.WithLabelValues(outcomeLabel).Inc()

			switch outcome.Kind() {
			case auth.KindCredentialsMissing, auth.KindCredentialsRejected:
				http.Error(w, outcome.Reason(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, outcome.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
