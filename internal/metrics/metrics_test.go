package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/docs", "/docs"},
		{"/docs/", "/docs"},
		{"/docs/something", "/docs"},
		{"/metrics", "/metrics"},
		{"/openapi.json", "/openapi.json"},
		{"/", "/"},
		{"", "/"},
		{"/zones", "/zones"},
		{"/zones/", "/zones"},
		{"/zones/zone-1", "/zones/{zoneId}"},
		{"/zones/zone-1/acl", "/zones/{zoneId}/acl"},
		{"/zones/zone-1/acl/rule-1", "/zones/{zoneId}/acl/{ruleId}"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := NormalizePath(tt.path)
			if got != tt.want {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMetricsRegistered(t *testing.T) {
	// Register metrics explicitly (replaces former init() auto-registration).
	Register()

	HTTPRequestsTotal.WithLabelValues("GET", "/zones", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/zones").Observe(0.001)
	AuthOutcomesTotal.WithLabelValues("authenticated").Inc()
	AuthInfraFaultsTotal.Add(0)
	ZoneRepositoryOpsTotal.WithLabelValues("create", "ok").Inc()
	ZonesTotal.Set(3)
	ReverseZoneDecisionsTotal.WithLabelValues("ok").Inc()
}
