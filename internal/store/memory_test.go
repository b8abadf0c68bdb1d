package store

import (
	"context"
	"testing"
	"time"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

func testZone(t *testing.T, name, account string) *zonemodel.Zone {
	t.Helper()
	z, errs := zonemodel.NewZone(zonemodel.ZoneFields{
		Name:    name,
		Email:   "admin@example.com",
		Account: account,
		Connection: zonemodel.ZoneConnectionFields{
			Name:          "primary",
			KeyName:       "tsig-key.",
			Key:           []byte("supersecretkeybytes"),
			PrimaryServer: "ns1.example.com:53",
		},
		TransferConnection: zonemodel.ZoneConnectionFields{
			Name:          "xfer",
			KeyName:       "xfer-key.",
			Key:           []byte("anothersecretkeybytes"),
			PrimaryServer: "ns2.example.com:53",
		},
		Now: time.Unix(0, 0).UTC(),
	})
	if len(errs) != 0 {
		t.Fatalf("building test zone: %v", errs)
	}
	return z
}

func TestMemoryZoneRepositoryCreateGet(t *testing.T) {
	repo := NewMemoryZoneRepository()
	ctx := context.Background()
	z := testZone(t, "example.com.", "acct-1")

	if err := repo.Create(ctx, z); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, z.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != z.Name {
		t.Errorf("got name %q, want %q", got.Name, z.Name)
	}

	byName, err := repo.GetByName(ctx, z.Name)
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if byName.ID != z.ID {
		t.Errorf("GetByName returned a different zone")
	}
}

func TestMemoryZoneRepositoryCreateDuplicateNameRejected(t *testing.T) {
	repo := NewMemoryZoneRepository()
	ctx := context.Background()
	z1 := testZone(t, "example.com.", "acct-1")
	z2 := testZone(t, "example.com.", "acct-2")

	if err := repo.Create(ctx, z1); err != nil {
		t.Fatalf("Create z1: %v", err)
	}
	if err := repo.Create(ctx, z2); err != ErrAlreadyExists {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMemoryZoneRepositoryGetMissing(t *testing.T) {
	repo := NewMemoryZoneRepository()
	if _, err := repo.Get(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryZoneRepositoryUpdateRenamesIndex(t *testing.T) {
	repo := NewMemoryZoneRepository()
	ctx := context.Background()
	z := testZone(t, "example.com.", "acct-1")
	if err := repo.Create(ctx, z); err != nil {
		t.Fatalf("Create: %v", err)
	}

	renamed := z.WithStatus(zonemodel.StatusActive, time.Unix(100, 0).UTC())
	renamed.Name = "renamed.example.com."
	if err := repo.Update(ctx, renamed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := repo.GetByName(ctx, "example.com."); err != ErrNotFound {
		t.Errorf("expected old name to be gone, got err=%v", err)
	}
	if _, err := repo.GetByName(ctx, "renamed.example.com."); err != nil {
		t.Errorf("expected new name to resolve: %v", err)
	}
}

func TestMemoryZoneRepositoryDeleteIsIdempotent(t *testing.T) {
	repo := NewMemoryZoneRepository()
	ctx := context.Background()
	z := testZone(t, "example.com.", "acct-1")
	if err := repo.Create(ctx, z); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Delete(ctx, z.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, z.ID); err != nil {
		t.Fatalf("second Delete should be a no-op, got: %v", err)
	}
	if _, err := repo.Get(ctx, z.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryZoneRepositoryListFiltersByAccount(t *testing.T) {
	repo := NewMemoryZoneRepository()
	ctx := context.Background()
	a := testZone(t, "a.example.com.", "acct-1")
	b := testZone(t, "b.example.com.", "acct-2")
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	result, err := repo.List(ctx, ListOptions{Account: "acct-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Zones) != 1 || result.Zones[0].ID != a.ID {
		t.Errorf("expected only acct-1's zone, got %+v", result.Zones)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestMemoryZoneRepositoryListPagination(t *testing.T) {
	repo := NewMemoryZoneRepository()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		z := testZone(t, string(rune('a'+i))+".example.com.", "acct-1")
		if err := repo.Create(ctx, z); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, z.ID)
	}

	page1, err := repo.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List page1: %v", err)
	}
	if len(page1.Zones) != 2 || page1.NextCursor == "" {
		t.Fatalf("expected a 2-item page with a continuation cursor, got %d zones, cursor=%q", len(page1.Zones), page1.NextCursor)
	}

	page2, err := repo.List(ctx, ListOptions{Limit: 2, Cursor: page1.NextCursor})
	if err != nil {
		t.Fatalf("List page2: %v", err)
	}
	if len(page2.Zones) != 1 || page2.NextCursor != "" {
		t.Fatalf("expected the final single-item page, got %d zones, cursor=%q", len(page2.Zones), page2.NextCursor)
	}
}

func TestMemoryPrincipalStoreRoundTrip(t *testing.T) {
	s := NewMemoryPrincipalStore()
	ctx := context.Background()

	p := &auth.Principal{UserID: "user-1", AccessKey: "AKIDEXAMPLE", SecretKey: "secret", Groups: []string{"admins"}}
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.GetAuthPrincipal(ctx, "AKIDEXAMPLE")
	if err != nil {
		t.Fatalf("GetAuthPrincipal: %v", err)
	}
	if got == nil || got.UserID != "user-1" {
		t.Fatalf("got %+v, want a principal with UserID user-1", got)
	}

	if err := s.Delete(ctx, "AKIDEXAMPLE"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = s.GetAuthPrincipal(ctx, "AKIDEXAMPLE")
	if err != nil {
		t.Fatalf("GetAuthPrincipal after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestMemoryPrincipalStoreUnknownKeyReturnsNilNotError(t *testing.T) {
	s := NewMemoryPrincipalStore()
	got, err := s.GetAuthPrincipal(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("expected no error for unknown access key, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil principal for unknown access key, got %+v", got)
	}
}
