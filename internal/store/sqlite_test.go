package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// newTestSQLiteRepo creates a SQLiteZoneRepository backed by a temporary
// database file. The database is automatically cleaned up when the test
// finishes.
func newTestSQLiteRepo(t *testing.T) *SQLiteZoneRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewSQLiteZoneRepository(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteZoneRepository(%q) failed: %v", dbPath, err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteZoneRepositoryCreateGetRoundTrip(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()
	z := testZone(t, "example.com.", "acct-1")
	z, errs := z.AddACLRule(zonemodel.ACLRule{OwnerID: "user-1", AccessLevel: "read-write", RecordMask: "*"}, time.Unix(1, 0).UTC())
	if len(errs) != 0 {
		t.Fatalf("AddACLRule: %v", errs)
	}

	if err := repo.Create(ctx, z); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, z.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != z.Name || got.Email != z.Email || got.Account != z.Account {
		t.Errorf("round-tripped zone mismatch: got %+v, want %+v", got, z)
	}
	if string(got.Connection.Key) != string(z.Connection.Key) {
		t.Errorf("TSIG key did not round-trip through storage")
	}
	if len(got.ACL.Rules()) != 1 {
		t.Errorf("expected 1 ACL rule to round-trip, got %d", len(got.ACL.Rules()))
	}
}

func TestSQLiteZoneRepositoryCreateDuplicateNameRejected(t *testing.T) {
	repo := newTestSQLiteRepo(t)
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

func TestSQLiteZoneRepositoryUpdateAndDelete(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()
	z := testZone(t, "example.com.", "acct-1")
	if err := repo.Create(ctx, z); err != nil {
		t.Fatalf("Create: %v", err)
	}

	z.Email = "updated@example.com"
	if err := repo.Update(ctx, z); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.Get(ctx, z.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Email != "updated@example.com" {
		t.Errorf("update did not persist, got email %q", got.Email)
	}

	if err := repo.Delete(ctx, z.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, z.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSQLitePrincipalStoreUpsert(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	store := NewSQLitePrincipalStore(repo)
	ctx := context.Background()

	p := &auth.Principal{UserID: "user-1", AccessKey: "AKIDEXAMPLE", SecretKey: "secret", Groups: []string{"admins"}}
	if err := store.Put(ctx, p); err != nil {
		t.Fatalf("Put: %v", err)
	}
	p.SecretKey = "rotated-secret"
	if err := store.Put(ctx, p); err != nil {
		t.Fatalf("Put (upsert): %v", err)
	}

	got, err := store.GetAuthPrincipal(ctx, p.AccessKey)
	if err != nil {
		t.Fatalf("GetAuthPrincipal: %v", err)
	}
	if got == nil || got.SecretKey != "rotated-secret" {
		t.Fatalf("expected rotated secret to persist, got %+v", got)
	}

	if err := store.Delete(ctx, p.AccessKey); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = store.GetAuthPrincipal(ctx, p.AccessKey)
	if err != nil {
		t.Fatalf("GetAuthPrincipal after delete: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}
