package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// sqliteTimeFormat is the ISO 8601 format used for all timestamps in SQLite.
const sqliteTimeFormat = "2006-01-02T15:04:05.000Z"

// SQLiteZoneRepository implements ZoneRepository using SQLite as the
// backing database, suitable for single-node deployments that need
// durability without standing up an external database.
type SQLiteZoneRepository struct {
	db *sql.DB
}

// NewSQLiteZoneRepository opens dsn and initializes its schema.
func NewSQLiteZoneRepository(dsn string) (*SQLiteZoneRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}
	r := &SQLiteZoneRepository{db: db}
	if err := r.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite schema: %w", err)
	}
	return r, nil
}

func (r *SQLiteZoneRepository) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := r.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS zones (
			id                    TEXT PRIMARY KEY,
			name                  TEXT NOT NULL UNIQUE,
			email                 TEXT NOT NULL,
			status                INTEGER NOT NULL,
			shared                INTEGER NOT NULL DEFAULT 0,
			account               TEXT NOT NULL,
			admin_group_id        TEXT NOT NULL DEFAULT '',
			conn_name             TEXT NOT NULL,
			conn_key_name         TEXT NOT NULL,
			conn_key              TEXT NOT NULL,
			conn_primary_server   TEXT NOT NULL,
			xfer_name             TEXT NOT NULL,
			xfer_key_name         TEXT NOT NULL,
			xfer_key              TEXT NOT NULL,
			xfer_primary_server   TEXT NOT NULL,
			created_at            TEXT NOT NULL,
			updated_at            TEXT NOT NULL,
			latest_sync           TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_zones_account ON zones(account);

		CREATE TABLE IF NOT EXISTS zone_acl_rules (
			zone_id      TEXT NOT NULL,
			rule_id      TEXT NOT NULL,
			owner_id     TEXT NOT NULL,
			access_level TEXT NOT NULL,
			record_mask  TEXT NOT NULL,

			PRIMARY KEY (zone_id, rule_id),
			FOREIGN KEY (zone_id) REFERENCES zones(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS principals (
			access_key TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			secret_key TEXT NOT NULL,
			groups     TEXT NOT NULL DEFAULT ''
		);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (r *SQLiteZoneRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func encodeKeyBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeKeyBytes(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

func formatSQLiteTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqliteTimeFormat)
}

func parseSQLiteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(sqliteTimeFormat, s)
	return t
}

func (r *SQLiteZoneRepository) insertACLRules(ctx context.Context, tx *sql.Tx, zoneID string, rules []zonemodel.ACLRule) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_acl_rules WHERE zone_id = ?`, zoneID); err != nil {
		return fmt.Errorf("clearing ACL rules: %w", err)
	}
	for _, rule := range rules {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO zone_acl_rules (zone_id, rule_id, owner_id, access_level, record_mask) VALUES (?, ?, ?, ?, ?)`,
			zoneID, rule.ID, rule.OwnerID, rule.AccessLevel, rule.RecordMask,
		)
		if err != nil {
			return fmt.Errorf("inserting ACL rule %q: %w", rule.ID, err)
		}
	}
	return nil
}

func (r *SQLiteZoneRepository) loadACLRules(ctx context.Context, zoneID string) ([]zonemodel.ACLRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT rule_id, owner_id, access_level, record_mask FROM zone_acl_rules WHERE zone_id = ?`, zoneID)
	if err != nil {
		return nil, fmt.Errorf("loading ACL rules: %w", err)
	}
	defer rows.Close()

	var rules []zonemodel.ACLRule
	for rows.Next() {
		var rule zonemodel.ACLRule
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &rule.AccessLevel, &rule.RecordMask); err != nil {
			return nil, fmt.Errorf("scanning ACL rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Create implements ZoneRepository.
func (r *SQLiteZoneRepository) Create(ctx context.Context, zone *zonemodel.Zone) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO zones (
			id, name, email, status, shared, account, admin_group_id,
			conn_name, conn_key_name, conn_key, conn_primary_server,
			xfer_name, xfer_key_name, xfer_key, xfer_primary_server,
			created_at, updated_at, latest_sync
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		zone.ID, zone.Name, zone.Email, int(zone.Status), boolToInt(zone.Shared), zone.Account, zone.AdminGroupID,
		zone.Connection.Name, zone.Connection.KeyName, encodeKeyBytes(zone.Connection.Key), zone.Connection.PrimaryServer,
		zone.TransferConnection.Name, zone.TransferConnection.KeyName, encodeKeyBytes(zone.TransferConnection.Key), zone.TransferConnection.PrimaryServer,
		formatSQLiteTime(zone.Created), formatSQLiteTime(zone.Updated), formatSQLiteTime(zone.LatestSync),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("inserting zone %q: %w", zone.Name, err)
	}

	if err := r.insertACLRules(ctx, tx, zone.ID, zone.ACL.Rules()); err != nil {
		return err
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteZoneRepository) scanZone(row *sql.Row) (*zonemodel.Zone, error) {
	var z zonemodel.Zone
	var status int
	var shared int
	var connKeyStr, xferKeyStr string
	var created, updated, latestSync string

	err := row.Scan(
		&z.ID, &z.Name, &z.Email, &status, &shared, &z.Account, &z.AdminGroupID,
		&z.Connection.Name, &z.Connection.KeyName, &connKeyStr, &z.Connection.PrimaryServer,
		&z.TransferConnection.Name, &z.TransferConnection.KeyName, &xferKeyStr, &z.TransferConnection.PrimaryServer,
		&created, &updated, &latestSync,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning zone: %w", err)
	}

	z.Status = zonemodel.Status(status)
	z.Shared = shared != 0
	z.Connection.Key = decodeKeyBytes(connKeyStr)
	z.TransferConnection.Key = decodeKeyBytes(xferKeyStr)
	z.Created = parseSQLiteTime(created)
	z.Updated = parseSQLiteTime(updated)
	z.LatestSync = parseSQLiteTime(latestSync)

	rules, err := r.loadACLRules(context.Background(), z.ID)
	if err != nil {
		return nil, err
	}
	acl, errs := zonemodel.NewZoneACLForStore(rules)
	if len(errs) > 0 {
		return nil, fmt.Errorf("rehydrating ACL for zone %q: %v", z.ID, errs)
	}
	z.ACL = acl

	return &z, nil
}

const zoneSelectColumns = `id, name, email, status, shared, account, admin_group_id,
		conn_name, conn_key_name, conn_key, conn_primary_server,
		xfer_name, xfer_key_name, xfer_key, xfer_primary_server,
		created_at, updated_at, latest_sync`

// Get implements ZoneRepository.
func (r *SQLiteZoneRepository) Get(ctx context.Context, id string) (*zonemodel.Zone, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+zoneSelectColumns+` FROM zones WHERE id = ?`, id)
	return r.scanZone(row)
}

// GetByName implements ZoneRepository.
func (r *SQLiteZoneRepository) GetByName(ctx context.Context, name string) (*zonemodel.Zone, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+zoneSelectColumns+` FROM zones WHERE name = ?`, name)
	return r.scanZone(row)
}

// Update implements ZoneRepository.
func (r *SQLiteZoneRepository) Update(ctx context.Context, zone *zonemodel.Zone) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE zones SET
			name = ?, email = ?, status = ?, shared = ?, account = ?, admin_group_id = ?,
			conn_name = ?, conn_key_name = ?, conn_key = ?, conn_primary_server = ?,
			xfer_name = ?, xfer_key_name = ?, xfer_key = ?, xfer_primary_server = ?,
			updated_at = ?, latest_sync = ?
		WHERE id = ?`,
		zone.Name, zone.Email, int(zone.Status), boolToInt(zone.Shared), zone.Account, zone.AdminGroupID,
		zone.Connection.Name, zone.Connection.KeyName, encodeKeyBytes(zone.Connection.Key), zone.Connection.PrimaryServer,
		zone.TransferConnection.Name, zone.TransferConnection.KeyName, encodeKeyBytes(zone.TransferConnection.Key), zone.TransferConnection.PrimaryServer,
		formatSQLiteTime(zone.Updated), formatSQLiteTime(zone.LatestSync),
		zone.ID,
	)
	if err != nil {
		return fmt.Errorf("updating zone %q: %w", zone.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := r.insertACLRules(ctx, tx, zone.ID, zone.ACL.Rules()); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete implements ZoneRepository.
func (r *SQLiteZoneRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting zone %q: %w", id, err)
	}
	return nil
}

// List implements ZoneRepository.
func (r *SQLiteZoneRepository) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	query := `SELECT id FROM zones WHERE id > ?`
	args := []any{opts.Cursor}
	if opts.Account != "" {
		query += ` AND account = ?`
		args = append(args, opts.Account)
	}
	query += ` ORDER BY id ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("listing zones: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ListResult{}, fmt.Errorf("scanning zone id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}

	zones := make([]*zonemodel.Zone, 0, len(ids))
	for _, id := range ids {
		z, err := r.Get(ctx, id)
		if err != nil {
			return ListResult{}, err
		}
		zones = append(zones, z)
	}

	var next string
	if opts.Limit > 0 && len(zones) == opts.Limit {
		next = zones[len(zones)-1].ID
	}
	return ListResult{Zones: zones, NextCursor: next}, nil
}

// Count implements ZoneRepository.
func (r *SQLiteZoneRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM zones`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting zones: %w", err)
	}
	return n, nil
}

// SQLitePrincipalStore implements PrincipalStore using SQLite.
type SQLitePrincipalStore struct {
	db *sql.DB
}

// NewSQLitePrincipalStore shares the connection opened by
// NewSQLiteZoneRepository so both stores live in the same database file.
func NewSQLitePrincipalStore(repo *SQLiteZoneRepository) *SQLitePrincipalStore {
	return &SQLitePrincipalStore{db: repo.db}
}

// GetAuthPrincipal implements auth.AuthPrincipalProvider.
func (s *SQLitePrincipalStore) GetAuthPrincipal(ctx context.Context, accessKey string) (*auth.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT access_key, user_id, secret_key, groups FROM principals WHERE access_key = ?`, accessKey)

	var p auth.Principal
	var groups string
	err := row.Scan(&p.AccessKey, &p.UserID, &p.SecretKey, &groups)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting principal %q: %w", accessKey, err)
	}
	if groups != "" {
		p.Groups = strings.Split(groups, ",")
	}
	return &p, nil
}

// Put implements PrincipalStore.
func (s *SQLitePrincipalStore) Put(ctx context.Context, p *auth.Principal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO principals (access_key, user_id, secret_key, groups) VALUES (?, ?, ?, ?)
		 ON CONFLICT(access_key) DO UPDATE SET user_id = excluded.user_id, secret_key = excluded.secret_key, groups = excluded.groups`,
		p.AccessKey, p.UserID, p.SecretKey, strings.Join(p.Groups, ","),
	)
	if err != nil {
		return fmt.Errorf("upserting principal %q: %w", p.AccessKey, err)
	}
	return nil
}

// Delete implements PrincipalStore.
func (s *SQLitePrincipalStore) Delete(ctx context.Context, accessKey string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM principals WHERE access_key = ?`, accessKey)
	if err != nil {
		return fmt.Errorf("deleting principal %q: %w", accessKey, err)
	}
	return nil
}
