package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/config"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// FirestoreZoneRepository implements ZoneRepository against a Firestore
// collection: one document per zone keyed by its ID, plus a name-reservation
// document keyed by a name-derived ID, so Create can rely on Firestore's
// document-creation semantics for name uniqueness instead of a transaction.
type FirestoreZoneRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreZoneRepository constructs a FirestoreZoneRepository from cfg.
func NewFirestoreZoneRepository(ctx context.Context, cfg *config.FirestoreConfig) (*FirestoreZoneRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("firestore config is required")
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "zonewarden_zones"
	}

	return &FirestoreZoneRepository{client: client, collection: collection}, nil
}

// Close releases the underlying Firestore client.
func (r *FirestoreZoneRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *FirestoreZoneRepository) collectionRef() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func nameDocID(name string) string {
	return "name_" + encodeKey(name)
}

func encodeKey(key string) string {
	// Firestore document IDs cannot contain "/", which appears in
	// classless-delegation reverse zone names such as
	// "0/26.2.0.192.in-addr.arpa."; each "/" is replaced with "_", keeping
	// document IDs human-readable for operators browsing the console.
	out := make([]rune, 0, len(key))
	for _, r := range key {
		if r == '/' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func zoneDocToZone(data map[string]interface{}) (*zonemodel.Zone, error) {
	raw, ok := data["body"].(string)
	if !ok {
		return nil, fmt.Errorf("zone document missing body field")
	}
	var doc zoneDocument
	if err := jsonUnmarshalString(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling zone document: %w", err)
	}
	return fromZoneDocument(doc)
}

// Create implements ZoneRepository.
func (r *FirestoreZoneRepository) Create(ctx context.Context, zone *zonemodel.Zone) error {
	body, err := jsonMarshalString(toZoneDocument(zone))
	if err != nil {
		return fmt.Errorf("marshaling zone document: %w", err)
	}

	nameRef := r.collectionRef().Doc(nameDocID(zone.Name))
	_, err = nameRef.Create(ctx, map[string]interface{}{"id": zone.ID})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return ErrAlreadyExists
		}
		return fmt.Errorf("reserving zone name %q: %w", zone.Name, err)
	}

	zoneRef := r.collectionRef().Doc(zone.ID)
	_, err = zoneRef.Create(ctx, map[string]interface{}{"body": body, "name": zone.Name})
	if err != nil {
		return fmt.Errorf("creating zone %q: %w", zone.ID, err)
	}
	return nil
}

// Get implements ZoneRepository.
func (r *FirestoreZoneRepository) Get(ctx context.Context, id string) (*zonemodel.Zone, error) {
	doc, err := r.collectionRef().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting zone %q: %w", id, err)
	}
	return zoneDocToZone(doc.Data())
}

// GetByName implements ZoneRepository.
func (r *FirestoreZoneRepository) GetByName(ctx context.Context, name string) (*zonemodel.Zone, error) {
	doc, err := r.collectionRef().Doc(nameDocID(name)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting zone by name %q: %w", name, err)
	}
	id, ok := doc.Data()["id"].(string)
	if !ok {
		return nil, fmt.Errorf("zone-name document missing id field")
	}
	return r.Get(ctx, id)
}

// Update implements ZoneRepository.
func (r *FirestoreZoneRepository) Update(ctx context.Context, zone *zonemodel.Zone) error {
	existing, err := r.Get(ctx, zone.ID)
	if err != nil {
		return err
	}

	body, err := jsonMarshalString(toZoneDocument(zone))
	if err != nil {
		return fmt.Errorf("marshaling zone document: %w", err)
	}
	_, err = r.collectionRef().Doc(zone.ID).Set(ctx, map[string]interface{}{"body": body, "name": zone.Name})
	if err != nil {
		return fmt.Errorf("updating zone %q: %w", zone.ID, err)
	}

	if existing.Name != zone.Name {
		if _, err := r.collectionRef().Doc(nameDocID(existing.Name)).Delete(ctx); err != nil {
			return fmt.Errorf("releasing old zone name %q: %w", existing.Name, err)
		}
		if _, err := r.collectionRef().Doc(nameDocID(zone.Name)).Create(ctx, map[string]interface{}{"id": zone.ID}); err != nil {
			return fmt.Errorf("reserving new zone name %q: %w", zone.Name, err)
		}
	}
	return nil
}

// Delete implements ZoneRepository.
func (r *FirestoreZoneRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.Get(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := r.collectionRef().Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("deleting zone %q: %w", id, err)
	}
	if _, err := r.collectionRef().Doc(nameDocID(existing.Name)).Delete(ctx); err != nil {
		return fmt.Errorf("releasing zone name %q: %w", existing.Name, err)
	}
	return nil
}

// List implements ZoneRepository.
func (r *FirestoreZoneRepository) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	query := r.collectionRef().Where("name", "!=", "").OrderBy("name", firestore.Asc)
	if opts.Account != "" {
		// Account is embedded in the zone body, not a top-level field, so
		// filtering by account happens after decoding rather than as a
		// Firestore query predicate.
		_ = opts.Account
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var zones []*zonemodel.Zone
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return ListResult{}, fmt.Errorf("listing zones: %w", err)
		}
		data := doc.Data()
		if _, isNameReservation := data["id"]; isNameReservation {
			if _, hasBody := data["body"]; !hasBody {
				continue
			}
		}
		z, err := zoneDocToZone(data)
		if err != nil {
			continue
		}
		if opts.Account != "" && z.Account != opts.Account {
			continue
		}
		zones = append(zones, z)
	}

	offset := 0
	if opts.Cursor != "" {
		for i, z := range zones {
			if z.ID == opts.Cursor {
				offset = i + 1
				break
			}
		}
	}
	end := len(zones)
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}
	page := zones[offset:end]
	var next string
	if end < len(zones) {
		next = page[len(page)-1].ID
	}
	return ListResult{Zones: page, NextCursor: next}, nil
}

// Count implements ZoneRepository.
func (r *FirestoreZoneRepository) Count(ctx context.Context) (int, error) {
	result, err := r.List(ctx, ListOptions{})
	if err != nil {
		return 0, err
	}
	return len(result.Zones), nil
}

// FirestorePrincipalStore implements PrincipalStore against a Firestore
// collection, one document per access key.
type FirestorePrincipalStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestorePrincipalStore shares the client used by a
// FirestoreZoneRepository for principal documents, stored in a sibling
// collection.
func NewFirestorePrincipalStore(repo *FirestoreZoneRepository) *FirestorePrincipalStore {
	return &FirestorePrincipalStore{client: repo.client, collection: repo.collection + "_principals"}
}

func (s *FirestorePrincipalStore) collectionRef() *firestore.CollectionRef {
	return s.client.Collection(s.collection)
}

// GetAuthPrincipal implements auth.AuthPrincipalProvider.
func (s *FirestorePrincipalStore) GetAuthPrincipal(ctx context.Context, accessKey string) (*auth.Principal, error) {
	doc, err := s.collectionRef().Doc(encodeKey(accessKey)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting principal %q: %w", accessKey, err)
	}
	var p auth.Principal
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("decoding principal %q: %w", accessKey, err)
	}
	return &p, nil
}

// Put implements PrincipalStore.
func (s *FirestorePrincipalStore) Put(ctx context.Context, p *auth.Principal) error {
	_, err := s.collectionRef().Doc(encodeKey(p.AccessKey)).Set(ctx, p)
	if err != nil {
		return fmt.Errorf("putting principal %q: %w", p.AccessKey, err)
	}
	return nil
}

// Delete implements PrincipalStore.
func (s *FirestorePrincipalStore) Delete(ctx context.Context, accessKey string) error {
	_, err := s.collectionRef().Doc(encodeKey(accessKey)).Delete(ctx)
	if err != nil {
		return fmt.Errorf("deleting principal %q: %w", accessKey, err)
	}
	return nil
}
