package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/config"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// CosmosZoneRepository implements ZoneRepository against an Azure Cosmos
// DB container, partitioned by item type so zone documents and their
// name reservations live in distinct, independently queryable partitions.
type CosmosZoneRepository struct {
	client    *azcosmos.ContainerClient
	database  string
	container string
}

// NewCosmosZoneRepository constructs a CosmosZoneRepository from cfg.
// An empty cfg.MasterKey selects azidentity's default credential chain
// instead of key-based authentication.
func NewCosmosZoneRepository(ctx context.Context, cfg *config.CosmosConfig) (*CosmosZoneRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cosmos config is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("cosmos endpoint is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("cosmos database name is required")
	}
	if cfg.Container == "" {
		return nil, fmt.Errorf("cosmos container name is required")
	}

	var client *azcosmos.Client
	var err error
	if cfg.MasterKey != "" {
		cred, credErr := azcosmos.NewKeyCredential(cfg.MasterKey)
		if credErr != nil {
			return nil, fmt.Errorf("creating cosmos key credential: %w", credErr)
		}
		client, err = azcosmos.NewClientWithKey(cfg.Endpoint, cred, &azcosmos.ClientOptions{ClientOptions: policy.ClientOptions{}})
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, fmt.Errorf("creating default azure credential: %w", credErr)
		}
		client, err = azcosmos.NewClient(cfg.Endpoint, cred, &azcosmos.ClientOptions{ClientOptions: policy.ClientOptions{}})
	}
	if err != nil {
		return nil, fmt.Errorf("creating cosmos client: %w", err)
	}

	dbClient, err := client.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("getting database client: %w", err)
	}
	containerClient, err := dbClient.NewContainer(cfg.Container)
	if err != nil {
		return nil, fmt.Errorf("getting container client: %w", err)
	}

	return &CosmosZoneRepository{client: containerClient, database: cfg.Database, container: cfg.Container}, nil
}

const (
	cosmosTypeZone           = "zone"
	cosmosTypeZoneNameLookup = "zone_name"
	cosmosTypePrincipal      = "principal"
)

func docIDZone(id string) string          { return "zone_" + id }
func docIDZoneName(name string) string    { return "zonename_" + encodeKey(name) }
func docIDPrincipal(accessKey string) string { return "principal_" + encodeKey(accessKey) }

type cosmosZoneItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	Body string `json:"body"`
}

type cosmosNameLookupItem struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	ZoneID string `json:"zoneId"`
}

func isCosmosNotFound(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404"))
}

// Create implements ZoneRepository.
func (r *CosmosZoneRepository) Create(ctx context.Context, zone *zonemodel.Zone) error {
	body, err := jsonMarshalString(toZoneDocument(zone))
	if err != nil {
		return fmt.Errorf("marshaling zone document: %w", err)
	}

	lookup := cosmosNameLookupItem{ID: docIDZoneName(zone.Name), Type: cosmosTypeZoneNameLookup, ZoneID: zone.ID}
	lookupData, err := json.Marshal(lookup)
	if err != nil {
		return fmt.Errorf("marshaling zone-name lookup: %w", err)
	}
	_, err = r.client.CreateItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZoneNameLookup), lookupData, nil)
	if err != nil {
		if strings.Contains(err.Error(), "Conflict") || strings.Contains(err.Error(), "409") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("reserving zone name %q: %w", zone.Name, err)
	}

	item := cosmosZoneItem{ID: docIDZone(zone.ID), Type: cosmosTypeZone, Name: zone.Name, Body: body}
	itemData, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling zone item: %w", err)
	}
	_, err = r.client.CreateItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZone), itemData, nil)
	if err != nil {
		return fmt.Errorf("creating zone %q: %w", zone.ID, err)
	}
	return nil
}

// Get implements ZoneRepository.
func (r *CosmosZoneRepository) Get(ctx context.Context, id string) (*zonemodel.Zone, error) {
	resp, err := r.client.ReadItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZone), docIDZone(id), nil)
	if err != nil {
		if isCosmosNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting zone %q: %w", id, err)
	}
	var item cosmosZoneItem
	if err := json.Unmarshal(resp.Value, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling zone item: %w", err)
	}
	var doc zoneDocument
	if err := jsonUnmarshalString(item.Body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling zone document: %w", err)
	}
	return fromZoneDocument(doc)
}

// GetByName implements ZoneRepository.
func (r *CosmosZoneRepository) GetByName(ctx context.Context, name string) (*zonemodel.Zone, error) {
	resp, err := r.client.ReadItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZoneNameLookup), docIDZoneName(name), nil)
	if err != nil {
		if isCosmosNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting zone by name %q: %w", name, err)
	}
	var lookup cosmosNameLookupItem
	if err := json.Unmarshal(resp.Value, &lookup); err != nil {
		return nil, fmt.Errorf("unmarshaling zone-name lookup: %w", err)
	}
	return r.Get(ctx, lookup.ZoneID)
}

// Update implements ZoneRepository.
func (r *CosmosZoneRepository) Update(ctx context.Context, zone *zonemodel.Zone) error {
	existing, err := r.Get(ctx, zone.ID)
	if err != nil {
		return err
	}

	body, err := jsonMarshalString(toZoneDocument(zone))
	if err != nil {
		return fmt.Errorf("marshaling zone document: %w", err)
	}
	item := cosmosZoneItem{ID: docIDZone(zone.ID), Type: cosmosTypeZone, Name: zone.Name, Body: body}
	itemData, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling zone item: %w", err)
	}
	_, err = r.client.UpsertItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZone), itemData, nil)
	if err != nil {
		return fmt.Errorf("updating zone %q: %w", zone.ID, err)
	}

	if existing.Name != zone.Name {
		_, err = r.client.DeleteItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZoneNameLookup), docIDZoneName(existing.Name), nil)
		if err != nil && !isCosmosNotFound(err) {
			return fmt.Errorf("releasing old zone name %q: %w", existing.Name, err)
		}
		lookup := cosmosNameLookupItem{ID: docIDZoneName(zone.Name), Type: cosmosTypeZoneNameLookup, ZoneID: zone.ID}
		lookupData, merr := json.Marshal(lookup)
		if merr != nil {
			return fmt.Errorf("marshaling zone-name lookup: %w", merr)
		}
		_, err = r.client.CreateItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZoneNameLookup), lookupData, nil)
		if err != nil {
			return fmt.Errorf("reserving new zone name %q: %w", zone.Name, err)
		}
	}
	return nil
}

// Delete implements ZoneRepository.
func (r *CosmosZoneRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.Get(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = r.client.DeleteItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZone), docIDZone(id), nil)
	if err != nil && !isCosmosNotFound(err) {
		return fmt.Errorf("deleting zone %q: %w", id, err)
	}
	_, err = r.client.DeleteItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypeZoneNameLookup), docIDZoneName(existing.Name), nil)
	if err != nil && !isCosmosNotFound(err) {
		return fmt.Errorf("releasing zone name %q: %w", existing.Name, err)
	}
	return nil
}

// List implements ZoneRepository.
func (r *CosmosZoneRepository) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	query := "SELECT * FROM c WHERE c.type = @type"
	params := []azcosmos.QueryParameter{{Name: "@type", Value: cosmosTypeZone}}

	pager := r.client.NewQueryItemsPager(query, azcosmos.NewPartitionKeyString(cosmosTypeZone), &azcosmos.QueryOptions{
		QueryParameters: params,
	})

	var zones []*zonemodel.Zone
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return ListResult{}, fmt.Errorf("listing zones: %w", err)
		}
		for _, raw := range page.Items {
			var item cosmosZoneItem
			if err := json.Unmarshal(raw, &item); err != nil {
				return ListResult{}, fmt.Errorf("unmarshaling zone item: %w", err)
			}
			var doc zoneDocument
			if err := jsonUnmarshalString(item.Body, &doc); err != nil {
				return ListResult{}, fmt.Errorf("unmarshaling zone document: %w", err)
			}
			z, err := fromZoneDocument(doc)
			if err != nil {
				return ListResult{}, err
			}
			if opts.Account == "" || z.Account == opts.Account {
				zones = append(zones, z)
			}
		}
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
func (r *CosmosZoneRepository) Count(ctx context.Context) (int, error) {
	result, err := r.List(ctx, ListOptions{})
	if err != nil {
		return 0, err
	}
	return len(result.Zones), nil
}

// CosmosPrincipalStore implements PrincipalStore against the same
// container, in the principal partition.
type CosmosPrincipalStore struct {
	client *azcosmos.ContainerClient
}

// NewCosmosPrincipalStore shares the container used by a
// CosmosZoneRepository for principal items.
func NewCosmosPrincipalStore(repo *CosmosZoneRepository) *CosmosPrincipalStore {
	return &CosmosPrincipalStore{client: repo.client}
}

type cosmosPrincipalItem struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	UserID    string   `json:"userId"`
	AccessKey string   `json:"accessKey"`
	SecretKey string   `json:"secretKey"`
	Groups    []string `json:"groups"`
}

// GetAuthPrincipal implements auth.AuthPrincipalProvider.
func (s *CosmosPrincipalStore) GetAuthPrincipal(ctx context.Context, accessKey string) (*auth.Principal, error) {
	resp, err := s.client.ReadItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypePrincipal), docIDPrincipal(accessKey), nil)
	if err != nil {
		if isCosmosNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting principal %q: %w", accessKey, err)
	}
	var item cosmosPrincipalItem
	if err := json.Unmarshal(resp.Value, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling principal: %w", err)
	}
	return &auth.Principal{UserID: item.UserID, AccessKey: item.AccessKey, SecretKey: item.SecretKey, Groups: item.Groups}, nil
}

// Put implements PrincipalStore.
func (s *CosmosPrincipalStore) Put(ctx context.Context, p *auth.Principal) error {
	item := cosmosPrincipalItem{
		ID:        docIDPrincipal(p.AccessKey),
		Type:      cosmosTypePrincipal,
		UserID:    p.UserID,
		AccessKey: p.AccessKey,
		SecretKey: p.SecretKey,
		Groups:    p.Groups,
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling principal: %w", err)
	}
	_, err = s.client.UpsertItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypePrincipal), data, nil)
	if err != nil {
		return fmt.Errorf("putting principal %q: %w", p.AccessKey, err)
	}
	return nil
}

// Delete implements PrincipalStore.
func (s *CosmosPrincipalStore) Delete(ctx context.Context, accessKey string) error {
	_, err := s.client.DeleteItem(ctx, azcosmos.NewPartitionKeyString(cosmosTypePrincipal), docIDPrincipal(accessKey), nil)
	if err != nil && !isCosmosNotFound(err) {
		return fmt.Errorf("deleting principal %q: %w", accessKey, err)
	}
	return nil
}
