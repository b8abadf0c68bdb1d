package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/zonewarden/zonewarden/internal/auth"
	"github.com/zonewarden/zonewarden/internal/config"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// DynamoDBZoneRepository implements ZoneRepository against a single
// DynamoDB table, using a pk/sk item design: one item holds the zone's
// metadata keyed by its ID, and a second item reserves its name for
// uniqueness and name-based lookup.
type DynamoDBZoneRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBZoneRepository constructs a DynamoDBZoneRepository from cfg,
// loading AWS credentials and region from the default chain.
func NewDynamoDBZoneRepository(ctx context.Context, cfg *config.DynamoDBConfig) (*DynamoDBZoneRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("dynamodb config is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}

	return &DynamoDBZoneRepository{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.Table,
	}, nil
}

func pkZone(id string) string      { return "ZONE#" + id }
func pkZoneName(name string) string { return "ZONENAME#" + name }
func skMeta() string                { return "#METADATA" }

type zoneDocument struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	Email              string               `json:"email"`
	Status             int                  `json:"status"`
	Shared             bool                 `json:"shared"`
	Account            string               `json:"account"`
	AdminGroupID       string               `json:"adminGroupId"`
	Connection         zoneConnectionDoc    `json:"connection"`
	TransferConnection zoneConnectionDoc    `json:"transferConnection"`
	ACL                []zonemodel.ACLRule  `json:"acl"`
	Created            string               `json:"created"`
	Updated            string               `json:"updated"`
	LatestSync         string               `json:"latestSync"`
}

type zoneConnectionDoc struct {
	Name          string `json:"name"`
	KeyName       string `json:"keyName"`
	Key           string `json:"key"` // base64
	PrimaryServer string `json:"primaryServer"`
}

func toConnectionDoc(c zonemodel.ZoneConnection) zoneConnectionDoc {
	return zoneConnectionDoc{
		Name:          c.Name,
		KeyName:       c.KeyName,
		Key:           base64.StdEncoding.EncodeToString(c.Key),
		PrimaryServer: c.PrimaryServer,
	}
}

func fromConnectionDoc(d zoneConnectionDoc) zonemodel.ZoneConnection {
	key, _ := base64.StdEncoding.DecodeString(d.Key)
	return zonemodel.ZoneConnection{
		Name:          d.Name,
		KeyName:       d.KeyName,
		Key:           key,
		PrimaryServer: d.PrimaryServer,
	}
}

func toZoneDocument(z *zonemodel.Zone) zoneDocument {
	return zoneDocument{
		ID:                 z.ID,
		Name:               z.Name,
		Email:              z.Email,
		Status:             int(z.Status),
		Shared:             z.Shared,
		Account:            z.Account,
		AdminGroupID:       z.AdminGroupID,
		Connection:         toConnectionDoc(z.Connection),
		TransferConnection: toConnectionDoc(z.TransferConnection),
		ACL:                z.ACL.Rules(),
		Created:            formatSQLiteTime(z.Created),
		Updated:            formatSQLiteTime(z.Updated),
		LatestSync:         formatSQLiteTime(z.LatestSync),
	}
}

func fromZoneDocument(d zoneDocument) (*zonemodel.Zone, error) {
	acl, errs := zonemodel.NewZoneACLForStore(d.ACL)
	if len(errs) > 0 {
		return nil, fmt.Errorf("rehydrating ACL for zone %q: %v", d.ID, errs)
	}
	return &zonemodel.Zone{
		ID:                 d.ID,
		Name:               d.Name,
		Email:              d.Email,
		Status:             zonemodel.Status(d.Status),
		Shared:             d.Shared,
		Account:            d.Account,
		AdminGroupID:       d.AdminGroupID,
		Connection:         fromConnectionDoc(d.Connection),
		TransferConnection: fromConnectionDoc(d.TransferConnection),
		ACL:                acl,
		Created:            parseSQLiteTime(d.Created),
		Updated:            parseSQLiteTime(d.Updated),
		LatestSync:         parseSQLiteTime(d.LatestSync),
	}, nil
}

func (r *DynamoDBZoneRepository) zoneItem(z *zonemodel.Zone) (map[string]types.AttributeValue, error) {
	body, err := json.Marshal(toZoneDocument(z))
	if err != nil {
		return nil, fmt.Errorf("marshaling zone document: %w", err)
	}
	return map[string]types.AttributeValue{
		"pk":   &types.AttributeValueMemberS{Value: pkZone(z.ID)},
		"sk":   &types.AttributeValueMemberS{Value: skMeta()},
		"name": &types.AttributeValueMemberS{Value: z.Name},
		"body": &types.AttributeValueMemberS{Value: string(body)},
	}, nil
}

// Create implements ZoneRepository.
func (r *DynamoDBZoneRepository) Create(ctx context.Context, zone *zonemodel.Zone) error {
	item, err := r.zoneItem(zone)
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pkZoneName(zone.Name)},
			"sk": &types.AttributeValueMemberS{Value: skMeta()},
			"id": &types.AttributeValueMemberS{Value: zone.ID},
		},
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("reserving zone name %q: %w", zone.Name, err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		return fmt.Errorf("creating zone %q: %w", zone.ID, err)
	}
	return nil
}

func (r *DynamoDBZoneRepository) getItem(ctx context.Context, pk string) (map[string]types.AttributeValue, error) {
	resp, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: skMeta()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", pk, err)
	}
	return resp.Item, nil
}

func (r *DynamoDBZoneRepository) decodeZoneItem(item map[string]types.AttributeValue) (*zonemodel.Zone, error) {
	body, ok := item["body"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("zone item missing body attribute")
	}
	var doc zoneDocument
	if err := json.Unmarshal([]byte(body.Value), &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling zone document: %w", err)
	}
	return fromZoneDocument(doc)
}

// Get implements ZoneRepository.
func (r *DynamoDBZoneRepository) Get(ctx context.Context, id string) (*zonemodel.Zone, error) {
	item, err := r.getItem(ctx, pkZone(id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	return r.decodeZoneItem(item)
}

// GetByName implements ZoneRepository.
func (r *DynamoDBZoneRepository) GetByName(ctx context.Context, name string) (*zonemodel.Zone, error) {
	item, err := r.getItem(ctx, pkZoneName(name))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}
	idAttr, ok := item["id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("zone-name item missing id attribute")
	}
	return r.Get(ctx, idAttr.Value)
}

// Update implements ZoneRepository.
func (r *DynamoDBZoneRepository) Update(ctx context.Context, zone *zonemodel.Zone) error {
	existing, err := r.Get(ctx, zone.ID)
	if err != nil {
		return err
	}

	item, err := r.zoneItem(zone)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("updating zone %q: %w", zone.ID, err)
	}

	if existing.Name != zone.Name {
		_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pkZoneName(existing.Name)},
				"sk": &types.AttributeValueMemberS{Value: skMeta()},
			},
		})
		if err != nil {
			return fmt.Errorf("releasing old zone name %q: %w", existing.Name, err)
		}
		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(r.tableName),
			Item: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pkZoneName(zone.Name)},
				"sk": &types.AttributeValueMemberS{Value: skMeta()},
				"id": &types.AttributeValueMemberS{Value: zone.ID},
			},
		})
		if err != nil {
			return fmt.Errorf("reserving new zone name %q: %w", zone.Name, err)
		}
	}
	return nil
}

// Delete implements ZoneRepository.
func (r *DynamoDBZoneRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.Get(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pkZone(id)},
			"sk": &types.AttributeValueMemberS{Value: skMeta()},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting zone %q: %w", id, err)
	}

	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pkZoneName(existing.Name)},
			"sk": &types.AttributeValueMemberS{Value: skMeta()},
		},
	})
	if err != nil {
		return fmt.Errorf("releasing zone name %q: %w", existing.Name, err)
	}
	return nil
}

// List implements ZoneRepository. DynamoDB's Scan does not support a
// well-ordered cursor across pages of filtered items, so this backend
// scans the whole table and paginates in memory; deployments with a large
// zone count should prefer the DynamoDB-native filter, not this backend's
// List, for operational dashboards.
func (r *DynamoDBZoneRepository) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	var zones []*zonemodel.Zone
	var exclusiveStartKey map[string]types.AttributeValue
	for {
		input := &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("begins_with(pk, :prefix) AND sk = :meta"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":prefix": &types.AttributeValueMemberS{Value: "ZONE#"},
				":meta":   &types.AttributeValueMemberS{Value: skMeta()},
			},
		}
		if exclusiveStartKey != nil {
			input.ExclusiveStartKey = exclusiveStartKey
		}
		resp, err := r.client.Scan(ctx, input)
		if err != nil {
			return ListResult{}, fmt.Errorf("listing zones: %w", err)
		}
		for _, item := range resp.Items {
			z, err := r.decodeZoneItem(item)
			if err != nil {
				return ListResult{}, err
			}
			if opts.Account == "" || z.Account == opts.Account {
				zones = append(zones, z)
			}
		}
		if resp.LastEvaluatedKey == nil {
			break
		}
		exclusiveStartKey = resp.LastEvaluatedKey
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
func (r *DynamoDBZoneRepository) Count(ctx context.Context) (int, error) {
	result, err := r.List(ctx, ListOptions{})
	if err != nil {
		return 0, err
	}
	return len(result.Zones), nil
}

// DynamoDBPrincipalStore implements PrincipalStore against the same table,
// keyed by access key.
type DynamoDBPrincipalStore struct {
	client    *dynamodb.Client
	tableName string
}

// NewDynamoDBPrincipalStore shares the table used by a
// DynamoDBZoneRepository for principal records.
func NewDynamoDBPrincipalStore(repo *DynamoDBZoneRepository) *DynamoDBPrincipalStore {
	return &DynamoDBPrincipalStore{client: repo.client, tableName: repo.tableName}
}

func pkPrincipal(accessKey string) string { return "PRINCIPAL#" + accessKey }

// GetAuthPrincipal implements auth.AuthPrincipalProvider.
func (s *DynamoDBPrincipalStore) GetAuthPrincipal(ctx context.Context, accessKey string) (*auth.Principal, error) {
	resp, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pkPrincipal(accessKey)},
			"sk": &types.AttributeValueMemberS{Value: skMeta()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("getting principal %q: %w", accessKey, err)
	}
	if resp.Item == nil {
		return nil, nil
	}

	body, ok := resp.Item["body"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("principal item missing body attribute")
	}
	var p auth.Principal
	if err := json.Unmarshal([]byte(body.Value), &p); err != nil {
		return nil, fmt.Errorf("unmarshaling principal: %w", err)
	}
	return &p, nil
}

// Put implements PrincipalStore.
func (s *DynamoDBPrincipalStore) Put(ctx context.Context, p *auth.Principal) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling principal: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"pk":   &types.AttributeValueMemberS{Value: pkPrincipal(p.AccessKey)},
			"sk":   &types.AttributeValueMemberS{Value: skMeta()},
			"body": &types.AttributeValueMemberS{Value: string(body)},
		},
	})
	if err != nil {
		return fmt.Errorf("putting principal %q: %w", p.AccessKey, err)
	}
	return nil
}

// Delete implements PrincipalStore.
func (s *DynamoDBPrincipalStore) Delete(ctx context.Context, accessKey string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pkPrincipal(accessKey)},
			"sk": &types.AttributeValueMemberS{Value: skMeta()},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting principal %q: %w", accessKey, err)
	}
	return nil
}
