package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/zonewarden/zonewarden/internal/metrics"
	"github.com/zonewarden/zonewarden/internal/store"
	"github.com/zonewarden/zonewarden/internal/zonemodel"
)

// registerZoneRoutes wires the zone CRUD and ACL surface: enough to make
// the authenticator and zone model runnable end to end over HTTP. It
// never opens a DNS socket; the authoritative nameservers stay an
// external collaborator reached out-of-band via each zone's
// ZoneConnection.
func (s *Server) registerZoneRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "create-zone",
		Method:      http.MethodPost,
		Path:        "/zones",
		Summary:     "Create a zone",
		Description: "Validates and persists a new authoritative zone, encrypting its TSIG key material before it reaches the repository.",
		Tags:        []string{"Zones"},
	}, s.createZone)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-zones",
		Method:      http.MethodGet,
		Path:        "/zones",
		Summary:     "List zones",
		Tags:        []string{"Zones"},
	}, s.listZones)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-zone",
		Method:      http.MethodGet,
		Path:        "/zones/{id}",
		Summary:     "Get a zone",
		Tags:        []string{"Zones"},
	}, s.getZone)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-zone",
		Method:      http.MethodDelete,
		Path:        "/zones/{id}",
		Summary:     "Delete a zone",
		Tags:        []string{"Zones"},
	}, s.deleteZone)

	huma.Register(s.api, huma.Operation{
		OperationID: "add-zone-acl-rule",
		Method:      http.MethodPost,
		Path:        "/zones/{id}/acl",
		Summary:     "Grant an ACL rule on a shared zone",
		Tags:        []string{"Zones"},
	}, s.addACLRule)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-zone-acl-rule",
		Method:      http.MethodDelete,
		Path:        "/zones/{id}/acl/{ruleId}",
		Summary:     "Revoke an ACL rule on a shared zone",
		Tags:        []string{"Zones"},
	}, s.deleteACLRule)
}

// ZoneConnectionDTO is the wire shape of a ZoneConnection. Key is accepted
// as plaintext on input and is never populated on output; zoneToDTO
// redacts it the same way zonemodel.ZoneConnection.String does.
type ZoneConnectionDTO struct {
	Name          string `json:"name"`
	KeyName       string `json:"keyName"`
	Key           string `json:"key,omitempty" doc:"TSIG key material; plaintext on input, never rendered on output"`
	PrimaryServer string `json:"primaryServer"`
}

// ACLRuleDTO is the wire shape of an ACLRule.
type ACLRuleDTO struct {
	ID          string `json:"id,omitempty"`
	OwnerID     string `json:"ownerId"`
	AccessLevel string `json:"accessLevel,omitempty"`
	RecordMask  string `json:"recordMask,omitempty"`
}

// ZoneDTO is the wire shape of a Zone.
type ZoneDTO struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	Status             string             `json:"status"`
	Shared             bool               `json:"shared"`
	Account            string             `json:"account"`
	AdminGroupID       string             `json:"adminGroupId,omitempty"`
	Connection         *ZoneConnectionDTO `json:"connection,omitempty"`
	TransferConnection *ZoneConnectionDTO `json:"transferConnection,omitempty"`
	ACL                []ACLRuleDTO       `json:"acl"`
	IsReverse          bool               `json:"isReverse"`
	Created            time.Time          `json:"created"`
	Updated            time.Time          `json:"updated,omitempty"`
}

func connectionToDTO(c zonemodel.ZoneConnection) *ZoneConnectionDTO {
	if c.Name == "" && c.KeyName == "" && c.PrimaryServer == "" {
		return nil
	}
	return &ZoneConnectionDTO{
		Name:          c.Name,
		KeyName:       c.KeyName,
		PrimaryServer: c.PrimaryServer,
	}
}

func zoneToDTO(z *zonemodel.Zone) ZoneDTO {
	rules := z.ACL.Rules()
	acl := make([]ACLRuleDTO, 0, len(rules))
	for _, r := range rules {
		acl = append(acl, ACLRuleDTO{
			ID:          r.ID,
			OwnerID:     r.OwnerID,
			AccessLevel: r.AccessLevel,
			RecordMask:  r.RecordMask,
		})
	}
	return ZoneDTO{
		ID:                 z.ID,
		Name:               z.Name,
		Email:              z.Email,
		Status:             z.Status.String(),
		Shared:             z.Shared,
		Account:            z.Account,
		AdminGroupID:       z.AdminGroupID,
		Connection:         connectionToDTO(z.Connection),
		TransferConnection: connectionToDTO(z.TransferConnection),
		ACL:                acl,
		IsReverse:          z.IsReverse(),
		Created:            z.Created,
		Updated:            z.Updated,
	}
}

func connectionFieldsFromDTO(dto *ZoneConnectionDTO) zonemodel.ZoneConnectionFields {
	if dto == nil {
		return zonemodel.ZoneConnectionFields{}
	}
	return zonemodel.ZoneConnectionFields{
		Name:          dto.Name,
		KeyName:       dto.KeyName,
		Key:           []byte(dto.Key),
		PrimaryServer: dto.PrimaryServer,
	}
}

// validationErrorsToHumaErrors adapts the zone builder's accumulated
// []zonemodel.ValidationError into the detail errors huma.Error400BadRequest
// renders on the response body, so a caller sees every field problem at once.
func validationErrorsToHumaErrors(errs []zonemodel.ValidationError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// CreateZoneInput is the request body for creating a zone.
type CreateZoneInput struct {
	Body struct {
		Name               string             `json:"name"`
		Email              string             `json:"email"`
		Account            string             `json:"account,omitempty"`
		AdminGroupID       string             `json:"adminGroupId,omitempty"`
		Shared             bool               `json:"shared,omitempty"`
		Connection         *ZoneConnectionDTO `json:"connection,omitempty"`
		TransferConnection *ZoneConnectionDTO `json:"transferConnection,omitempty"`
	}
}

// ZoneOutput wraps a single ZoneDTO for huma.Register's generic output shape.
type ZoneOutput struct {
	Body ZoneDTO
}

func (s *Server) createZone(ctx context.Context, input *CreateZoneInput) (*ZoneOutput, error) {
	account := input.Body.Account
	if account == "" {
		if p := principalFromContext(ctx); p != nil {
			account = p.UserID
		}
	}
	if account == "" {
		account = "system"
	}

	zone, errs := zonemodel.NewZone(zonemodel.ZoneFields{
		Name:               input.Body.Name,
		Email:              input.Body.Email,
		Account:            account,
		AdminGroupID:       input.Body.AdminGroupID,
		Shared:             input.Body.Shared,
		Connection:         connectionFieldsFromDTO(input.Body.Connection),
		TransferConnection: connectionFieldsFromDTO(input.Body.TransferConnection),
	})
	if len(errs) > 0 {
		return nil, huma.Error400BadRequest("zone did not pass validation", validationErrorsToHumaErrors(errs)...)
	}

	encryptedConn, err := zone.Connection.Encrypted(s.algebra)
	if err != nil {
		return nil, huma.Error500InternalServerError("encrypting connection TSIG key", err)
	}
	encryptedXfer, err := zone.TransferConnection.Encrypted(s.algebra)
	if err != nil {
		return nil, huma.Error500InternalServerError("encrypting transfer connection TSIG key", err)
	}
	zone.Connection = encryptedConn
	zone.TransferConnection = encryptedXfer

	if err := s.zones.Create(ctx, zone); err != nil {
		if err == store.ErrAlreadyExists {
			metrics.ZoneRepositoryOpsTotal.WithLabelValues("create", "already_exists").Inc()
			return nil, huma.Error409Conflict("a zone with this name is already registered")
		}
		metrics.ZoneRepositoryOpsTotal.WithLabelValues("create", "error").Inc()
		return nil, huma.Error500InternalServerError("creating zone", err)
	}
	metrics.ZoneRepositoryOpsTotal.WithLabelValues("create", "ok").Inc()

	return &ZoneOutput{Body: zoneToDTO(zone)}, nil
}

// ListZonesInput restricts and paginates the zone listing.
type ListZonesInput struct {
	Account string `query:"account" doc:"Restrict the listing to zones owned by this account"`
	Limit   int    `query:"limit" doc:"Maximum number of zones to return"`
	Cursor  string `query:"cursor" doc:"Resume a previous listing"`
}

// ListZonesOutput is the response body for a zone listing.
type ListZonesOutput struct {
	Body struct {
		Zones      []ZoneDTO `json:"zones"`
		NextCursor string    `json:"nextCursor,omitempty"`
	}
}

func (s *Server) listZones(ctx context.Context, input *ListZonesInput) (*ListZonesOutput, error) {
	result, err := s.zones.List(ctx, store.ListOptions{
		Account: input.Account,
		Limit:   input.Limit,
		Cursor:  input.Cursor,
	})
	if err != nil {
		metrics.ZoneRepositoryOpsTotal.WithLabelValues("list", "error").Inc()
		return nil, huma.Error500InternalServerError("listing zones", err)
	}
	metrics.ZoneRepositoryOpsTotal.WithLabelValues("list", "ok").Inc()

	out := &ListZonesOutput{}
	out.Body.Zones = make([]ZoneDTO, 0, len(result.Zones))
	for _, z := range result.Zones {
		out.Body.Zones = append(out.Body.Zones, zoneToDTO(z))
	}
	out.Body.NextCursor = result.NextCursor
	return out, nil
}

// GetZoneInput identifies the zone to fetch.
type GetZoneInput struct {
	ID string `path:"id"`
}

func (s *Server) getZone(ctx context.Context, input *GetZoneInput) (*ZoneOutput, error) {
	zone, err := s.zones.Get(ctx, input.ID)
	if err != nil {
		if err == store.ErrNotFound {
			metrics.ZoneRepositoryOpsTotal.WithLabelValues("get", "not_found").Inc()
			return nil, huma.Error404NotFound("the specified zone does not exist")
		}
		metrics.ZoneRepositoryOpsTotal.WithLabelValues("get", "error").Inc()
		return nil, huma.Error500InternalServerError("fetching zone", err)
	}
	metrics.ZoneRepositoryOpsTotal.WithLabelValues("get", "ok").Inc()
	return &ZoneOutput{Body: zoneToDTO(zone)}, nil
}

// DeleteZoneInput identifies the zone to delete.
type DeleteZoneInput struct {
	ID string `path:"id"`
}

func (s *Server) deleteZone(ctx context.Context, input *DeleteZoneInput) (*struct{}, error) {
	if err := s.zones.Delete(ctx, input.ID); err != nil {
		metrics.ZoneRepositoryOpsTotal.WithLabelValues("delete", "error").Inc()
		return nil, huma.Error500InternalServerError("deleting zone", err)
	}
	metrics.ZoneRepositoryOpsTotal.WithLabelValues("delete", "ok").Inc()
	return nil, nil
}

// AddACLRuleInput is the request to grant a rule on a shared zone's ACL.
type AddACLRuleInput struct {
	ID   string `path:"id"`
	Body struct {
		OwnerID     string `json:"ownerId"`
		AccessLevel string `json:"accessLevel,omitempty"`
		RecordMask  string `json:"recordMask,omitempty"`
	}
}

func (s *Server) addACLRule(ctx context.Context, input *AddACLRuleInput) (*ZoneOutput, error) {
	zone, err := s.zones.Get(ctx, input.ID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, huma.Error404NotFound("the specified zone does not exist")
		}
		return nil, huma.Error500InternalServerError("fetching zone", err)
	}

	updated, errs := zone.AddACLRule(zonemodel.ACLRule{
		OwnerID:     input.Body.OwnerID,
		AccessLevel: input.Body.AccessLevel,
		RecordMask:  input.Body.RecordMask,
	}, time.Now().UTC())
	if len(errs) > 0 {
		return nil, huma.Error400BadRequest("ACL rule did not pass validation", validationErrorsToHumaErrors(errs)...)
	}

	if err := s.zones.Update(ctx, updated); err != nil {
		metrics.ZoneRepositoryOpsTotal.WithLabelValues("update", "error").Inc()
		return nil, huma.Error500InternalServerError("updating zone", err)
	}
	metrics.ZoneRepositoryOpsTotal.WithLabelValues("update", "ok").Inc()

	return &ZoneOutput{Body: zoneToDTO(updated)}, nil
}

// DeleteACLRuleInput identifies the zone and rule to revoke.
type DeleteACLRuleInput struct {
	ID     string `path:"id"`
	RuleID string `path:"ruleId"`
}

func (s *Server) deleteACLRule(ctx context.Context, input *DeleteACLRuleInput) (*ZoneOutput, error) {
	zone, err := s.zones.Get(ctx, input.ID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, huma.Error404NotFound("the specified zone does not exist")
		}
		return nil, huma.Error500InternalServerError("fetching zone", err)
	}

	updated := zone.DeleteACLRule(input.RuleID, time.Now().UTC())

	if err := s.zones.Update(ctx, updated); err != nil {
		metrics.ZoneRepositoryOpsTotal.WithLabelValues("update", "error").Inc()
		return nil, huma.Error500InternalServerError("updating zone", err)
	}
	metrics.ZoneRepositoryOpsTotal.WithLabelValues("update", "ok").Inc()

	return &ZoneOutput{Body: zoneToDTO(updated)}, nil
}
