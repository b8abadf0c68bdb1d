package zonemodel

import (
	"fmt"

	"github.com/zonewarden/zonewarden/internal/crypto"
	"github.com/zonewarden/zonewarden/internal/validate"
)

// ZoneConnection carries the TSIG connection details used for either a DNS
// UPDATE (Zone.Connection) or an AXFR/IXFR transfer (Zone.TransferConnection).
//
// Key holds TSIG secret material. Whether it is plaintext or encrypted is a
// lifecycle distinction, not a type distinction: callers track which state a
// given value is in and move between them with Encrypted and Decrypted.
type ZoneConnection struct {
	Name          string
	KeyName       string
	Key           []byte
	PrimaryServer string
}

// ZoneConnectionFields is the raw, caller-supplied shape of a connection
// before validation.
type ZoneConnectionFields struct {
	Name          string
	KeyName       string
	Key           []byte
	PrimaryServer string
}

// connectionFieldsEmpty reports whether fields carries no connection at
// all, as opposed to a connection with invalid fields. Both Zone.Connection
// and Zone.TransferConnection are optional per the zone data model; an
// absent connection must not itself produce validation errors.
func connectionFieldsEmpty(fields ZoneConnectionFields) bool {
	return fields.Name == "" && fields.KeyName == "" && len(fields.Key) == 0 && fields.PrimaryServer == ""
}

// validateConnection validates every field of fields independently,
// returning every failure found (none are short-circuited), prefixed with
// the given field-path prefix so the caller can distinguish "connection" from
// "transferConnection" errors. A wholly empty fields value is treated as "no
// connection supplied" rather than a connection with four missing fields.
func validateConnection(prefix string, fields ZoneConnectionFields) (ZoneConnection, []ValidationError) {
	if connectionFieldsEmpty(fields) {
		return ZoneConnection{}, nil
	}

	var errs []ValidationError

	if !validate.StringLength(fields.Name, 1, 255) {
		errs = append(errs, newFieldError(prefix+".name", "must be between 1 and 255 characters"))
	}
	if !validate.NonEmpty(fields.KeyName) {
		errs = append(errs, newFieldError(prefix+".keyName", "must not be empty"))
	}
	if len(fields.Key) == 0 {
		errs = append(errs, newFieldError(prefix+".key", "must not be empty"))
	}

	host, _, hasPort, portOK := validate.HostPort(fields.PrimaryServer)
	switch {
	case fields.PrimaryServer == "":
		errs = append(errs, newFieldError(prefix+".primaryServer", "must not be empty"))
	case !validate.HostOrIPv4(host):
		errs = append(errs, newFieldError(prefix+".primaryServer", "host must be a valid hostname or IPv4 literal"))
	case hasPort && !portOK:
		errs = append(errs, newFieldError(prefix+".primaryServer", "port must be between 1 and 65535"))
	}

	return ZoneConnection{
		Name:          fields.Name,
		KeyName:       fields.KeyName,
		Key:           fields.Key,
		PrimaryServer: fields.PrimaryServer,
	}, errs
}

// Encrypted returns a copy of c with Key replaced by algebra.Encrypt(Key).
// This is the transition applied before a connection is persisted.
func (c ZoneConnection) Encrypted(algebra crypto.Algebra) (ZoneConnection, error) {
	enc, err := algebra.Encrypt(c.Key)
	if err != nil {
		return ZoneConnection{}, fmt.Errorf("encrypting TSIG key: %w", err)
	}
	cp := c
	cp.Key = enc
	return cp, nil
}

// Decrypted returns a copy of c with Key replaced by algebra.Decrypt(Key),
// the inverse of Encrypted. Nothing in this module signs or dispatches DNS
// messages, so no production code path calls it; the decrypted value must
// never be logged.
func (c ZoneConnection) Decrypted(algebra crypto.Algebra) (ZoneConnection, error) {
	dec, err := algebra.Decrypt(c.Key)
	if err != nil {
		return ZoneConnection{}, fmt.Errorf("decrypting TSIG key: %w", err)
	}
	cp := c
	cp.Key = dec
	return cp, nil
}

// String implements fmt.Stringer, redacting Key so it never leaks through a
// debug rendering of a Zone or ZoneConnection.
func (c ZoneConnection) String() string {
	return fmt.Sprintf("ZoneConnection{Name:%s KeyName:%s Key:<redacted> PrimaryServer:%s}",
		c.Name, c.KeyName, c.PrimaryServer)
}

// GoString implements fmt.GoStringer for the same redaction under %#v.
func (c ZoneConnection) GoString() string {
	return c.String()
}
