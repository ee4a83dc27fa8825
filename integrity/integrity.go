// Package integrity implements the C2 signature integrity validator:
// structural well-formedness of a signed envelope and agreement between
// its payload's descriptorCid and the attached descriptor. It does not
// verify cryptography; that is the authn package's job (C3).
package integrity

import (
	"github.com/dwn-project/dwn-core/cid"
	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/timestamp"
)

// SchemaValidator validates a decoded JWS payload against the named
// payload shape's JSON-Schema fragment. JSON-Schema validation is an
// external collaborator; this package only names the contract it
// consumes.
type SchemaValidator interface {
	Validate(shapeName string, payload map[string]any) error
}

// PayloadShape names which optional payload properties a given call
// site allows, and which of those are expected to parse as CIDs.
// Modeled as a config struct rather than dynamic maps, since the set
// of allowed properties is fixed per call site.
type PayloadShape struct {
	Name             string
	AllowedProperties []string
	CIDProperties    []string
}

var (
	// GenericSignaturePayload allows no properties beyond descriptorCid:
	// used for messages that carry no record identity or delegation.
	GenericSignaturePayload = PayloadShape{
		Name: "GenericSignaturePayload",
	}

	// RecordsWriteSignaturePayload is the payload shape for Records.Write:
	// recordId is required by convention (checked separately by the
	// caller via Message.ValidateRecordIdentity), contextId is present
	// for context-scoped records, and attestation/encryption CIDs are
	// optional record-level attachments.
	RecordsWriteSignaturePayload = PayloadShape{
		Name:              "RecordsWriteSignaturePayload",
		AllowedProperties: []string{"recordId", "contextId", "attestationCid", "encryptionCid"},
		CIDProperties:     []string{"recordId", "contextId", "attestationCid", "encryptionCid"},
	}

	// RecordsDeleteSignaturePayload covers Records.Delete, which carries
	// no record content so needs no attestation/encryption CIDs.
	RecordsDeleteSignaturePayload = PayloadShape{
		Name:              "RecordsDeleteSignaturePayload",
		AllowedProperties: []string{"recordId", "contextId"},
		CIDProperties:     []string{"recordId", "contextId"},
	}

	// ProtocolRoleSignaturePayload extends the generic shape with an
	// invoked protocolRole, for messages authorized by role invocation.
	ProtocolRoleSignaturePayload = PayloadShape{
		Name:              "ProtocolRoleSignaturePayload",
		AllowedProperties: []string{"recordId", "contextId", "protocolRole"},
		CIDProperties:     []string{"recordId", "contextId"},
	}

	// GrantInvocationSignaturePayload extends the generic shape with a
	// permissionsGrantId, for messages invoking a permission grant.
	GrantInvocationSignaturePayload = PayloadShape{
		Name:              "GrantInvocationSignaturePayload",
		AllowedProperties: []string{"recordId", "contextId", "protocolRole", "permissionsGrantId"},
		CIDProperties:     []string{"recordId", "contextId", "permissionsGrantId"},
	}
)

// Validate runs the C2 structural checks against a message's author
// signature. validator may be nil, in which case payload-shape schema
// validation is skipped (the caller is relying on a validator wired in
// further up the stack, or is a unit test that doesn't need it).
func Validate(d message.Descriptor, auth *message.Authorization, shape PayloadShape, validator SchemaValidator) (*message.SignaturePayload, error) {
	if auth == nil {
		return nil, errs.New(errs.CodeAuthorizationMissing, "message lacks authorization")
	}

	if auth.AuthorSignature == nil {
		return nil, errs.New(errs.CodeAuthenticateJwsMissing, "authorization lacks an author signature envelope")
	}

	if err := validateSignatureCount(auth.AuthorSignature); err != nil {
		return nil, err
	}

	if auth.OwnerSignature != nil {
		if err := validateSignatureCount(auth.OwnerSignature); err != nil {
			return nil, err
		}
	}

	if err := timestamp.Validate(d.MessageTimestamp); err != nil {
		return nil, err
	}

	if d.DateCreated != "" {
		if err := timestamp.Validate(d.DateCreated); err != nil {
			return nil, err
		}
	}

	payloadMap, err := message.DecodePayloadMap(auth.AuthorSignature)
	if err != nil {
		return nil, err
	}

	if validator != nil {
		if err := validator.Validate(shape.Name, payloadMap); err != nil {
			return nil, errs.Wrap(errs.CodePayloadSchemaInvalid, "payload failed schema validation", err)
		}
	}

	if err := checkExtraneousProperties(payloadMap, shape); err != nil {
		return nil, err
	}

	if err := checkCIDProperties(payloadMap, shape); err != nil {
		return nil, err
	}

	payload, err := message.DecodePayload(auth.AuthorSignature)
	if err != nil {
		return nil, err
	}

	descriptorCID, err := d.CID()
	if err != nil {
		return nil, err
	}

	if payload.DescriptorCID != descriptorCID {
		return nil, errs.Newf(errs.CodeDescriptorCidMismatch, "payload descriptorCid %q does not match recomputed descriptor cid %q", payload.DescriptorCID, descriptorCID)
	}

	return payload, nil
}

func validateSignatureCount(jws *message.GeneralJws) error {
	if len(jws.Signatures) != 1 {
		return errs.Newf(errs.CodeSignatureCountInvalid, "expected exactly 1 signature, got %d", len(jws.Signatures))
	}

	return nil
}

func checkExtraneousProperties(payload map[string]any, shape PayloadShape) error {
	allowed := map[string]bool{"descriptorCid": true}
	for _, p := range shape.AllowedProperties {
		allowed[p] = true
	}

	for key := range payload {
		if !allowed[key] {
			return errs.Newf(errs.CodePayloadExtraneousProp, "payload carries unexpected property %q", key)
		}
	}

	return nil
}

func checkCIDProperties(payload map[string]any, shape PayloadShape) error {
	for _, prop := range shape.CIDProperties {
		value, present := payload[prop]
		if !present {
			continue
		}

		s, ok := value.(string)
		if !ok || !cid.IsValid(s) {
			return errs.Newf(errs.CodePayloadPropertyNotCid, "payload property %q is not a valid cid", prop)
		}
	}

	return nil
}
