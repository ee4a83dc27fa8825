package message

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/dwn-project/dwn-core/errs"
)

// SignatureEntry is one entry of a GeneralJws's `signatures` array: a
// base64url-encoded JSON protected header and a base64url-encoded
// signature over `protected . payload`.
type SignatureEntry struct {
	Protected string `json:"protected"`
	Signature string `json:"signature"`
}

// GeneralJws is the generalized-JWS envelope shape: a single shared
// payload signed by one or more parties, each contributing their own
// protected header and signature.
type GeneralJws struct {
	Payload    string           `json:"payload"`
	Signatures []SignatureEntry `json:"signatures"`
}

// Authorization carries the author's signature over a message and,
// optionally, an owner's signature attesting the tenant has taken
// custody of an author-authored message (e.g. after owner delegation).
type Authorization struct {
	AuthorSignature *GeneralJws
	OwnerSignature  *GeneralJws
}

// ProtectedHeader is the decoded form of a SignatureEntry's `protected`
// field: the JWS algorithm and the fully-qualified key ID of the
// verification method that produced the signature.
type ProtectedHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// SignaturePayload is the decoded form of a GeneralJws's shared
// `payload`: at minimum the CID of the descriptor it covers, plus
// whichever optional properties the caller's allow-list permits.
type SignaturePayload struct {
	DescriptorCID      string `json:"descriptorCid"`
	RecordID           string `json:"recordId,omitempty"`
	ContextID          string `json:"contextId,omitempty"`
	ProtocolRole       string `json:"protocolRole,omitempty"`
	PermissionsGrantID string `json:"permissionsGrantId,omitempty"`
	AttestationCID     string `json:"attestationCid,omitempty"`
	EncryptionCID      string `json:"encryptionCid,omitempty"`
}

// base64urlEncoding is unpadded base64url, the encoding JWS components
// use throughout.
var base64urlEncoding = base64.RawURLEncoding

// DecodeProtectedHeader base64url-decodes and JSON-unmarshals a
// signature entry's protected header.
func DecodeProtectedHeader(entry SignatureEntry) (ProtectedHeader, error) {
	raw, err := base64urlEncoding.DecodeString(entry.Protected)
	if err != nil {
		return ProtectedHeader{}, errs.Wrap(errs.CodeAuthenticateSignatureInvalid, "failed to decode protected header", err)
	}

	var header ProtectedHeader

	if err := json.Unmarshal(raw, &header); err != nil {
		return ProtectedHeader{}, errs.Wrap(errs.CodeAuthenticateSignatureInvalid, "failed to parse protected header", err)
	}

	return header, nil
}

// SigningInput reconstructs the exact byte sequence a signature entry
// signs: `protected . payload`, both still base64url-encoded.
func SigningInput(jws *GeneralJws, entry SignatureEntry) string {
	return entry.Protected + "." + jws.Payload
}

// DecodePayloadMap base64url-decodes a GeneralJws's shared payload and
// unmarshals it into a generic map, preserving unknown properties so
// callers can enforce an allow-list (the integrity validator's job; see
// the `integrity` package).
func DecodePayloadMap(jws *GeneralJws) (map[string]any, error) {
	raw, err := base64urlEncoding.DecodeString(jws.Payload)
	if err != nil {
		return nil, errs.Wrap(errs.CodeAuthorizationMissing, "failed to decode jws payload", err)
	}

	var m map[string]any

	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.Wrap(errs.CodeAuthorizationMissing, "failed to parse jws payload", err)
	}

	return m, nil
}

// DecodePayload decodes a GeneralJws's shared payload into the typed
// SignaturePayload shape.
func DecodePayload(jws *GeneralJws) (*SignaturePayload, error) {
	raw, err := base64urlEncoding.DecodeString(jws.Payload)
	if err != nil {
		return nil, errs.Wrap(errs.CodeAuthorizationMissing, "failed to decode jws payload", err)
	}

	var payload SignaturePayload

	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errs.Wrap(errs.CodeAuthorizationMissing, "failed to parse jws payload", err)
	}

	return &payload, nil
}

// DIDFromKid strips a key ID down to its DID prefix: everything before
// the first `#` fragment separator, or the whole string if there is no
// fragment.
func DIDFromKid(kid string) string {
	if i := strings.IndexByte(kid, '#'); i >= 0 {
		return kid[:i]
	}

	return kid
}

// AuthorDID extracts the author's DID from the author signature's
// protected header. Every Authorization with a non-nil AuthorSignature
// is expected to carry exactly one signature entry by the time this is
// called; see the `integrity` package's SignatureCountInvalid check.
func (a *Authorization) AuthorDID() (string, error) {
	if a == nil || a.AuthorSignature == nil || len(a.AuthorSignature.Signatures) == 0 {
		return "", errs.New(errs.CodeAuthorizationMissing, "authorization has no author signature")
	}

	header, err := DecodeProtectedHeader(a.AuthorSignature.Signatures[0])
	if err != nil {
		return "", err
	}

	return DIDFromKid(header.Kid), nil
}

// OwnerDID extracts the owner's DID from the owner signature's
// protected header, if present.
func (a *Authorization) OwnerDID() (string, bool, error) {
	if a == nil || a.OwnerSignature == nil || len(a.OwnerSignature.Signatures) == 0 {
		return "", false, nil
	}

	header, err := DecodeProtectedHeader(a.OwnerSignature.Signatures[0])
	if err != nil {
		return "", false, err
	}

	return DIDFromKid(header.Kid), true, nil
}
