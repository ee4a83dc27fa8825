package authn

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/multiformats/go-multibase"
	mc "github.com/multiformats/go-multicodec"

	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/message"
)

func encodeDIDKey(t *testing.T, pub ed25519.PublicKey) string {
	t.Helper()

	var codecBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(codecBuf[:], uint64(mc.Ed25519Pub))

	data := append(append([]byte{}, codecBuf[:n]...), pub...)

	encoded, err := multibase.Encode(multibase.Base58BTC, data)
	if err != nil {
		t.Fatalf("multibase encode: %v", err)
	}

	return "did:key:" + encoded
}

type staticResolver struct {
	doc *DIDDocument
}

func (r staticResolver) Resolve(did string) (*DIDDocument, error) {
	if r.doc == nil || r.doc.ID != did {
		return nil, errs.New(errs.CodeAuthenticateSignerNotFound, "did not found")
	}

	return r.doc, nil
}

func signedAuthorization(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, did string) *message.Authorization {
	t.Helper()

	header, err := json.Marshal(message.ProtectedHeader{Alg: "EdDSA", Kid: did + "#key-1"})
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	payload, err := json.Marshal(message.SignaturePayload{DescriptorCID: "bafyplaceholder"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	protected := base64.RawURLEncoding.EncodeToString(header)
	payloadEncoded := base64.RawURLEncoding.EncodeToString(payload)

	signature := ed25519.Sign(priv, []byte(protected+"."+payloadEncoded))

	return &message.Authorization{
		AuthorSignature: &message.GeneralJws{
			Payload: payloadEncoded,
			Signatures: []message.SignatureEntry{{
				Protected: protected,
				Signature: base64.RawURLEncoding.EncodeToString(signature),
			}},
		},
	}
}

func TestAuthenticateVerifiesEd25519Signature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	did := "did:example:alice"

	doc := &DIDDocument{
		ID: did,
		VerificationMethod: []VerificationMethod{{
			ID:         did + "#key-1",
			Type:       VerificationMethodTypeJsonWebKey2020,
			Controller: did,
			PublicKeyJWK: map[string]any{
				"kty": "OKP",
				"crv": "Ed25519",
				"x":   base64.RawURLEncoding.EncodeToString(pub),
			},
		}},
	}

	auth := signedAuthorization(t, pub, priv, did)

	authorDID, _, hasOwner, err := Authenticate(auth, staticResolver{doc: doc})
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}

	if authorDID != did {
		t.Fatalf("expected author %s, got %s", did, authorDID)
	}

	if hasOwner {
		t.Fatal("expected no owner signature")
	}
}

func TestAuthenticateRejectsTamperedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	did := "did:example:alice"

	doc := &DIDDocument{
		ID: did,
		VerificationMethod: []VerificationMethod{{
			ID:         did + "#key-1",
			Type:       VerificationMethodTypeJsonWebKey2020,
			Controller: did,
			PublicKeyJWK: map[string]any{
				"kty": "OKP",
				"crv": "Ed25519",
				"x":   base64.RawURLEncoding.EncodeToString(pub),
			},
		}},
	}

	auth := signedAuthorization(t, pub, priv, did)
	auth.AuthorSignature.Signatures[0].Signature = base64.RawURLEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))

	if _, _, _, err := Authenticate(auth, staticResolver{doc: doc}); !errs.Is(err, errs.CodeAuthenticateSignatureInvalid) {
		t.Fatalf("expected AuthenticateSignatureInvalid, got %v", err)
	}
}

func TestAuthenticateRejectsUnresolvableSigner(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	auth := signedAuthorization(t, pub, priv, "did:example:ghost")

	if _, _, _, err := Authenticate(auth, staticResolver{}); !errs.Is(err, errs.CodeAuthenticateSignerNotFound) {
		t.Fatalf("expected AuthenticateSignerNotFound, got %v", err)
	}
}

func TestDIDKeyResolverRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	encoded := encodeDIDKey(t, pub)

	resolver := NewDIDKeyResolver()

	doc, err := resolver.Resolve(encoded)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}

	if len(doc.VerificationMethod) != 1 {
		t.Fatalf("expected exactly one verification method, got %d", len(doc.VerificationMethod))
	}

	x, ok := doc.VerificationMethod[0].PublicKeyJWK["x"].(string)
	if !ok {
		t.Fatal("expected x coordinate in jwk")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(x)
	if err != nil {
		t.Fatalf("decode x: %v", err)
	}

	if string(decoded) != string(pub) {
		t.Fatal("expected round-tripped public key to match original")
	}
}
