package authn

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/multiformats/go-multibase"
	mc "github.com/multiformats/go-multicodec"

	"github.com/dwn-project/dwn-core/errs"
)

// DIDKeyResolver resolves did:key identifiers entirely locally: the
// public key is encoded in the identifier itself (multibase + multicodec
// prefix), so no network call is needed. Only Ed25519 keys
// (multicodec ed25519-pub) are supported, matching the signature
// algorithm this module's authn.crypto verification path exercises.
type DIDKeyResolver struct{}

// NewDIDKeyResolver constructs a DIDKeyResolver.
func NewDIDKeyResolver() *DIDKeyResolver {
	return &DIDKeyResolver{}
}

// Resolve decodes a did:key identifier into a synthetic single-method
// DID document whose verificationMethod is the key the identifier
// encodes, keyed as `<did>#<multibase-value>` per the did:key method
// spec's default fragment convention.
func (DIDKeyResolver) Resolve(did string) (*DIDDocument, error) {
	const prefix = "did:key:"

	if !strings.HasPrefix(did, prefix) {
		return nil, errs.Newf(errs.CodeAuthenticateSignerNotFound, "not a did:key identifier: %s", did)
	}

	multibaseValue := strings.TrimPrefix(did, prefix)

	_, data, err := multibase.Decode(multibaseValue)
	if err != nil {
		return nil, errs.Wrap(errs.CodeAuthenticateSignerNotFound, "failed to decode did:key multibase value", err)
	}

	codec, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, errs.New(errs.CodeAuthenticateSignerNotFound, "did:key value has no multicodec prefix")
	}

	if codec != uint64(mc.Ed25519Pub) {
		return nil, errs.Newf(errs.CodeAuthenticateAlgorithmUnsupported, "unsupported did:key multicodec %d", codec)
	}

	pubKeyBytes := data[n:]

	kid := did + "#" + multibaseValue

	return &DIDDocument{
		ID: did,
		VerificationMethod: []VerificationMethod{
			{
				ID:         kid,
				Type:       VerificationMethodTypeJsonWebKey2020,
				Controller: did,
				PublicKeyJWK: map[string]any{
					"kty": "OKP",
					"crv": "Ed25519",
					"x":   base64.RawURLEncoding.EncodeToString(pubKeyBytes),
				},
			},
		},
	}, nil
}
