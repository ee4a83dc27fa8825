package authn

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"
	"math/big"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/crypto/ed25519"

	"github.com/dwn-project/dwn-core/errs"
)

// verifySignature recovers the signing algorithm from the JWK's
// kty/crv and verifies signature over signingInput. Supports Ed25519,
// RSA, and ECDSA, with ECDSA signatures in the JOSE fixed-width r||s
// encoding rather than ASN.1.
func verifySignature(jwkMap map[string]any, signingInput, signature []byte) error {
	raw, err := json.Marshal(jwkMap)
	if err != nil {
		return errs.Wrap(errs.CodeAuthenticateSignatureInvalid, "failed to marshal verification method jwk", err)
	}

	key, err := jwk.ParseKey(raw)
	if err != nil {
		return errs.Wrap(errs.CodeAuthenticateSignatureInvalid, "failed to parse verification method jwk", err)
	}

	var rawKey any
	if err := key.Raw(&rawKey); err != nil {
		return errs.Wrap(errs.CodeAuthenticateSignatureInvalid, "failed to materialize public key from jwk", err)
	}

	switch pub := rawKey.(type) {
	case ed25519.PublicKey:
		return verifyEd25519(pub, signingInput, signature)
	case *ecdsa.PublicKey:
		return verifyECDSA(pub, signingInput, signature)
	case *rsa.PublicKey:
		return verifyRSA(pub, signingInput, signature)
	default:
		return errs.Newf(errs.CodeAuthenticateAlgorithmUnsupported, "unsupported verification key type %T", rawKey)
	}
}

func verifyEd25519(pub ed25519.PublicKey, message, signature []byte) error {
	if !ed25519.Verify(pub, message, signature) {
		return errs.New(errs.CodeAuthenticateSignatureInvalid, "ed25519 signature verification failed")
	}

	return nil
}

func verifyRSA(pub *rsa.PublicKey, message, signature []byte) error {
	digest := sha256.Sum256(message)

	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
		return errs.Wrap(errs.CodeAuthenticateSignatureInvalid, "rsa signature verification failed", err)
	}

	return nil
}

// verifyECDSA verifies a JOSE-style ECDSA signature: signature is the
// fixed-width concatenation of r and s, each padded to the curve's
// coordinate byte length (RFC 7518 §3.4), not ASN.1 DER.
func verifyECDSA(pub *ecdsa.PublicKey, message, signature []byte) error {
	byteLen := (pub.Curve.Params().BitSize + 7) / 8

	if len(signature) != 2*byteLen {
		return errs.Newf(errs.CodeAuthenticateSignatureInvalid, "ecdsa signature has unexpected length %d for curve size %d", len(signature), byteLen)
	}

	r := new(big.Int).SetBytes(signature[:byteLen])
	s := new(big.Int).SetBytes(signature[byteLen:])

	digest := sha256.Sum256(message)

	if !ecdsa.Verify(pub, digest[:], r, s) {
		return errs.New(errs.CodeAuthenticateSignatureInvalid, "ecdsa signature verification failed")
	}

	return nil
}
