package authn

import (
	"encoding/base64"

	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/logging"
	"github.com/dwn-project/dwn-core/message"
)

var logger = logging.Logger("authn")

// VerifyEntry authenticates a single signature entry: resolves the
// signer's DID, selects the JsonWebKey2020 verification method matching
// the entry's kid, and verifies the signature cryptographically.
// Returns the signer's DID on success.
func VerifyEntry(jws *message.GeneralJws, entry message.SignatureEntry, resolver DIDResolver) (string, error) {
	header, err := message.DecodeProtectedHeader(entry)
	if err != nil {
		return "", err
	}

	did := message.DIDFromKid(header.Kid)

	doc, err := resolver.Resolve(did)
	if err != nil {
		logger.Warn("did resolution failed", "did", did, "error", err)

		return "", errs.Wrap(errs.CodeAuthenticateSignerNotFound, "failed to resolve signer did", err)
	}

	vm, ok := FindVerificationMethod(doc, header.Kid)
	if !ok {
		return "", errs.Newf(errs.CodeAuthenticateSignerNotFound, "no JsonWebKey2020 verification method %q found for did %q", header.Kid, did)
	}

	signature, err := base64.RawURLEncoding.DecodeString(entry.Signature)
	if err != nil {
		return "", errs.Wrap(errs.CodeAuthenticateSignatureInvalid, "failed to decode signature", err)
	}

	signingInput := []byte(message.SigningInput(jws, entry))

	if err := verifySignature(vm.PublicKeyJWK, signingInput, signature); err != nil {
		return "", err
	}

	return did, nil
}

// Authenticate verifies every signature entry of a message's
// authorization: the (required) author signature and, if present, the
// owner signature. Both entries are expected to have already passed
// the integrity validator's SignatureCountInvalid check (exactly one
// signature each), so only the first entry of each envelope is
// authenticated.
func Authenticate(auth *message.Authorization, resolver DIDResolver) (authorDID string, ownerDID string, hasOwner bool, err error) {
	if auth == nil || auth.AuthorSignature == nil || len(auth.AuthorSignature.Signatures) == 0 {
		return "", "", false, errs.New(errs.CodeAuthenticateJwsMissing, "message has no author signature to authenticate")
	}

	authorDID, err = VerifyEntry(auth.AuthorSignature, auth.AuthorSignature.Signatures[0], resolver)
	if err != nil {
		return "", "", false, err
	}

	if auth.OwnerSignature == nil || len(auth.OwnerSignature.Signatures) == 0 {
		return authorDID, "", false, nil
	}

	ownerDID, err = VerifyEntry(auth.OwnerSignature, auth.OwnerSignature.Signatures[0], resolver)
	if err != nil {
		return "", "", false, err
	}

	return authorDID, ownerDID, true, nil
}
