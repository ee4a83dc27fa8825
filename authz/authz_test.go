package authz

import (
	"testing"

	"github.com/dwn-project/dwn-core/errs"
)

func TestAuthorizeCanonicalAcceptsTenantAuthor(t *testing.T) {
	if err := AuthorizeCanonical("did:example:alice", "did:example:alice"); err != nil {
		t.Fatalf("expected tenant-authored message to pass canonical authorization, got %v", err)
	}
}

func TestAuthorizeCanonicalDefersForNonTenantAuthor(t *testing.T) {
	err := AuthorizeCanonical("did:example:alice", "did:example:bob")
	if !errs.Is(err, errs.CodeAuthorizationGrantNotImplemented) {
		t.Fatalf("expected AuthorizationGrantNotImplemented, got %v", err)
	}
}
