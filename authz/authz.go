// Package authz implements the C4 canonical authorizer: the owner-only
// check that short-circuits the rest of the pipeline whenever a
// tenant is acting on its own records.
package authz

import "github.com/dwn-project/dwn-core/errs"

// AuthorizeCanonical succeeds iff author equals tenant. Any other
// author requires delegated authorization: protocol-based (C6),
// grant-based (C7), or both, which this package does not perform;
// callers distinguish that case by checking for
// errs.CodeAuthorizationGrantNotImplemented and falling through to the
// rest of the pipeline (see the `pipeline` package).
func AuthorizeCanonical(tenant, author string) error {
	if author == tenant {
		return nil
	}

	return errs.New(errs.CodeAuthorizationGrantNotImplemented, "author is not the tenant; delegated authorization required")
}
