package grant

import (
	"context"

	"github.com/dwn-project/dwn-core/authn"
	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/integrity"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/order"
	"github.com/dwn-project/dwn-core/store"
	"github.com/dwn-project/dwn-core/timestamp"
)

// Deps bundles the collaborators the grant authorizer suspends on:
// the message store, the DID resolver, and the payload schema
// validator. Constructed once at startup and passed explicitly rather
// than held as package-level singletons.
type Deps struct {
	Store     store.Store
	Resolver  authn.DIDResolver
	Validator integrity.SchemaValidator
}

// ValidateBase runs the grant-authorization steps common to both entry
// points: integrity/authenticity of the grant message itself,
// grantor/grantee/tenant agreement, the active time window, the
// interface/method scope match, and revocation.
func ValidateBase(ctx context.Context, deps Deps, g *Grant, expectedGrantor, expectedGrantee, tenant string, inboundInterface message.Interface, inboundMethod message.Method) error {
	if _, err := integrity.Validate(g.Message.Descriptor, g.Message.Authorization, integrity.GenericSignaturePayload, deps.Validator); err != nil {
		return err
	}

	if _, _, _, err := authn.Authenticate(g.Message.Authorization, deps.Resolver); err != nil {
		return err
	}

	if g.GrantedBy != expectedGrantor {
		return errs.Newf(errs.CodeGrantGrantorMismatch, "grant.grantedBy %q does not match expected grantor %q", g.GrantedBy, expectedGrantor)
	}

	if g.GrantedTo != expectedGrantee {
		return errs.Newf(errs.CodeGrantGranteeMismatch, "grant.grantedTo %q does not match expected grantee %q", g.GrantedTo, expectedGrantee)
	}

	if g.GrantedFor != tenant {
		return errs.Newf(errs.CodeGrantGrantorMismatch, "grant.grantedFor %q does not match tenant %q", g.GrantedFor, tenant)
	}

	now := timestamp.Now()

	if timestamp.Compare(now, g.Message.Descriptor.MessageTimestamp) < 0 {
		return errs.New(errs.CodeGrantNotYetActive, "grant is not yet active")
	}

	if timestamp.Compare(now, g.DateExpires) >= 0 {
		return errs.New(errs.CodeGrantExpired, "grant has expired")
	}

	if g.Scope.Interface != inboundInterface {
		return errs.Newf(errs.CodeGrantInterfaceMismatch, "grant scope interface %q does not match inbound interface %q", g.Scope.Interface, inboundInterface)
	}

	if g.Scope.Method != inboundMethod {
		return errs.Newf(errs.CodeGrantMethodMismatch, "grant scope method %q does not match inbound method %q", g.Scope.Method, inboundMethod)
	}

	revoked, err := isRevoked(ctx, deps.Store, tenant, g)
	if err != nil {
		return err
	}

	if revoked {
		return errs.New(errs.CodeGrantRevoked, "grant has been revoked")
	}

	return nil
}

// AuthorizeRecords is the Records-interface grant entry point
// (Read/Write): base validation, then scope-vs-message checks.
func AuthorizeRecords(ctx context.Context, deps Deps, g *Grant, tenant string, inbound *message.Message) error {
	author, err := inbound.Author()
	if err != nil {
		return err
	}

	if err := ValidateBase(ctx, deps, g, tenant, author, tenant, inbound.Descriptor.Interface, inbound.Descriptor.Method); err != nil {
		return err
	}

	if g.Scope.Protocol != inbound.Descriptor.Protocol {
		return errs.Newf(errs.CodeGrantScopeMismatch, "grant scope protocol %q does not match message protocol %q", g.Scope.Protocol, inbound.Descriptor.Protocol)
	}

	if g.Scope.ContextID != "" && g.Scope.ContextID != inbound.ContextID {
		return errs.Newf(errs.CodeGrantScopeMismatch, "grant scope contextId %q does not match message contextId %q", g.Scope.ContextID, inbound.ContextID)
	}

	if g.Scope.ProtocolPath != "" && g.Scope.ProtocolPath != inbound.Descriptor.ProtocolPath {
		return errs.Newf(errs.CodeGrantScopeMismatch, "grant scope protocolPath %q does not match message protocolPath %q", g.Scope.ProtocolPath, inbound.Descriptor.ProtocolPath)
	}

	if g.Scope.Schema != "" && g.Scope.Schema != inbound.Descriptor.Schema {
		return errs.Newf(errs.CodeGrantScopeMismatch, "grant scope schema %q does not match message schema %q", g.Scope.Schema, inbound.Descriptor.Schema)
	}

	return nil
}

// AuthorizeMessagesRead is the Messages-interface grant entry point for
// Read: base validation, then, if the grant's scope names a protocol,
// resolving the target message's effective protocol and comparing.
func AuthorizeMessagesRead(ctx context.Context, deps Deps, g *Grant, tenant string, inbound, target *message.Message) error {
	author, err := inbound.Author()
	if err != nil {
		return err
	}

	if err := ValidateBase(ctx, deps, g, tenant, author, tenant, inbound.Descriptor.Interface, inbound.Descriptor.Method); err != nil {
		return err
	}

	if g.Scope.Protocol == "" {
		return nil
	}

	targetProtocol, err := resolveTargetProtocol(ctx, deps, tenant, target)
	if err != nil {
		return err
	}

	if targetProtocol != g.Scope.Protocol {
		return errs.Newf(errs.CodeGrantScopeMismatch, "grant scope protocol %q does not match target message protocol %q", g.Scope.Protocol, targetProtocol)
	}

	return nil
}

// AuthorizeMessagesQuery is the Messages-interface grant entry point
// for Query/Subscribe: base validation, then, if the grant's scope
// names a protocol, every filter in the request must reference it.
func AuthorizeMessagesQuery(ctx context.Context, deps Deps, g *Grant, tenant string, inbound *message.Message, filters []store.Filter) error {
	author, err := inbound.Author()
	if err != nil {
		return err
	}

	if err := ValidateBase(ctx, deps, g, tenant, author, tenant, inbound.Descriptor.Interface, inbound.Descriptor.Method); err != nil {
		return err
	}

	if g.Scope.Protocol == "" {
		return nil
	}

	for _, f := range filters {
		if f.Protocol != g.Scope.Protocol {
			return errs.Newf(errs.CodeGrantScopeMismatch, "query filter protocol %q does not match grant scope protocol %q", f.Protocol, g.Scope.Protocol)
		}
	}

	return nil
}

// resolveTargetProtocol resolves a Messages.Read target's effective
// protocol: a Records message resolves to its newest
// Write's descriptor.protocol; if that protocol is the internal
// permissions protocol, resolution continues one hop further
// (Request → request.scope.protocol, Grant → grant.scope.protocol,
// Revoke → follow parent grant).
func resolveTargetProtocol(ctx context.Context, deps Deps, tenant string, target *message.Message) (string, error) {
	if target.Descriptor.Interface != message.InterfaceRecords {
		return "", errs.New(errs.CodeGrantScopeMismatch, "target message has no protocol to resolve")
	}

	newest, err := resolveNewestWrite(ctx, deps.Store, tenant, target)
	if err != nil {
		return "", err
	}

	if newest.Descriptor.Protocol != PermissionsProtocolURI {
		return newest.Descriptor.Protocol, nil
	}

	return resolvePermissionsProtocol(ctx, deps, tenant, newest)
}

func resolveNewestWrite(ctx context.Context, st store.Store, tenant string, target *message.Message) (*message.Message, error) {
	if target.IsWrite() {
		return target, nil
	}

	latest := true

	results, err := st.Query(ctx, tenant, []store.Filter{{
		Interface:         message.InterfaceRecords,
		Method:            message.MethodWrite,
		RecordID:          target.RecordID,
		IsLatestBaseState: &latest,
	}})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, errs.Newf(errs.CodeGrantScopeMismatch, "no write found for recordId %q to resolve target protocol", target.RecordID)
	}

	return order.NewestOf(results)
}

func resolvePermissionsProtocol(ctx context.Context, deps Deps, tenant string, permMsg *message.Message) (string, error) {
	switch permMsg.Descriptor.TypeName() {
	case PermissionsTypeRequest, PermissionsTypeGrant:
		if v, ok := permMsg.Descriptor.Scope["protocol"].(string); ok {
			return v, nil
		}

		return "", errs.New(errs.CodeGrantScopeMismatch, "permissions record has no scope.protocol to resolve")

	case PermissionsTypeRevoke:
		parentGrant, found, err := deps.Store.Get(ctx, tenant, permMsg.Descriptor.ParentID)
		if err != nil {
			return "", err
		}

		if !found {
			return "", errs.New(errs.CodeGrantNotFound, "revocation's parent grant not found")
		}

		if v, ok := parentGrant.Descriptor.Scope["protocol"].(string); ok {
			return v, nil
		}

		return "", errs.New(errs.CodeGrantScopeMismatch, "parent grant has no scope.protocol to resolve")

	default:
		return "", errs.Newf(errs.CodeGrantScopeMismatch, "unrecognized permissions record type %q", permMsg.Descriptor.TypeName())
	}
}

func isRevoked(ctx context.Context, st store.Store, tenant string, g *Grant) (bool, error) {
	grantCID, err := g.Message.CID()
	if err != nil {
		return false, err
	}

	results, err := st.Query(ctx, tenant, []store.Filter{{
		Interface: message.InterfacePermissions,
		Method:    message.MethodRevoke,
		ParentID:  grantCID,
	}})
	if err != nil {
		return false, err
	}

	return len(results) > 0, nil
}
