package protocol

import (
	"context"
	"strings"

	"github.com/dwn-project/dwn-core/authn"
	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/grant"
	"github.com/dwn-project/dwn-core/identity"
	"github.com/dwn-project/dwn-core/integrity"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/order"
	"github.com/dwn-project/dwn-core/store"
	"github.com/dwn-project/dwn-core/timestamp"
)

// Deps bundles the protocol authorizer's collaborators, constructed
// once at startup and passed explicitly.
type Deps struct {
	Store     store.Store
	Resolver  authn.DIDResolver
	Validator integrity.SchemaValidator
}

func (d Deps) grantDeps() grant.Deps {
	return grant.Deps{Store: d.Store, Resolver: d.Resolver, Validator: d.Validator}
}

// Authorize runs the 8-step protocol authorization algorithm
// against inbound, a Records operation carrying a
// protocol. ancestorChain is the root-first ancestor list produced by
// the ancestor package (C5); for a non-Write inbound it is expected to
// already include the target record-write as its last entry, per
// ancestor.BuildChain's contract.
func Authorize(ctx context.Context, deps Deps, tenant string, inbound *message.Message, payload *message.SignaturePayload, ancestorChain []*message.Message) error {
	def, err := fetchDefinition(ctx, deps.Store, tenant, inbound.Descriptor.Protocol)
	if err != nil {
		return err
	}

	if err := verifyType(def, inbound); err != nil {
		return err
	}

	declaredPath := inbound.Descriptor.ProtocolPath
	if !inbound.IsWrite() && len(ancestorChain) > 0 {
		declaredPath = ancestorChain[len(ancestorChain)-1].Descriptor.ProtocolPath
	}

	if err := verifyProtocolPath(inbound, ancestorChain, declaredPath); err != nil {
		return err
	}

	ruleSet, err := def.ResolveRuleSet(declaredPath)
	if err != nil {
		return err
	}

	var invokedRole *RuleSet

	if payload.ProtocolRole != "" {
		invokedRole, err = verifyInvokedRole(ctx, deps.Store, def, tenant, inbound, payload.ProtocolRole)
		if err != nil {
			return err
		}
	}

	if err := verifyAllowedAction(ctx, deps, tenant, inbound, payload, ruleSet, invokedRole, ancestorChain); err != nil {
		return err
	}

	if err := verifyUniqueRoleRecipient(ctx, deps.Store, tenant, inbound, declaredPath, ruleSet); err != nil {
		return err
	}

	return verifyActionCondition(ctx, deps.Store, tenant, inbound)
}

func fetchDefinition(ctx context.Context, st store.Store, tenant, protocolURI string) (*Definition, error) {
	latest := true

	results, err := st.Query(ctx, tenant, []store.Filter{{
		Interface:         message.InterfaceProtocols,
		Method:            message.MethodConfigure,
		Protocol:          protocolURI,
		IsLatestBaseState: &latest,
	}})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, errs.Newf(errs.CodeProtocolDefinitionNotFound, "no protocol configuration found for %q", protocolURI)
	}

	newest, err := order.NewestOf(results)
	if err != nil {
		return nil, err
	}

	return ParseDefinition(newest.Descriptor.Definition)
}

func verifyType(def *Definition, inbound *message.Message) error {
	if !inbound.IsWrite() {
		return nil
	}

	typeName := inbound.Descriptor.TypeName()

	typeDef, ok := def.Types[typeName]
	if !ok {
		return errs.Newf(errs.CodeInvalidType, "type %q is not declared by the protocol definition", typeName)
	}

	if typeDef.Schema != "" && inbound.Descriptor.Schema != typeDef.Schema {
		return errs.Newf(errs.CodeInvalidSchema, "schema %q does not match declared schema %q for type %q", inbound.Descriptor.Schema, typeDef.Schema, typeName)
	}

	if len(typeDef.DataFormats) > 0 && !contains(typeDef.DataFormats, inbound.Descriptor.DataFormat) {
		return errs.Newf(errs.CodeIncorrectDataFormat, "dataFormat %q is not among the declared formats for type %q", inbound.Descriptor.DataFormat, typeName)
	}

	return nil
}

func verifyProtocolPath(inbound *message.Message, ancestorChain []*message.Message, declaredPath string) error {
	segments := make([]string, 0, len(ancestorChain)+1)

	for _, ancestorMsg := range ancestorChain {
		segments = append(segments, ancestorMsg.Descriptor.TypeName())
	}

	if inbound.IsWrite() {
		segments = append(segments, inbound.Descriptor.TypeName())
	}

	expected := strings.Join(segments, "/")

	if expected != declaredPath {
		return errs.Newf(errs.CodeIncorrectProtocolPath, "assembled protocol path %q does not match declared path %q", expected, declaredPath)
	}

	return nil
}

func verifyInvokedRole(ctx context.Context, st store.Store, def *Definition, tenant string, inbound *message.Message, rolePath string) (*RuleSet, error) {
	roleRuleSet, err := def.ResolveRuleSet(rolePath)
	if err != nil {
		return nil, errs.Wrap(errs.CodeNotARole, "invoked protocolRole path does not resolve to a rule set", err)
	}

	if !roleRuleSet.IsRole() {
		return nil, errs.Newf(errs.CodeNotARole, "path %q is not marked as a role", rolePath)
	}

	author, err := inbound.Author()
	if err != nil {
		return nil, err
	}

	latest := true

	filter := store.Filter{
		Interface:         message.InterfaceRecords,
		Method:            message.MethodWrite,
		ProtocolPath:      rolePath,
		Recipient:         author,
		IsLatestBaseState: &latest,
	}

	if roleRuleSet.ContextRole {
		filter.ContextID = inbound.ContextID
	}

	results, err := st.Query(ctx, tenant, []store.Filter{filter})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, errs.Newf(errs.CodeMissingRole, "no role record found at %q for recipient %q", rolePath, author)
	}

	return roleRuleSet, nil
}

// verifyAllowedAction runs the step 6 ordered decision table: the
// first matching row accepts, fall-through rejects with
// ActionNotAllowed.
func verifyAllowedAction(ctx context.Context, deps Deps, tenant string, inbound *message.Message, payload *message.SignaturePayload, ruleSet *RuleSet, invokedRole *RuleSet, ancestorChain []*message.Message) error {
	if _, ownerPresent, err := inbound.Owner(); err != nil {
		return err
	} else if ownerPresent {
		return nil
	}

	author, err := inbound.Author()
	if err != nil {
		return err
	}

	if author == tenant {
		return nil
	}

	if payload.PermissionsGrantID != "" {
		return authorizeByGrant(ctx, deps, tenant, inbound, payload)
	}

	action := actionFor(inbound.Descriptor.Method)

	if payload.ProtocolRole != "" && invokedRole != nil {
		for _, rule := range ruleSet.Actions {
			if rule.Can == action && rule.Role == payload.ProtocolRole {
				return nil
			}
		}
	}

	for _, rule := range ruleSet.Actions {
		if rule.Can != action {
			continue
		}

		switch rule.Who {
		case WhoAnyone:
			return nil

		case WhoAuthor, WhoRecipient:
			if rule.Of == "" {
				continue
			}

			ancestorMsg := findAncestorByPath(ancestorChain, rule.Of)
			if ancestorMsg == nil {
				continue
			}

			if rule.Who == WhoAuthor {
				ancestorAuthor, err := ancestorMsg.Author()
				if err != nil {
					return err
				}

				if author == ancestorAuthor {
					return nil
				}
			} else {
				if author == ancestorMsg.Descriptor.Recipient {
					return nil
				}
			}
		}
	}

	return errs.Newf(errs.CodeActionNotAllowed, "no rule in %q's rule set permits %q by %q", inbound.Descriptor.ProtocolPath, action, author)
}

func authorizeByGrant(ctx context.Context, deps Deps, tenant string, inbound *message.Message, payload *message.SignaturePayload) error {
	grantMsg, found, err := deps.Store.Get(ctx, tenant, payload.PermissionsGrantID)
	if err != nil {
		return err
	}

	if !found {
		return errs.Newf(errs.CodeGrantNotFound, "grant %q not found", payload.PermissionsGrantID)
	}

	g := grant.Parse(grantMsg)

	return grant.AuthorizeRecords(ctx, deps.grantDeps(), g, tenant, inbound)
}

func actionFor(method message.Method) Can {
	switch method {
	case message.MethodRead, message.MethodQuery, message.MethodSubscribe:
		return CanRead
	default:
		return CanWrite
	}
}

func findAncestorByPath(chain []*message.Message, path string) *message.Message {
	for _, ancestorMsg := range chain {
		if ancestorMsg.Descriptor.ProtocolPath == path {
			return ancestorMsg
		}
	}

	return nil
}

func verifyUniqueRoleRecipient(ctx context.Context, st store.Store, tenant string, inbound *message.Message, declaredPath string, ruleSet *RuleSet) error {
	if !inbound.IsWrite() || !ruleSet.IsRole() {
		return nil
	}

	latest := true

	filter := store.Filter{
		Interface:         message.InterfaceRecords,
		Method:            message.MethodWrite,
		ProtocolPath:      declaredPath,
		Recipient:         inbound.Descriptor.Recipient,
		IsLatestBaseState: &latest,
	}

	if ruleSet.ContextRole {
		filter.ContextID = inbound.ContextID
	}

	results, err := st.Query(ctx, tenant, []store.Filter{filter})
	if err != nil {
		return err
	}

	for _, existing := range results {
		if existing.RecordID == inbound.RecordID {
			continue
		}

		if ruleSet.ContextRole {
			return errs.Newf(errs.CodeDuplicateRoleRecipientCtx, "recipient %q already holds role %q in context %q", inbound.Descriptor.Recipient, declaredPath, inbound.ContextID)
		}

		return errs.Newf(errs.CodeDuplicateRoleRecipientGlobal, "recipient %q already holds role %q", inbound.Descriptor.Recipient, declaredPath)
	}

	return nil
}

func verifyActionCondition(ctx context.Context, st store.Store, tenant string, inbound *message.Message) error {
	if !inbound.IsWrite() {
		return nil
	}

	isInitial, err := identity.IsInitialWrite(inbound)
	if err != nil {
		return err
	}

	if isInitial {
		return identity.ValidateInitialWrite(inbound)
	}

	if timestamp.Compare(inbound.Descriptor.DateCreated, inbound.Descriptor.MessageTimestamp) > 0 {
		return errs.Newf(errs.CodeDateCreatedMismatch, "dateCreated %q is after messageTimestamp %q", inbound.Descriptor.DateCreated, inbound.Descriptor.MessageTimestamp)
	}

	initialTrue := true

	results, err := st.Query(ctx, tenant, []store.Filter{{
		Interface:      message.InterfaceRecords,
		Method:         message.MethodWrite,
		RecordID:       inbound.RecordID,
		IsInitialWrite: &initialTrue,
	}})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		return errs.Newf(errs.CodeInitialWriteAuthorMismatch, "no initial write found for recordId %q", inbound.RecordID)
	}

	if err := identity.ValidateRewriteAuthor(inbound, results[0]); err != nil {
		return err
	}

	return message.ValidateRewrite(results[0].Descriptor, inbound.Descriptor)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}

	return false
}
