// Package pipeline is the composition root of the authorization core:
// it wires C2-C9 into the single `handler → C2 → C3 → C4 (if
// author==tenant, done) → else C5+C6 (and/or C7) → decision` flow.
// Every collaborator is constructed once at startup, handed to New and
// held by the Pipeline, rather than reached for as a package-level
// singleton.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/dwn-project/dwn-core/ancestor"
	"github.com/dwn-project/dwn-core/authn"
	"github.com/dwn-project/dwn-core/authz"
	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/grant"
	"github.com/dwn-project/dwn-core/identity"
	"github.com/dwn-project/dwn-core/integrity"
	"github.com/dwn-project/dwn-core/logging"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/metrics"
	"github.com/dwn-project/dwn-core/protocol"
	"github.com/dwn-project/dwn-core/store"
)

var logger = logging.Logger("pipeline")

// Pipeline bundles the collaborators every authorization decision
// suspends on, constructed once and reused across requests.
type Pipeline struct {
	store     store.Store
	resolver  authn.DIDResolver
	validator integrity.SchemaValidator
	metrics   *metrics.Collector
}

// New builds a Pipeline from its collaborators. metricsCollector may be
// nil; step timings are simply not recorded in that case.
func New(st store.Store, resolver authn.DIDResolver, validator integrity.SchemaValidator, metricsCollector *metrics.Collector) *Pipeline {
	return &Pipeline{store: st, resolver: resolver, validator: validator, metrics: metricsCollector}
}

// Request is everything a single Authorize call needs beyond the
// message itself.
type Request struct {
	Tenant string
	Shape  integrity.PayloadShape

	// TargetWrite is the record's current latest-applicable write, used
	// by the ancestor chain builder when Message is not itself a
	// Write (Read/Query/Subscribe/Delete). Nil for Writes.
	TargetWrite *message.Message

	// Filters carries the caller's already-translated store filters for
	// a Messages.Query/Subscribe request, so a Messages-interface grant
	// can check each one's protocol against its own scope.
	Filters []store.Filter
}

// Authorize runs the full pipeline against msg and returns nil iff the
// message is authorized to act on tenant's records.
func (p *Pipeline) Authorize(ctx context.Context, req Request, msg *message.Message) error {
	result := "allowed"

	defer func() {
		if result != "allowed" {
			logger.Debug("authorization rejected", "interface", msg.Descriptor.Interface, "method", msg.Descriptor.Method, "code", result)
		}
	}()

	payload, err := p.step("integrity", func() (*message.SignaturePayload, error) {
		return integrity.Validate(msg.Descriptor, msg.Authorization, req.Shape, p.validator)
	})
	if err != nil {
		result = p.record(msg, err)

		return err
	}

	if msg.Descriptor.Interface == message.InterfaceRecords {
		if err := msg.ValidateRecordIdentity(payload); err != nil {
			result = p.record(msg, err)

			return err
		}
	}

	author, _, err := p.authenticate(msg)
	if err != nil {
		result = p.record(msg, err)

		return err
	}

	if err := authz.AuthorizeCanonical(req.Tenant, author); err == nil {
		if err := p.validateWriteIdentity(msg); err != nil {
			result = p.record(msg, err)

			return err
		}

		result = p.record(msg, nil)

		return nil
	}

	if err := p.authorizeDelegated(ctx, req, msg, payload); err != nil {
		result = p.record(msg, err)

		return err
	}

	result = p.record(msg, nil)

	return nil
}

// validateWriteIdentity enforces the recordId/contextId derivation
// invariant on an initial Records.Write reaching the canonical
// (tenant-authored) short-circuit, which would otherwise accept a
// Write without ever checking it.
func (p *Pipeline) validateWriteIdentity(msg *message.Message) error {
	if !msg.IsWrite() {
		return nil
	}

	isInitial, err := identity.IsInitialWrite(msg)
	if err != nil {
		return err
	}

	if !isInitial {
		return nil
	}

	return identity.ValidateInitialWrite(msg)
}

func (p *Pipeline) authenticate(msg *message.Message) (authorDID, ownerDID string, err error) {
	start := time.Now()

	authorDID, ownerDID, _, err = authn.Authenticate(msg.Authorization, p.resolver)

	if p.metrics != nil {
		p.metrics.ObserveStep("authenticate", start)
	}

	return authorDID, ownerDID, err
}

// authorizeDelegated runs the else-branch of the pipeline: C5+C6 for
// protocol-scoped Records operations, C7 directly for any message
// carrying a permissionsGrantId but no protocol.
func (p *Pipeline) authorizeDelegated(ctx context.Context, req Request, msg *message.Message, payload *message.SignaturePayload) error {
	if msg.Descriptor.Interface == message.InterfaceRecords && msg.Descriptor.Protocol != "" {
		return p.authorizeProtocol(ctx, req, msg, payload)
	}

	if payload.PermissionsGrantID != "" {
		return p.authorizeGenericGrant(ctx, req, msg, payload)
	}

	return errs.New(errs.CodeAuthorizationGrantNotImplemented, "message carries no protocol and no permissionsGrantId; only the tenant may author it")
}

func (p *Pipeline) authorizeProtocol(ctx context.Context, req Request, msg *message.Message, payload *message.SignaturePayload) error {
	start := time.Now()

	chain, err := ancestor.BuildChain(ctx, p.store, req.Tenant, msg, req.TargetWrite)
	if err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.ObserveStep("ancestor", start)
	}

	deps := protocol.Deps{Store: p.store, Resolver: p.resolver, Validator: p.validator}

	start = time.Now()
	err = protocol.Authorize(ctx, deps, req.Tenant, msg, payload, chain)

	if p.metrics != nil {
		p.metrics.ObserveStep("protocol", start)
	}

	return err
}

func (p *Pipeline) authorizeGenericGrant(ctx context.Context, req Request, msg *message.Message, payload *message.SignaturePayload) error {
	grantMsg, found, err := p.store.Get(ctx, req.Tenant, payload.PermissionsGrantID)
	if err != nil {
		return err
	}

	if !found {
		return errs.New(errs.CodeGrantNotFound, "permissions grant referenced by inbound message was not found")
	}

	g := grant.Parse(grantMsg)
	deps := grant.Deps{Store: p.store, Resolver: p.resolver, Validator: p.validator}

	switch msg.Descriptor.Method {
	case message.MethodQuery, message.MethodSubscribe:
		return grant.AuthorizeMessagesQuery(ctx, deps, g, req.Tenant, msg, req.Filters)
	default:
		return grant.AuthorizeMessagesRead(ctx, deps, g, req.Tenant, msg, req.TargetWrite)
	}
}

func (p *Pipeline) step(name string, fn func() (*message.SignaturePayload, error)) (*message.SignaturePayload, error) {
	start := time.Now()

	payload, err := fn()

	if p.metrics != nil {
		p.metrics.ObserveStep(name, start)
	}

	return payload, err
}

func (p *Pipeline) record(msg *message.Message, err error) string {
	code := ""

	var appErr *errs.Error
	if err != nil && errors.As(err, &appErr) {
		code = string(appErr.Code)
	}

	if p.metrics != nil {
		p.metrics.RecordOutcome(string(msg.Descriptor.Interface), string(msg.Descriptor.Method), code)
	}

	if code == "" {
		return "allowed"
	}

	return code
}
