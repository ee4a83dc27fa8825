package message

import "github.com/dwn-project/dwn-core/errs"

// Message is the data model tying a descriptor to its authorization and,
// for Records messages, the top-level identity fields that must agree
// with the signed payload. It corresponds to a discriminated union over
// interface/method: every Message carries the same shape, and
// components interpret Descriptor's interface-specific fields as
// needed rather than type-switching on a Go type hierarchy.
type Message struct {
	Descriptor    Descriptor
	Authorization *Authorization

	// Records-interface fields (zero for every other interface).
	RecordID    string
	ContextID   string
	EncodedData []byte
}

// CID returns the content identifier of the message's descriptor.
func (m *Message) CID() (string, error) {
	return m.Descriptor.CID()
}

// Author returns the author DID of the message, extracted from the
// author signature's protected header.
func (m *Message) Author() (string, error) {
	return m.Authorization.AuthorDID()
}

// Owner returns the owner DID, if the message carries an owner
// signature (e.g. after owner delegation).
func (m *Message) Owner() (string, bool, error) {
	return m.Authorization.OwnerDID()
}

// IsWrite reports whether the message is a Records.Write.
func (m *Message) IsWrite() bool {
	return m.Descriptor.Interface == InterfaceRecords && m.Descriptor.Method == MethodWrite
}

// ValidateRecordIdentity checks the invariants that tie a
// Records message's top-level identity fields to its signed payload:
// `recordId` must equal the payload's `recordId`, and if the message
// carries a top-level `contextId`, it must equal the payload's.
func (m *Message) ValidateRecordIdentity(payload *SignaturePayload) error {
	if m.Descriptor.Interface != InterfaceRecords {
		return nil
	}

	if m.RecordID != payload.RecordID {
		return errs.Newf(errs.CodeRecordIdMismatch, "top-level recordId %q does not match payload recordId %q", m.RecordID, payload.RecordID)
	}

	if m.ContextID != "" && m.ContextID != payload.ContextID {
		return errs.Newf(errs.CodeContextIdMismatch, "top-level contextId %q does not match payload contextId %q", m.ContextID, payload.ContextID)
	}

	return nil
}

// ImmutableFields is the subset of a descriptor that must stay
// identical across every rewrite of the same recordId (dataCid,
// dataSize, datePublished, published, and messageTimestamp are excluded
// and may change freely across rewrites).
type ImmutableFields struct {
	Protocol     string
	ProtocolPath string
	Recipient    string
	Schema       string
	DataFormat   string
	ParentID     string
	DateCreated  string
}

// Immutable extracts the fields of a descriptor that must not change
// across rewrites of the same record.
func (d Descriptor) Immutable() ImmutableFields {
	return ImmutableFields{
		Protocol:     d.Protocol,
		ProtocolPath: d.ProtocolPath,
		Recipient:    d.Recipient,
		Schema:       d.Schema,
		DataFormat:   d.DataFormat,
		ParentID:     d.ParentID,
		DateCreated:  d.DateCreated,
	}
}

// ValidateRewrite checks that next is a legal rewrite of prior: their
// immutable fields agree.
func ValidateRewrite(prior, next Descriptor) error {
	priorFields, nextFields := prior.Immutable(), next.Immutable()

	if priorFields != nextFields {
		return errs.New(errs.CodeImmutableFieldChanged, "rewrite changed an immutable descriptor field")
	}

	return nil
}
