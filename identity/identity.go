// Package identity implements the C9 record-identity service:
// deterministic recordId/contextId derivation and initial-write
// detection.
package identity

import (
	"github.com/dwn-project/dwn-core/cid"
	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/message"
)

// RecordID computes the canonical ID of an initial write:
// CID({descriptor..., author}). Every subsequent write for the same
// recordId is validated against this value (see IsInitialWrite).
func RecordID(author string, d message.Descriptor) (string, error) {
	m := d.ToMap()
	m["author"] = author

	c, err := cid.ComputeCID(m)
	if err != nil {
		return "", errs.Wrap(errs.CodeCidParseError, "failed to compute recordId", err)
	}

	return c, nil
}

// IsProtocolContextRoot reports whether a descriptor describes the root
// write of a protocol context: it carries a protocol but no parentId.
func IsProtocolContextRoot(d message.Descriptor) bool {
	return d.Protocol != "" && d.ParentID == ""
}

// IsInitialWrite reports whether msg is the initial write for its
// recordId: recordId(author(msg), descriptor(msg)) == msg.RecordID.
func IsInitialWrite(msg *message.Message) (bool, error) {
	author, err := msg.Author()
	if err != nil {
		return false, err
	}

	computed, err := RecordID(author, msg.Descriptor)
	if err != nil {
		return false, err
	}

	return cid.Equal(computed, msg.RecordID), nil
}

// ValidateInitialWrite enforces a record's initial-write invariants:
// recordId must equal the canonical (descriptor, author) CID, and if
// the write is also a protocol-context root, contextId must equal
// recordId.
func ValidateInitialWrite(msg *message.Message) error {
	author, err := msg.Author()
	if err != nil {
		return err
	}

	computed, err := RecordID(author, msg.Descriptor)
	if err != nil {
		return err
	}

	if !cid.Equal(computed, msg.RecordID) {
		return errs.Newf(errs.CodeInitialWriteRecordId, "initial write recordId %q does not equal CID(descriptor, author) %q", msg.RecordID, computed)
	}

	if IsProtocolContextRoot(msg.Descriptor) && !cid.Equal(msg.ContextID, msg.RecordID) {
		return errs.Newf(errs.CodeInitialWriteContextId, "protocol-context root contextId %q must equal recordId %q", msg.ContextID, msg.RecordID)
	}

	return nil
}

// ValidateRewriteAuthor enforces that a non-initial write's author
// equals the initial write's author.
func ValidateRewriteAuthor(rewrite, initial *message.Message) error {
	rewriteAuthor, err := rewrite.Author()
	if err != nil {
		return err
	}

	initialAuthor, err := initial.Author()
	if err != nil {
		return err
	}

	if rewriteAuthor != initialAuthor {
		return errs.Newf(errs.CodeInitialWriteAuthorMismatch, "rewrite author %q does not match initial write author %q", rewriteAuthor, initialAuthor)
	}

	return nil
}
