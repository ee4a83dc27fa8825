// Package ancestor implements the C5 ancestor chain builder:
// reconstructing the root-first chain of record-writes by walking
// parentId through the store.
package ancestor

import (
	"context"

	"github.com/dwn-project/dwn-core/errs"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/order"
	"github.com/dwn-project/dwn-core/store"
)

// BuildChain produces the root-first ordered list of record-write
// messages leading to targetWrite (the record's latest-applicable
// state): if inbound is itself a Write, the walk starts from inbound's
// own parentId without including inbound in the result (the caller
// already has it); otherwise targetWrite is included as the chain's
// deepest entry (last in the returned root-first order).
func BuildChain(ctx context.Context, st store.Store, tenant string, inbound, targetWrite *message.Message) ([]*message.Message, error) {
	var chain []*message.Message

	current := targetWrite

	if inbound.IsWrite() {
		current = inbound
	} else {
		chain = append(chain, targetWrite)
	}

	seen := map[string]bool{}

	for current.Descriptor.ParentID != "" {
		parentID := current.Descriptor.ParentID

		if seen[parentID] {
			return nil, errs.Newf(errs.CodeAncestorCycle, "parentId %q revisited while walking ancestor chain", parentID)
		}

		seen[parentID] = true

		parent, err := fetchParent(ctx, st, tenant, current.Descriptor.Protocol, current.ContextID, parentID)
		if err != nil {
			return nil, err
		}

		chain = append(chain, parent)
		current = parent
	}

	reverse(chain)

	return chain, nil
}

func fetchParent(ctx context.Context, st store.Store, tenant, protocol, contextID, parentID string) (*message.Message, error) {
	latest := true

	results, err := st.Query(ctx, tenant, []store.Filter{{
		Interface:         message.InterfaceRecords,
		Method:            message.MethodWrite,
		Protocol:          protocol,
		ContextID:         contextID,
		RecordID:          parentID,
		IsLatestBaseState: &latest,
	}})
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return nil, errs.Newf(errs.CodeAncestorNotFound, "ancestor record %q not found", parentID)
	}

	newest, err := order.NewestOf(results)
	if err != nil {
		return nil, err
	}

	return newest, nil
}

func reverse(chain []*message.Message) {
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
}
