// Package store names the external message store contract this module
// depends on but leaves out of scope to implement for production: a
// key-value + indexed query interface the authorization core consults
// but never mutates directly.
// The `sqlstore` subpackage provides a reference GORM/SQLite
// implementation for this module's own tests; production deployments
// supply their own.
package store

import (
	"context"

	"github.com/dwn-project/dwn-core/message"
)

// DateRange bounds a string-range query over one of the ISO-8601
// timestamp fields; either end may be empty to leave it unbounded.
type DateRange struct {
	From string
	To   string
}

// Filter is one AND-combined predicate of a Query call; Query itself
// is the disjunction (OR) of the filters passed to it.
type Filter struct {
	Interface         message.Interface
	Method            message.Method
	Protocol          string
	ProtocolPath      string
	ContextID         string
	RecordID          string
	ParentID          string
	Recipient         string
	Schema            string
	DateCreated       *DateRange
	MessageTimestamp  *DateRange
	IsLatestBaseState *bool
	IsInitialWrite    *bool
}

// Store is the persistent message store contract this module consumes.
// Every method is a potential suspension point; the core never writes
// directly; puts and deletes are the handler's responsibility once
// authorization succeeds.
type Store interface {
	// Put durably stores a message together with named index values
	// extracted from it (e.g. isLatestBaseState, recipient).
	Put(ctx context.Context, tenant string, msg *message.Message, indexes map[string]string) error

	// Get retrieves a single message by its descriptor CID. found is
	// false if no such message exists for tenant.
	Get(ctx context.Context, tenant string, messageCID string) (msg *message.Message, found bool, err error)

	// Query returns every message matching at least one of filters.
	Query(ctx context.Context, tenant string, filters []Filter) ([]*message.Message, error)

	// Delete removes a message by its descriptor CID.
	Delete(ctx context.Context, tenant string, messageCID string) error
}
