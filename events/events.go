// Package events implements the pub/sub fan-out that backs the
// Records.Subscribe method. This core does not
// implement transport, so handlers are expected to call Publish after a
// Records.Write or Records.Delete message clears authorization and is
// durably stored; the bus fans the event out to subscribers whose
// filters match.
package events

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dwn-project/dwn-core/logging"
)

var logger = logging.Logger("events")

// Kind distinguishes the record lifecycle transition an Event reports.
type Kind string

const (
	KindRecordWritten Kind = "RECORD_WRITTEN"
	KindRecordDeleted Kind = "RECORD_DELETED"
)

// Event is one record lifecycle notification.
type Event struct {
	ID           string
	Kind         Kind
	Tenant       string
	RecordID     string
	ContextID    string
	Protocol     string
	ProtocolPath string
	Schema       string
	OccurredAt   time.Time
}

// Validate reports whether the event carries the minimum required fields.
func (e *Event) Validate() error {
	if e.Tenant == "" {
		return errors.New("event: tenant is required")
	}

	if e.RecordID == "" {
		return errors.New("event: recordId is required")
	}

	if e.Kind == "" {
		return errors.New("event: kind is required")
	}

	return nil
}

// Filter narrows a subscription to a subset of events, mirroring the
// same fields a Records.Subscribe message descriptor's filter carries.
type Filter struct {
	Protocol     string
	ProtocolPath string
	Schema       string
	ContextID    string
	RecordID     string
}

// Matches reports whether event satisfies every non-empty field set on f.
func (f Filter) Matches(e *Event) bool {
	if f.Protocol != "" && f.Protocol != e.Protocol {
		return false
	}

	if f.ProtocolPath != "" && f.ProtocolPath != e.ProtocolPath {
		return false
	}

	if f.Schema != "" && f.Schema != e.Schema {
		return false
	}

	if f.ContextID != "" && f.ContextID != e.ContextID {
		return false
	}

	if f.RecordID != "" && f.RecordID != e.RecordID {
		return false
	}

	return true
}

// MatchesAny reports whether event satisfies at least one filter, or
// whether no filters were supplied at all (an unfiltered subscription).
func MatchesAny(e *Event, filters []Filter) bool {
	if len(filters) == 0 {
		return true
	}

	for _, f := range filters {
		if f.Matches(e) {
			return true
		}
	}

	return false
}

// Metrics holds atomic counters tracked by a Bus.
type Metrics struct {
	PublishedTotal   atomic.Uint64
	DeliveredTotal   atomic.Uint64
	DroppedTotal     atomic.Uint64
	SubscribersTotal atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to log or export.
type MetricsSnapshot struct {
	PublishedTotal   uint64
	DeliveredTotal   uint64
	DroppedTotal     uint64
	SubscribersTotal int64
}

func newEventID() string {
	return uuid.NewString()
}
