// Package order implements the C8 newest-message arbitrator: a total
// order over competing writes/configurations by timestamp with CID
// tiebreak.
package order

import (
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/timestamp"
)

// Compare returns -1, 0, or 1 as a is older than, the same message as,
// or newer than b. Comparison is by descriptor.messageTimestamp first,
// then by descriptor CID as a deterministic tiebreak; equal CIDs mean
// the two values denote the same message.
func Compare(a, b *message.Message) (int, error) {
	if c := timestamp.Compare(a.Descriptor.MessageTimestamp, b.Descriptor.MessageTimestamp); c != 0 {
		return c, nil
	}

	cidA, err := a.CID()
	if err != nil {
		return 0, err
	}

	cidB, err := b.CID()
	if err != nil {
		return 0, err
	}

	switch {
	case cidA < cidB:
		return -1, nil
	case cidA > cidB:
		return 1, nil
	default:
		return 0, nil
	}
}

// Newest returns whichever of a, b compares greater, per Compare.
func Newest(a, b *message.Message) (*message.Message, error) {
	c, err := Compare(a, b)
	if err != nil {
		return nil, err
	}

	if c >= 0 {
		return a, nil
	}

	return b, nil
}

// NewestOf reduces a non-empty slice of messages of the same kind to
// the single newest, per Compare. Returns nil if messages is empty.
func NewestOf(messages []*message.Message) (*message.Message, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	newest := messages[0]

	for _, m := range messages[1:] {
		next, err := Newest(newest, m)
		if err != nil {
			return nil, err
		}

		newest = next
	}

	return newest, nil
}
