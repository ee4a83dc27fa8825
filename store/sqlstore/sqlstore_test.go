package sqlstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/dwn-project/dwn-core/identity"
	"github.com/dwn-project/dwn-core/message"
	"github.com/dwn-project/dwn-core/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.sqlite3")

	s, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}

	return s
}

const testAuthor = "did:example:alice"

// writeMessage builds a genuine initial Records.Write: its recordId is
// the real identity.RecordID for its author and descriptor, and its
// author signature carries a decodable (if not cryptographically
// verifiable) protected header, since sqlstore consults
// identity.IsInitialWrite but never authenticates.
func writeMessage(t *testing.T, schema string) *message.Message {
	t.Helper()

	d := message.Descriptor{
		Interface:        message.InterfaceRecords,
		Method:           message.MethodWrite,
		MessageTimestamp: "2024-01-01T00:00:00.000000Z",
		DateCreated:      "2024-01-01T00:00:00.000000Z",
		Schema:           schema,
	}

	recordID, err := identity.RecordID(testAuthor, d)
	if err != nil {
		t.Fatalf("identity.RecordID error: %v", err)
	}

	header, err := json.Marshal(message.ProtectedHeader{Alg: "EdDSA", Kid: testAuthor + "#key-1"})
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	protected := base64.RawURLEncoding.EncodeToString(header)

	return &message.Message{
		Descriptor: d,
		Authorization: &message.Authorization{
			AuthorSignature: &message.GeneralJws{
				Signatures: []message.SignatureEntry{{Protected: protected, Signature: "sig"}},
			},
		},
		RecordID: recordID,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	msg := writeMessage(t, "https://example.com/schemas/note")

	if err := s.Put(ctx, "did:example:alice", msg, nil); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	cid, err := msg.CID()
	if err != nil {
		t.Fatalf("CID error: %v", err)
	}

	got, found, err := s.Get(ctx, "did:example:alice", cid)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}

	if !found {
		t.Fatal("expected message to be found")
	}

	if got.RecordID != msg.RecordID {
		t.Fatalf("unexpected recordId: %q", got.RecordID)
	}

	if got.Descriptor.Schema != msg.Descriptor.Schema {
		t.Fatalf("unexpected schema: %q", got.Descriptor.Schema)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.Get(context.Background(), "did:example:alice", "bafymissing")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}

	if found {
		t.Fatal("expected message to be absent")
	}
}

func TestQueryFiltersByRecordID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := writeMessage(t, "https://example.com/schemas/note")
	second := writeMessage(t, "https://example.com/schemas/other")

	if err := s.Put(ctx, "did:example:alice", first, nil); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	if err := s.Put(ctx, "did:example:alice", second, nil); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	results, err := s.Query(ctx, "did:example:alice", []store.Filter{{RecordID: first.RecordID}})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}

	if len(results) != 1 || results[0].RecordID != first.RecordID {
		t.Fatalf("expected exactly the first record, got %d results", len(results))
	}
}

func TestQueryIsInitialWriteFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	msg := writeMessage(t, "https://example.com/schemas/note")

	if err := s.Put(ctx, "did:example:alice", msg, nil); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	isInitial := true

	results, err := s.Query(ctx, "did:example:alice", []store.Filter{{IsInitialWrite: &isInitial}})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected 1 initial write, got %d", len(results))
	}
}

func TestDeleteRemovesMessage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	msg := writeMessage(t, "https://example.com/schemas/note")

	if err := s.Put(ctx, "did:example:alice", msg, nil); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	cid, err := msg.CID()
	if err != nil {
		t.Fatalf("CID error: %v", err)
	}

	if err := s.Delete(ctx, "did:example:alice", cid); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	_, found, err := s.Get(ctx, "did:example:alice", cid)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}

	if found {
		t.Fatal("expected message to be gone after delete")
	}
}
