package identity

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/dwn-project/dwn-core/message"
)

func signedMessage(t *testing.T, author string, d message.Descriptor, recordID, contextID string) *message.Message {
	t.Helper()

	header, err := json.Marshal(message.ProtectedHeader{Alg: "EdDSA", Kid: author + "#key-1"})
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	payload, err := json.Marshal(message.SignaturePayload{DescriptorCID: "bafyplaceholder", RecordID: recordID, ContextID: contextID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	return &message.Message{
		Descriptor: d,
		Authorization: &message.Authorization{
			AuthorSignature: &message.GeneralJws{
				Payload: base64.RawURLEncoding.EncodeToString(payload),
				Signatures: []message.SignatureEntry{{
					Protected: base64.RawURLEncoding.EncodeToString(header),
					Signature: "c2ln",
				}},
			},
		},
		RecordID:  recordID,
		ContextID: contextID,
	}
}

func TestRecordIDDeterministic(t *testing.T) {
	d := message.Descriptor{Interface: message.InterfaceRecords, Method: message.MethodWrite, Schema: "s1", MessageTimestamp: "t"}

	a, err := RecordID("did:example:alice", d)
	if err != nil {
		t.Fatalf("RecordID error: %v", err)
	}

	b, err := RecordID("did:example:alice", d)
	if err != nil {
		t.Fatalf("RecordID error: %v", err)
	}

	if a != b {
		t.Fatalf("expected deterministic recordId, got %s != %s", a, b)
	}

	c, err := RecordID("did:example:bob", d)
	if err != nil {
		t.Fatalf("RecordID error: %v", err)
	}

	if a == c {
		t.Fatal("expected different author to produce different recordId")
	}
}

func TestIsInitialWriteTrueForMatchingRecordID(t *testing.T) {
	d := message.Descriptor{Interface: message.InterfaceRecords, Method: message.MethodWrite, Schema: "s1", MessageTimestamp: "t"}

	recordID, err := RecordID("did:example:alice", d)
	if err != nil {
		t.Fatalf("RecordID error: %v", err)
	}

	msg := signedMessage(t, "did:example:alice", d, recordID, recordID)

	ok, err := IsInitialWrite(msg)
	if err != nil {
		t.Fatalf("IsInitialWrite error: %v", err)
	}

	if !ok {
		t.Fatal("expected message to be detected as initial write")
	}

	if err := ValidateInitialWrite(msg); err != nil {
		t.Fatalf("ValidateInitialWrite error: %v", err)
	}
}

func TestIsInitialWriteFalseForRewrite(t *testing.T) {
	d := message.Descriptor{Interface: message.InterfaceRecords, Method: message.MethodWrite, Schema: "s1", MessageTimestamp: "t"}

	msg := signedMessage(t, "did:example:alice", d, "bafy-not-the-computed-cid", "")

	ok, err := IsInitialWrite(msg)
	if err != nil {
		t.Fatalf("IsInitialWrite error: %v", err)
	}

	if ok {
		t.Fatal("expected message with unrelated recordId to not be an initial write")
	}
}

func TestValidateRewriteAuthorMismatch(t *testing.T) {
	d := message.Descriptor{Interface: message.InterfaceRecords, Method: message.MethodWrite}

	initial := signedMessage(t, "did:example:alice", d, "bafyRoot", "")
	rewrite := signedMessage(t, "did:example:bob", d, "bafyRoot", "")

	if err := ValidateRewriteAuthor(rewrite, initial); err == nil {
		t.Fatal("expected author mismatch error")
	}
}
