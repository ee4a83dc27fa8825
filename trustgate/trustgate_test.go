package trustgate

import (
	"testing"

	"github.com/dwn-project/dwn-core/message"
)

func TestDefaultGateAllowsTenantEverything(t *testing.T) {
	gate, err := NewDefault("did:example:alice")
	if err != nil {
		t.Fatalf("NewDefault error: %v", err)
	}

	ok, err := gate.Allow("did:example:alice", "did:example:alice", message.InterfaceRecords, message.MethodWrite)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}

	if !ok {
		t.Fatal("expected tenant to be allowed to write its own records")
	}
}

func TestDefaultGateAllowsStrangerReadOnly(t *testing.T) {
	gate, err := NewDefault("did:example:alice")
	if err != nil {
		t.Fatalf("NewDefault error: %v", err)
	}

	ok, err := gate.Allow("did:example:bob", "did:example:alice", message.InterfaceRecords, message.MethodRead)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}

	if !ok {
		t.Fatal("expected a stranger to be allowed read access")
	}

	ok, err = gate.Allow("did:example:bob", "did:example:alice", message.InterfaceRecords, message.MethodWrite)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}

	if ok {
		t.Fatal("expected a stranger to be denied write access by default policy")
	}
}
