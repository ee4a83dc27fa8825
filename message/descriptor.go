package message

import (
	"strings"

	"github.com/dwn-project/dwn-core/cid"
	"github.com/dwn-project/dwn-core/errs"
)

// Interface names the four message interfaces a descriptor may target.
type Interface string

const (
	InterfaceRecords     Interface = "Records"
	InterfaceProtocols   Interface = "Protocols"
	InterfacePermissions Interface = "Permissions"
	InterfaceMessages    Interface = "Messages"
)

// Method names the operation a descriptor invokes on its Interface.
type Method string

const (
	MethodWrite     Method = "Write"
	MethodRead      Method = "Read"
	MethodQuery     Method = "Query"
	MethodSubscribe Method = "Subscribe"
	MethodDelete    Method = "Delete"
	MethodConfigure Method = "Configure"
	MethodGrant     Method = "Grant"
	MethodRequest   Method = "Request"
	MethodRevoke    Method = "Revoke"
)

// Descriptor is the immutable operation payload of a message. Only
// `Interface`, `Method` and `MessageTimestamp` are universal; every other
// field is populated only for the interface/method combinations that
// define it, and is omitted from the canonical encoding when zero-valued.
//
// `Definition`, `Filter`, `Scope` and `Conditions` stay as raw decoded
// JSON (`map[string]any`) rather than typed structs: their shape is
// owned by the consuming component (protocol, store, grant), not by the
// data model, so this package never needs to know their schema to
// compute a descriptor CID or carry a descriptor through the pipeline.
type Descriptor struct {
	Interface        Interface
	Method           Method
	MessageTimestamp string

	// Records.Write
	Protocol      string
	ProtocolPath  string
	Schema        string
	DataFormat    string
	DataCID       string
	DataSize      uint64
	ParentID      string
	Recipient     string
	DateCreated   string
	DatePublished string
	Published     *bool

	// Messages.Query / Messages.Subscribe / Records.Query / Records.Subscribe
	Filter map[string]any

	// Protocols.Configure
	Definition map[string]any

	// Permissions.Grant / Permissions.Request / Permissions.Revoke
	GrantedBy   string
	GrantedTo   string
	GrantedFor  string
	DateExpires string
	Scope       map[string]any
	Conditions  map[string]any
	Delegated   bool
}

// TypeName returns the last segment of ProtocolPath, the record's type
// name within its protocol's tree.
func (d Descriptor) TypeName() string {
	if d.ProtocolPath == "" {
		return ""
	}

	segments := strings.Split(d.ProtocolPath, "/")

	return segments[len(segments)-1]
}

// ToMap renders the descriptor as the map used for canonical CID
// computation: universal fields always present, optional fields present
// only when non-zero, mirroring the "no undefined fields" requirement
// of the CID service.
func (d Descriptor) ToMap() map[string]any {
	m := map[string]any{
		"interface":        string(d.Interface),
		"method":           string(d.Method),
		"messageTimestamp": d.MessageTimestamp,
	}

	setIfNotEmpty(m, "protocol", d.Protocol)
	setIfNotEmpty(m, "protocolPath", d.ProtocolPath)
	setIfNotEmpty(m, "schema", d.Schema)
	setIfNotEmpty(m, "dataFormat", d.DataFormat)
	setIfNotEmpty(m, "dataCid", d.DataCID)

	if d.DataSize != 0 {
		m["dataSize"] = d.DataSize
	}

	setIfNotEmpty(m, "parentId", d.ParentID)
	setIfNotEmpty(m, "recipient", d.Recipient)
	setIfNotEmpty(m, "dateCreated", d.DateCreated)
	setIfNotEmpty(m, "datePublished", d.DatePublished)

	if d.Published != nil {
		m["published"] = *d.Published
	}

	if d.Filter != nil {
		m["filter"] = d.Filter
	}

	if d.Definition != nil {
		m["definition"] = d.Definition
	}

	setIfNotEmpty(m, "grantedBy", d.GrantedBy)
	setIfNotEmpty(m, "grantedTo", d.GrantedTo)
	setIfNotEmpty(m, "grantedFor", d.GrantedFor)
	setIfNotEmpty(m, "dateExpires", d.DateExpires)

	if d.Scope != nil {
		m["scope"] = d.Scope
	}

	if d.Conditions != nil {
		m["conditions"] = d.Conditions
	}

	if d.Delegated {
		m["delegated"] = d.Delegated
	}

	return m
}

func setIfNotEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}

// CID returns the canonical content identifier of the descriptor.
func (d Descriptor) CID() (string, error) {
	c, err := cid.ComputeCID(d.ToMap())
	if err != nil {
		return "", errs.Wrap(errs.CodeCidParseError, "failed to compute descriptor cid", err)
	}

	return c, nil
}
