// Package grant implements the C7 grant authorizer: base permission
// grant validation and scope verification for both the generic
// Messages interface and protocol-scoped Records interface.
package grant

import (
	"github.com/dwn-project/dwn-core/message"
)

// Permission-protocol reserved paths: a reserved protocol URI denoting
// the permissions protocol, with three paths for request, grant, and
// revocation. The exact URI is a free choice; this module picks a
// stable sentinel so its own grant-resolution logic
// (resolveTargetProtocol) has something concrete to recognize.
const (
	PermissionsProtocolURI  = "https://dwn-project.org/protocols/permissions"
	PermissionsTypeRequest  = "request"
	PermissionsTypeGrant    = "grant"
	PermissionsTypeRevoke   = "revocation"
)

// Scope is a permission grant's `{interface, method, protocol?,
// contextId?, protocolPath?, schema?}` capability descriptor.
type Scope struct {
	Interface    message.Interface
	Method       message.Method
	Protocol     string
	ContextID    string
	ProtocolPath string
	Schema       string
}

// Conditions is a permission grant's optional `conditions.publication`
// constraint.
type Conditions struct {
	Publication string
}

// Grant is the parsed form of a Permissions.Grant message.
type Grant struct {
	Message     *message.Message
	GrantedBy   string
	GrantedTo   string
	GrantedFor  string
	DateExpires string
	Scope       Scope
	Conditions  Conditions
}

// Parse extracts a Grant's typed fields from its descriptor's raw
// scope/conditions maps.
func Parse(msg *message.Message) *Grant {
	d := msg.Descriptor

	scope := Scope{}
	if v, ok := d.Scope["interface"].(string); ok {
		scope.Interface = message.Interface(v)
	}

	if v, ok := d.Scope["method"].(string); ok {
		scope.Method = message.Method(v)
	}

	if v, ok := d.Scope["protocol"].(string); ok {
		scope.Protocol = v
	}

	if v, ok := d.Scope["contextId"].(string); ok {
		scope.ContextID = v
	}

	if v, ok := d.Scope["protocolPath"].(string); ok {
		scope.ProtocolPath = v
	}

	if v, ok := d.Scope["schema"].(string); ok {
		scope.Schema = v
	}

	conditions := Conditions{}
	if v, ok := d.Conditions["publication"].(string); ok {
		conditions.Publication = v
	}

	return &Grant{
		Message:     msg,
		GrantedBy:   d.GrantedBy,
		GrantedTo:   d.GrantedTo,
		GrantedFor:  d.GrantedFor,
		DateExpires: d.DateExpires,
		Scope:       scope,
		Conditions:  conditions,
	}
}
