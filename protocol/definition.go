// Package protocol implements the C6 protocol authorizer: type, path,
// role, action, uniqueness and condition checks against a tenant's
// protocol definition. The largest single component of this module.
package protocol

import (
	"encoding/json"
	"strings"

	"github.com/dwn-project/dwn-core/errs"
)

// Who names the set of inbound-relative actors an $actions rule may
// grant to.
type Who string

const (
	WhoAnyone    Who = "anyone"
	WhoAuthor    Who = "author"
	WhoRecipient Who = "recipient"
)

// Can names the action kind an $actions rule permits.
type Can string

const (
	CanRead  Can = "read"
	CanWrite Can = "write"
)

// Action is one entry of a rule set's `$actions` list.
type Action struct {
	Who  Who    `json:"who,omitempty"`
	Role string `json:"role,omitempty"`
	Of   string `json:"of,omitempty"`
	Can  Can    `json:"can"`
}

// RuleSet is a single node of a protocol definition's structure tree.
// Reserved keys ($actions, $globalRole, $contextRole) are parsed into
// the named fields; every other key is a nested child type name whose
// value is itself a RuleSet.
type RuleSet struct {
	Actions     []Action
	GlobalRole  bool
	ContextRole bool
	Children    map[string]*RuleSet
}

// UnmarshalJSON splits a structure-tree node's JSON object into its
// reserved `$`-prefixed keys and its child type names.
func (r *RuleSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Children = make(map[string]*RuleSet)

	for key, value := range raw {
		switch key {
		case "$actions":
			if err := json.Unmarshal(value, &r.Actions); err != nil {
				return err
			}
		case "$globalRole":
			if err := json.Unmarshal(value, &r.GlobalRole); err != nil {
				return err
			}
		case "$contextRole":
			if err := json.Unmarshal(value, &r.ContextRole); err != nil {
				return err
			}
		default:
			child := &RuleSet{}
			if err := json.Unmarshal(value, child); err != nil {
				return err
			}

			r.Children[key] = child
		}
	}

	return nil
}

// IsRole reports whether the rule set marks its path as a role-granting
// record type, global or context-scoped.
func (r *RuleSet) IsRole() bool {
	return r.GlobalRole || r.ContextRole
}

// TypeDef is a protocol definition's per-type declaration: the schema
// and data formats permitted for records of that type.
type TypeDef struct {
	Schema      string   `json:"schema,omitempty"`
	DataFormats []string `json:"dataFormats,omitempty"`
}

// Definition is a tenant's protocol definition: a `types` declaration
// table plus a `structure` rule-set tree, keyed by protocol URI.
type Definition struct {
	Protocol  string              `json:"protocol"`
	Types     map[string]TypeDef  `json:"types"`
	Structure map[string]*RuleSet `json:"structure"`
}

// ParseDefinition decodes a ProtocolsConfigure descriptor's raw
// `definition` map (as carried by message.Descriptor.Definition) into a
// typed Definition. The definition stays an opaque map at the data
// model layer. Only this, its primary consumer, needs its structure.
func ParseDefinition(raw map[string]any) (*Definition, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, errs.Wrap(errs.CodeProtocolDefinitionNotFound, "failed to encode protocol definition", err)
	}

	var def Definition

	if err := json.Unmarshal(encoded, &def); err != nil {
		return nil, errs.Wrap(errs.CodeProtocolDefinitionNotFound, "failed to parse protocol definition", err)
	}

	return &def, nil
}

// ResolveRuleSet descends the definition's structure tree along path
// (a slash-separated protocol path, e.g. "thread/chat"), returning the
// rule set at that path.
func (d *Definition) ResolveRuleSet(path string) (*RuleSet, error) {
	segments := strings.Split(path, "/")

	rules, ok := d.Structure[segments[0]]
	if !ok {
		return nil, errs.Newf(errs.CodeMissingRuleSet, "no rule set for type %q", segments[0])
	}

	for _, segment := range segments[1:] {
		next, ok := rules.Children[segment]
		if !ok {
			return nil, errs.Newf(errs.CodeMissingRuleSet, "no rule set for type %q at path %q", segment, path)
		}

		rules = next
	}

	return rules, nil
}
