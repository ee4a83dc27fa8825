// Package trustgate implements a coarse, casbin-backed trust-domain
// gate that runs ahead of the fine-grained protocol/grant
// authorization pipeline (C6/C7): can a caller from a given trust
// domain invoke an interface/method on a tenant at all, over a
// {subject, tenant, interface, method} request shape.
package trustgate

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/dwn-project/dwn-core/message"
)

const policyModel = `
[request_definition]
r = sub, tenant, iface, method

[policy_definition]
p = sub, tenant, iface, method, eft

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = (p.sub == "*" || p.sub == r.sub) && (p.tenant == "*" || p.tenant == r.tenant) && (p.iface == "*" || p.iface == r.iface) && (p.method == "*" || p.method == r.method)
`

// Gate wraps a casbin enforcer over the policy model above.
type Gate struct {
	enforcer *casbin.Enforcer
}

// New builds a Gate from a policy CSV file on disk, in the shape
// casbin's file adapter expects (sub, tenant, iface, method, eft).
func New(policyFilePath string) (*Gate, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("trustgate: parse policy model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, fileadapter.NewAdapter(policyFilePath))
	if err != nil {
		return nil, fmt.Errorf("trustgate: create enforcer: %w", err)
	}

	return &Gate{enforcer: enforcer}, nil
}

// NewDefault builds a Gate carrying the default policy: the tenant may
// invoke anything on itself; every other subject gets read-only
// access (Read, Query, Subscribe). Used whenever a tenant has not
// configured its own policy file.
func NewDefault(tenant string) (*Gate, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("trustgate: parse policy model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("trustgate: create enforcer: %w", err)
	}

	policies := [][]string{
		{tenant, tenant, "*", "*", "allow"},
		{"*", tenant, "*", string(message.MethodRead), "allow"},
		{"*", tenant, "*", string(message.MethodQuery), "allow"},
		{"*", tenant, "*", string(message.MethodSubscribe), "allow"},
	}

	if _, err := enforcer.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("trustgate: load default policy: %w", err)
	}

	return &Gate{enforcer: enforcer}, nil
}

// Allow reports whether subject may invoke method on interface against
// tenant, per the gate's loaded policy.
func (g *Gate) Allow(subject, tenant string, iface message.Interface, method message.Method) (bool, error) {
	ok, err := g.enforcer.Enforce(subject, tenant, string(iface), string(method))
	if err != nil {
		return false, fmt.Errorf("trustgate: enforce: %w", err)
	}

	return ok, nil
}
