package replication

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/dreamware/copyset/internal/cluster"
)

// ScopeReplication requires copies to span at least Factor distinct domains
// at Scope.
type ScopeReplication struct {
	Scope  cluster.LocationScope `json:"scope" yaml:"scope"`
	Factor int                   `json:"factor" yaml:"factor"`
}

// SimpleReplication is the single (scope, factor) form of a property: Factor
// copies in Factor distinct domains at Scope.
type SimpleReplication struct {
	Scope  cluster.LocationScope
	Factor int
}

// Property is a normalized replication requirement. The zero value is empty
// and invalid; build one with NewProperty.
type Property struct {
	// sorted from the biggest scope down
	constraints []ScopeReplication
}

// NewProperty validates and normalizes a set of per-scope requirements.
//
// Factors must be positive, each scope may appear once, Root cannot be
// constrained, and a bigger scope may not ask for more domains than a smaller
// one (every new rack is also a new node, so {rack: 3, node: 2} is
// contradictory). Requirements implied by a bigger scope are dropped, e.g.
// {rack: 3, node: 3} normalizes to {rack: 3}.
func NewProperty(reqs ...ScopeReplication) (Property, error) {
	if len(reqs) == 0 {
		return Property{}, errors.New("replication property needs at least one scope")
	}
	sorted := slices.Clone(reqs)
	slices.SortFunc(sorted, func(a, b ScopeReplication) int { return int(b.Scope) - int(a.Scope) })

	out := make([]ScopeReplication, 0, len(sorted))
	for i, r := range sorted {
		if !r.Scope.Valid() || r.Scope == cluster.ScopeRoot {
			return Property{}, errors.Newf("scope %s cannot carry a replication factor", r.Scope)
		}
		if r.Factor <= 0 {
			return Property{}, errors.Newf("replication factor for scope %s must be positive, got %d", r.Scope, r.Factor)
		}
		if i > 0 && sorted[i-1].Scope == r.Scope {
			return Property{}, errors.Newf("scope %s listed twice", r.Scope)
		}
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.Factor > r.Factor {
				return Property{}, errors.Newf("scope %s requires %d domains but smaller scope %s only %d",
					prev.Scope, prev.Factor, r.Scope, r.Factor)
			}
			if prev.Factor == r.Factor {
				continue
			}
		}
		out = append(out, r)
	}
	return Property{constraints: out}, nil
}

// MustProperty is NewProperty for fixtures; it panics on error.
func MustProperty(reqs ...ScopeReplication) Property {
	p, err := NewProperty(reqs...)
	if err != nil {
		panic(err)
	}
	return p
}

// IsEmpty reports whether the property carries no requirement.
func (p Property) IsEmpty() bool {
	return len(p.constraints) == 0
}

// Constraints returns the requirements, biggest scope first.
func (p Property) Constraints() []ScopeReplication {
	return slices.Clone(p.constraints)
}

// ReplicationFactor is the number of copies a record needs.
func (p Property) ReplicationFactor() int {
	if p.IsEmpty() {
		return 0
	}
	return p.constraints[len(p.constraints)-1].Factor
}

// BiggestScope returns the coarsest constrained scope.
func (p Property) BiggestScope() cluster.LocationScope {
	if p.IsEmpty() {
		return cluster.ScopeNode
	}
	return p.constraints[0].Scope
}

// FactorAt returns the number of distinct domains required at scope, taking
// requirements of bigger scopes into account.
func (p Property) FactorAt(scope cluster.LocationScope) int {
	f := 0
	for _, c := range p.constraints {
		if c.Scope >= scope && c.Factor > f {
			f = c.Factor
		}
	}
	return f
}

// Simple returns the (scope, factor) form if the property has one, which is
// the case when every constrained scope asks for the same number of domains.
func (p Property) Simple() (SimpleReplication, bool) {
	if len(p.constraints) != 1 {
		return SimpleReplication{}, false
	}
	c := p.constraints[0]
	return SimpleReplication{Scope: c.Scope, Factor: c.Factor}, true
}

// String formats the property as {rack: 2, node: 3}.
func (p Property) String() string {
	parts := make([]string, len(p.constraints))
	for i, c := range p.constraints {
		parts[i] = c.Scope.String() + ": " + strconv.Itoa(c.Factor)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FromMap builds a property from a scope name to factor map, the form used in
// configuration files.
func FromMap(m map[string]int) (Property, error) {
	reqs := make([]ScopeReplication, 0, len(m))
	for name, factor := range m {
		scope, err := cluster.ParseScope(name)
		if err != nil {
			return Property{}, err
		}
		reqs = append(reqs, ScopeReplication{Scope: scope, Factor: factor})
	}
	return NewProperty(reqs...)
}
