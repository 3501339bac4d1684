package cluster

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// LocationScope is a level of the failure-domain hierarchy. Scopes are ordered
// from the finest (Node) to the coarsest (Root).
type LocationScope int

const (
	ScopeNode LocationScope = iota
	ScopeRack
	ScopeRow
	ScopeCluster
	ScopeDataCenter
	ScopeRegion
	ScopeRoot
)

var scopeNames = [...]string{
	ScopeNode:       "node",
	ScopeRack:       "rack",
	ScopeRow:        "row",
	ScopeCluster:    "cluster",
	ScopeDataCenter: "datacenter",
	ScopeRegion:     "region",
	ScopeRoot:       "root",
}

// Valid reports whether the scope is one of the known levels.
func (s LocationScope) Valid() bool {
	return s >= ScopeNode && s <= ScopeRoot
}

// String returns the scope name as written in settings files.
func (s LocationScope) String() string {
	if !s.Valid() {
		return "scope(" + strconv.Itoa(int(s)) + ")"
	}
	return scopeNames[s]
}

// ParseScope parses a scope name, case-insensitively.
func ParseScope(name string) (LocationScope, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for scope, n := range scopeNames {
		if n == name {
			return LocationScope(scope), nil
		}
	}
	return 0, errors.Newf("unknown location scope %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s LocationScope) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, errors.Newf("invalid location scope %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so scopes can be written
// by name in YAML and JSON.
func (s *LocationScope) UnmarshalText(text []byte) error {
	scope, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = scope
	return nil
}

// numLocationLabels is the number of labels in a location string:
// region.datacenter.cluster.row.rack
const numLocationLabels = 5

// UnknownDomain is the domain shared by nodes whose location does not reach
// the requested scope.
const UnknownDomain = "?"

// NodeLocation is the hierarchical failure-domain path of a node.
type NodeLocation struct {
	labels [numLocationLabels]string
	depth  int
}

// ParseLocation parses "region.datacenter.cluster.row.rack". Trailing labels
// may be left out or empty, but a non-empty label may not follow an empty one.
func ParseLocation(s string) (NodeLocation, error) {
	var loc NodeLocation
	if s == "" {
		return loc, nil
	}
	parts := strings.Split(s, ".")
	if len(parts) > numLocationLabels {
		return loc, errors.Newf("location %q has %d labels, at most %d allowed", s, len(parts), numLocationLabels)
	}
	for i, p := range parts {
		if p == "" {
			for _, rest := range parts[i+1:] {
				if rest != "" {
					return loc, errors.Newf("location %q has a gap at label %d", s, i)
				}
			}
			break
		}
		loc.labels[i] = p
		loc.depth = i + 1
	}
	return loc, nil
}

// MustParseLocation is ParseLocation for fixtures; it panics on error.
func MustParseLocation(s string) NodeLocation {
	loc, err := ParseLocation(s)
	if err != nil {
		panic(err)
	}
	return loc
}

// IsEmpty reports whether no label is set.
func (l NodeLocation) IsEmpty() bool {
	return l.depth == 0
}

// labelIndex maps a scope to the index of its label; Node and Root have none.
func labelIndex(scope LocationScope) int {
	switch scope {
	case ScopeRegion:
		return 0
	case ScopeDataCenter:
		return 1
	case ScopeCluster:
		return 2
	case ScopeRow:
		return 3
	case ScopeRack:
		return 4
	default:
		return -1
	}
}

// DomainName returns the path identifying the node's domain at scope, or
// UnknownDomain if the location is not specified down to that scope. The Root
// scope has a single domain named "".
func (l NodeLocation) DomainName(scope LocationScope) string {
	if scope == ScopeRoot {
		return ""
	}
	idx := labelIndex(scope)
	if idx < 0 || idx >= l.depth {
		return UnknownDomain
	}
	return strings.Join(l.labels[:idx+1], ".")
}

// String returns the dotted label form.
func (l NodeLocation) String() string {
	return strings.Join(l.labels[:l.depth], ".")
}

// MarshalText implements encoding.TextMarshaler.
func (l NodeLocation) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *NodeLocation) UnmarshalText(text []byte) error {
	loc, err := ParseLocation(string(text))
	if err != nil {
		return err
	}
	*l = loc
	return nil
}
