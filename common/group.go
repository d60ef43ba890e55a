package common

import "strings"

// Group is one of the five fixed RBAC roles; each carries a fixed set of
// default Scopes (see DefaultScopes).
type Group int

const (
	GroupAdmin Group = iota
	GroupClientRo
	GroupClientRw
	GroupMonitoring
	GroupPeering
)

func (g Group) String() string {
	switch g {
	case GroupAdmin:
		return "admin"
	case GroupClientRo:
		return "client_ro"
	case GroupClientRw:
		return "client_rw"
	case GroupMonitoring:
		return "monitoring"
	case GroupPeering:
		return "peering"
	}
	return "unknown"
}

func ParseGroup(s string) (Group, error) {
	switch strings.ToLower(s) {
	case "admin":
		return GroupAdmin, nil
	case "client_ro":
		return GroupClientRo, nil
	case "client_rw":
		return GroupClientRw, nil
	case "monitoring":
		return GroupMonitoring, nil
	case "peering":
		return GroupPeering, nil
	}
	return 0, &invalidGroupError{s}
}

type invalidGroupError struct{ got string }

func (e *invalidGroupError) Error() string {
	return `group must be one of "admin", "client_ro", "client_rw", "monitoring", "peering", got "` + e.got + `"`
}

// Resource is one side of a Scope.
type Resource int

const (
	ResourcePolicy Resource = iota
	ResourceSets
	ResourceStats
	ResourceClients
	ResourceAny
)

// Verb is the other side of a Scope.
type Verb int

const (
	VerbGet Verb = iota
	VerbList
	VerbDelete
	VerbCreate
	VerbUpdate
	VerbPeer
	VerbAny
)

// Scope is (Resource, Verb); Any on either side is a wildcard.
type Scope struct {
	Resource Resource
	Verb     Verb
}

// Matches reports whether the group-held scope s authorizes a request
// scope req: resource matches iff equal or either is Any, same rule for verb.
func (s Scope) Matches(req Scope) bool {
	resourceOK := s.Resource == ResourceAny || req.Resource == ResourceAny || s.Resource == req.Resource
	verbOK := s.Verb == VerbAny || req.Verb == VerbAny || s.Verb == req.Verb
	return resourceOK && verbOK
}

// DefaultScopes returns the fixed scope set for a Group, per the RBAC
// default-grant table.
func DefaultScopes(g Group) []Scope {
	switch g {
	case GroupAdmin:
		return []Scope{{ResourceAny, VerbAny}}
	case GroupClientRo:
		return []Scope{
			{ResourcePolicy, VerbGet}, {ResourcePolicy, VerbList},
			{ResourceSets, VerbGet}, {ResourceSets, VerbList},
		}
	case GroupClientRw:
		return []Scope{{ResourcePolicy, VerbAny}, {ResourceSets, VerbAny}}
	case GroupMonitoring:
		return []Scope{{ResourceStats, VerbList}, {ResourceStats, VerbGet}}
	case GroupPeering:
		return []Scope{{ResourcePolicy, VerbPeer}}
	}
	return nil
}
