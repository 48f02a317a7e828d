package authsdk

import (
	"strings"
)

// Action is a CRUD capability a permission grant can confer.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// grantField maps each action to the grant field that confers it. Actions
// missing from this table are denied.
var grantField = map[Action]func(PermissionGrant) bool{
	ActionCreate: func(g PermissionGrant) bool { return g.CanCreate },
	ActionRead:   func(g PermissionGrant) bool { return g.CanRead },
	ActionUpdate: func(g PermissionGrant) bool { return g.CanUpdate },
	ActionDelete: func(g PermissionGrant) bool { return g.CanDelete },
}

// ParseAction converts a string such as "read" or "Read" into an Action.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	_, ok := grantField[a]
	return a, ok
}

// String implements fmt.Stringer.
func (a Action) String() string { return string(a) }

// PermissionEvaluator answers allow/deny questions from the session's role.
// Every missing or ambiguous input resolves to deny.
type PermissionEvaluator struct {
	session *SessionStore
}

// NewPermissionEvaluator creates a PermissionEvaluator.
func NewPermissionEvaluator(session *SessionStore) *PermissionEvaluator {
	return &PermissionEvaluator{session: session}
}

// HasPermission reports whether the current user may perform action on the
// named section. Section names compare case-insensitively and the first
// matching grant wins.
func (p *PermissionEvaluator) HasPermission(section string, action Action) bool {
	if p == nil || p.session == nil {
		return false
	}
	return Evaluate(p.session.User(), section, action)
}

// Allowed is HasPermission for an action given as a string. Unknown actions
// are denied.
func (p *PermissionEvaluator) Allowed(section, action string) bool {
	a, ok := ParseAction(action)
	if !ok {
		return false
	}
	return p.HasPermission(section, a)
}

// HasSection reports whether the current role carries a grant naming section,
// whatever that grant allows.
func (p *PermissionEvaluator) HasSection(section string) bool {
	if p == nil || p.session == nil {
		return false
	}
	user := p.session.User()
	if user == nil {
		return false
	}
	for _, grant := range user.Role.Permissions {
		if strings.EqualFold(grant.SectionName, section) {
			return true
		}
	}
	return false
}

// Evaluate is the pure decision used by PermissionEvaluator.
func Evaluate(user *UserProfile, section string, action Action) bool {
	if user == nil || user.Role.Permissions == nil || strings.TrimSpace(section) == "" {
		return false
	}

	field, ok := grantField[action]
	if !ok {
		return false
	}

	for _, grant := range user.Role.Permissions {
		if strings.EqualFold(grant.SectionName, section) {
			return field(grant)
		}
	}
	return false
}
