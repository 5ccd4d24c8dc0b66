package hierarchy

// Action enumerates the operations gated by the capability matrix.
type Action int

const (
	ActionCreate Action = iota
	ActionView
	ActionResetPassword
	ActionDeposit
	ActionWithdraw

	actionCount
)

var actionNames = [actionCount]string{"create", "view", "resetPassword", "deposit", "withdraw"}

func (a Action) String() string {
	if a < 0 || a >= actionCount {
		return "unknown"
	}
	return actionNames[a]
}

// Mutating reports whether the action changes the target account.
// Mutating actions are confined to direct children; view is transitive.
func (a Action) Mutating() bool {
	return a != ActionView
}

// roleSet is a bitmask over the closed role set.
type roleSet uint8

func roles(rs ...Role) roleSet {
	var s roleSet
	for _, r := range rs {
		s |= 1 << uint(r)
	}
	return s
}

func (s roleSet) contains(r Role) bool {
	return s&(1<<uint(r)) != 0
}

// capabilityMatrix is the process-wide, read-only capability table,
// indexed by actor role ordinal then action ordinal. Each role may only
// create the role one rank below it; visibility spans every rank below.
var capabilityMatrix = [roleCount][actionCount]roleSet{
	RoleAdmin: {
		ActionCreate:        roles(RoleManager),
		ActionView:          roles(RoleManager, RoleCityManager, RoleSuperAgent, RoleAgent, RolePlayer),
		ActionResetPassword: roles(RoleAdmin, RoleManager, RoleCityManager, RoleSuperAgent, RoleAgent, RolePlayer),
		ActionDeposit:       roles(RoleManager, RoleCityManager, RoleSuperAgent, RoleAgent, RolePlayer),
		ActionWithdraw:      roles(RoleManager, RoleCityManager, RoleSuperAgent, RoleAgent, RolePlayer),
	},
	RoleManager: {
		ActionCreate:        roles(RoleCityManager),
		ActionView:          roles(RoleCityManager, RoleSuperAgent, RoleAgent, RolePlayer),
		ActionResetPassword: roles(RoleCityManager),
		ActionDeposit:       roles(RoleCityManager),
		ActionWithdraw:      roles(RoleCityManager),
	},
	RoleCityManager: {
		ActionCreate:        roles(RoleSuperAgent),
		ActionView:          roles(RoleSuperAgent, RoleAgent, RolePlayer),
		ActionResetPassword: roles(RoleSuperAgent),
		ActionDeposit:       roles(RoleSuperAgent),
		ActionWithdraw:      roles(RoleSuperAgent),
	},
	RoleSuperAgent: {
		ActionCreate:        roles(RoleAgent),
		ActionView:          roles(RoleAgent, RolePlayer),
		ActionResetPassword: roles(RoleAgent),
		ActionDeposit:       roles(RoleAgent),
		ActionWithdraw:      roles(RoleAgent),
	},
	RoleAgent: {
		ActionCreate:        roles(RolePlayer),
		ActionView:          roles(RolePlayer),
		ActionResetPassword: roles(RolePlayer),
		ActionDeposit:       roles(RolePlayer),
		ActionWithdraw:      roles(RolePlayer),
	},
	RolePlayer: {},
}

// CanTarget reports whether an actor role may perform action against a
// target role, ignoring ancestry. The structural checks live in Authorizer.
func CanTarget(actor Role, action Action, target Role) bool {
	if !actor.Valid() || !target.Valid() || action < 0 || action >= actionCount {
		return false
	}
	return capabilityMatrix[actor][action].contains(target)
}

// TargetRoles lists the roles an actor role may reach for an action, in
// privilege order.
func TargetRoles(actor Role, action Action) []Role {
	if !actor.Valid() || action < 0 || action >= actionCount {
		return nil
	}
	var out []Role
	for _, r := range Roles() {
		if capabilityMatrix[actor][action].contains(r) {
			out = append(out, r)
		}
	}
	return out
}
