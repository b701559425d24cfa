package access

// Capability names something an actor may see or do.
type Capability string

const (
	CapViewDashboard     Capability = "view:dashboard"
	CapViewPatients      Capability = "view:patients"
	CapViewPrescriptions Capability = "view:prescriptions"
	CapViewSettings      Capability = "view:settings"
	CapPatientCreate     Capability = "patient:create"
	CapPatientExport     Capability = "patient:export"
	CapAssistantUse      Capability = "assistant:use"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	CapViewDashboard,
	CapViewPatients,
	CapViewPrescriptions,
	CapViewSettings,
	CapPatientCreate,
	CapPatientExport,
	CapAssistantUse,
}

// DefaultTable is the role to capability table used by navigation rendering
// and by action checks alike.
var DefaultTable = map[Role][]Capability{
	RoleSuperAdmin: {
		CapViewDashboard, CapViewPatients, CapViewSettings,
		CapPatientCreate, CapPatientExport, CapAssistantUse,
	},
	RoleHospitalAdmin: {
		CapViewDashboard, CapViewPatients, CapViewSettings,
		CapPatientCreate, CapPatientExport, CapAssistantUse,
	},
	RoleDoctor: {
		CapViewDashboard, CapViewPatients, CapViewPrescriptions, CapAssistantUse,
	},
	RoleNurse: {
		CapViewDashboard, CapViewPatients, CapAssistantUse,
	},
	RolePharmacist: {
		CapViewDashboard, CapViewPrescriptions, CapAssistantUse,
	},
	RoleReceptionist: {
		CapViewDashboard, CapViewPatients, CapPatientCreate, CapAssistantUse,
	},
}

// Policy is an immutable role to capability lookup. There are no per-actor
// overrides: the answer depends on the role alone.
type Policy struct {
	grants map[Role]map[Capability]struct{}
}

// NewPolicy builds a Policy from a table. The table is copied.
func NewPolicy(table map[Role][]Capability) *Policy {
	grants := make(map[Role]map[Capability]struct{}, len(table))
	for role, caps := range table {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		grants[role] = set
	}
	return &Policy{grants: grants}
}

// DefaultPolicy returns the policy built from DefaultTable.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultTable)
}

// Allows reports whether role holds capability c. Unknown roles hold nothing.
func (p *Policy) Allows(role Role, c Capability) bool {
	_, ok := p.grants[role][c]
	return ok
}

// CanRegisterPatient is the allow-list check for creating a patient record.
// It is independent of which menu entries the role can see.
func (p *Policy) CanRegisterPatient(role Role) bool {
	return p.Allows(role, CapPatientCreate)
}

// Capabilities returns the capabilities held by role in AllCapabilities order.
func (p *Policy) Capabilities(role Role) []Capability {
	caps := make([]Capability, 0, len(p.grants[role]))
	for _, c := range AllCapabilities {
		if p.Allows(role, c) {
			caps = append(caps, c)
		}
	}
	return caps
}

// RolesWith returns the roles holding c in AllRoles order.
func (p *Policy) RolesWith(c Capability) []Role {
	var roles []Role
	for _, r := range AllRoles {
		if p.Allows(r, c) {
			roles = append(roles, r)
		}
	}
	return roles
}
