package access

import "strings"

// Role is the staff role carried by every actor.
type Role string

const (
	RoleSuperAdmin    Role = "SUPER_ADMIN"
	RoleHospitalAdmin Role = "HOSPITAL_ADMIN"
	RoleDoctor        Role = "DOCTOR"
	RoleNurse         Role = "NURSE"
	RolePharmacist    Role = "PHARMACIST"
	RoleReceptionist  Role = "RECEPTIONIST"
)

// AllRoles lists the known roles in display order.
var AllRoles = []Role{
	RoleSuperAdmin,
	RoleHospitalAdmin,
	RoleDoctor,
	RoleNurse,
	RolePharmacist,
	RoleReceptionist,
}

// ParseRole normalizes s and reports whether it names a known role. The
// normalized value is returned even when unknown so callers can log it.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Label renders the role the way the sidebar shows it, e.g. "hospital admin".
func (r Role) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(r), "_", " "))
}
