package staff

import "github.com/medinexus/hms/internal/domain/access"

const DemoTenantID = "tenant-123"

// DemoActors is the demonstration staff of City General Hospital.
func DemoActors() []*access.Actor {
	return []*access.Actor{
		{ID: "u1", FirstName: "Alice", LastName: "Admin", Email: "admin@citygeneral.com", Role: access.RoleHospitalAdmin, TenantID: DemoTenantID, Avatar: "https://picsum.photos/100/100"},
		{ID: "u2", FirstName: "Gregory", LastName: "House", Email: "house@citygeneral.com", Role: access.RoleDoctor, TenantID: DemoTenantID, Avatar: "https://picsum.photos/101/101"},
		{ID: "u3", FirstName: "Florence", LastName: "Nightingale", Email: "nurse@citygeneral.com", Role: access.RoleNurse, TenantID: DemoTenantID, Avatar: "https://picsum.photos/102/102"},
		{ID: "u4", FirstName: "Pam", LastName: "Beesly", Email: "pam@citygeneral.com", Role: access.RoleReceptionist, TenantID: DemoTenantID, Avatar: "https://picsum.photos/103/103"},
		{ID: "u5", FirstName: "Phil", LastName: "Mortar", Email: "pharmacy@citygeneral.com", Role: access.RolePharmacist, TenantID: DemoTenantID},
		{ID: "u6", FirstName: "Sam", LastName: "Root", Email: "sam@medinexus.io", Role: access.RoleSuperAdmin, TenantID: DemoTenantID},
	}
}

// NewDemoRoster returns a MemoryRoster seeded with DemoActors.
func NewDemoRoster() *MemoryRoster {
	return NewMemoryRoster(DemoActors()...)
}
