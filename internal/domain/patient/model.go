package patient

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

type Type string

const (
	TypeOPD Type = "OPD"
	TypeIPD Type = "IPD"
)

func (t Type) Valid() bool { return t == TypeOPD || t == TypeIPD }

type Status string

const (
	StatusActive     Status = "Active"
	StatusDischarged Status = "Discharged"
)

func (s Status) Valid() bool { return s == StatusActive || s == StatusDischarged }

type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// Patient is a registry entry. Records are append-only.
type Patient struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	DOB              string    `json:"dob"`
	Gender           Gender    `json:"gender"`
	Contact          string    `json:"contact"`
	Type             Type      `json:"type"`
	AssignedDoctorID string    `json:"assigned_doctor_id,omitempty"`
	Status           Status    `json:"status"`
	AdmissionDate    string    `json:"admission_date"`
	CreatedAt        time.Time `json:"-"`
}

// Age is the year difference between now and the date of birth, the way the
// registry list shows it. Zero when DOB does not parse.
func (p *Patient) Age(now time.Time) int {
	dob, err := time.Parse(DateLayout, p.DOB)
	if err != nil {
		return 0
	}
	return now.Year() - dob.Year()
}

// Filter narrows a registry listing. Zero values match everything.
type Filter struct {
	Query  string
	Type   Type
	Status Status
}

// ParseTypeFilter maps the list view's type selector onto a Type; "ALL" and
// empty select every type.
func ParseTypeFilter(s string) (Type, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL":
		return "", true
	case string(TypeOPD):
		return TypeOPD, true
	case string(TypeIPD):
		return TypeIPD, true
	}
	return "", false
}

// Matches applies the filter in memory. Query is a case-insensitive substring
// match on first name, last name or ID.
func (f Filter) Matches(p *Patient) bool {
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.FirstName), q) ||
		strings.Contains(strings.ToLower(p.LastName), q) ||
		strings.Contains(strings.ToLower(p.ID), q)
}
