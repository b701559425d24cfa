package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/domain/staff"
)

var ErrForbidden = errors.New("not permitted")

// ValidationError reports a rejected registration field. Nothing is stored.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// RegisterInput is the registration form. Empty Gender, Type and Status take
// the form defaults Male, OPD and Active.
type RegisterInput struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	DOB              string `json:"dob"`
	Gender           string `json:"gender"`
	Contact          string `json:"contact"`
	Type             string `json:"type"`
	AssignedDoctorID string `json:"assigned_doctor_id"`
	Status           string `json:"status"`
}

// Recorder receives registry events for metrics.
type Recorder interface {
	PatientRegistered(tenantID, patientType string)
	PatientExported(tenantID string)
}

type nopRecorder struct{}

func (nopRecorder) PatientRegistered(string, string) {}
func (nopRecorder) PatientExported(string)           {}

type Service struct {
	repo     Repository
	roster   staff.Roster
	policy   *access.Policy
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time

	idMu       sync.Mutex
	lastMillis int64
}

func NewService(repo Repository, roster staff.Roster, policy *access.Policy, recorder Recorder, logger zerolog.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		repo:     repo,
		roster:   roster,
		policy:   policy,
		recorder: recorder,
		logger:   logger.With().Str("component", "patient").Logger(),
		now:      time.Now,
	}
}

// Register validates the form and appends a new patient to the actor's
// tenant registry.
func (s *Service) Register(ctx context.Context, actor *access.Actor, in RegisterInput) (*Patient, error) {
	if actor == nil || !s.policy.CanRegisterPatient(actor.Role) {
		return nil, ErrForbidden
	}

	p, err := s.validate(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p.TenantID = actor.TenantID
	p.AdmissionDate = now.Format(DateLayout)
	p.CreatedAt = now.UTC()

	// IDs are millisecond stamps; another instance may have taken one.
	for attempt := 0; attempt < 3; attempt++ {
		p.ID = s.nextID(actor.TenantID, now)
		err = s.repo.Create(ctx, p)
		if !errors.Is(err, ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("register patient: %w", err)
	}

	s.recorder.PatientRegistered(p.TenantID, string(p.Type))
	s.logger.Info().
		Str("patient_id", p.ID).
		Str("tenant_id", p.TenantID).
		Str("actor_id", actor.ID).
		Str("type", string(p.Type)).
		Msg("patient registered")
	return p, nil
}

func (s *Service) validate(ctx context.Context, actor *access.Actor, in RegisterInput) (*Patient, error) {
	p := &Patient{
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		DOB:              strings.TrimSpace(in.DOB),
		Contact:          strings.TrimSpace(in.Contact),
		AssignedDoctorID: strings.TrimSpace(in.AssignedDoctorID),
		Gender:           GenderMale,
		Type:             TypeOPD,
		Status:           StatusActive,
	}

	if p.FirstName == "" {
		return nil, invalid("first_name", "is required")
	}
	if p.LastName == "" {
		return nil, invalid("last_name", "is required")
	}
	if p.DOB == "" {
		return nil, invalid("dob", "is required")
	}
	if _, err := time.Parse(DateLayout, p.DOB); err != nil {
		return nil, invalid("dob", "must be a date in YYYY-MM-DD format")
	}

	if in.Gender != "" {
		p.Gender = Gender(in.Gender)
		if !p.Gender.Valid() {
			return nil, invalid("gender", "must be Male, Female or Other")
		}
	}
	if in.Type != "" {
		p.Type = Type(strings.ToUpper(in.Type))
		if !p.Type.Valid() {
			return nil, invalid("type", "must be OPD or IPD")
		}
	}
	if in.Status != "" {
		p.Status = Status(in.Status)
		if !p.Status.Valid() {
			return nil, invalid("status", "must be Active or Discharged")
		}
	}

	if p.AssignedDoctorID != "" {
		doc, err := s.roster.Get(ctx, p.AssignedDoctorID)
		if err != nil || doc.TenantID != actor.TenantID || doc.Role != access.RoleDoctor {
			return nil, invalid("assigned_doctor_id", "must reference a doctor of this hospital")
		}
	}
	return p, nil
}

// nextID returns "<tenant>-P-<unix millis>", bumped so IDs issued by this
// process never repeat.
func (s *Service) nextID(tenantID string, now time.Time) string {
	s.idMu.Lock()
	ms := now.UnixMilli()
	if ms <= s.lastMillis {
		ms = s.lastMillis + 1
	}
	s.lastMillis = ms
	s.idMu.Unlock()
	return fmt.Sprintf("%s-P-%d", tenantID, ms)
}

func (s *Service) List(ctx context.Context, actor *access.Actor, f Filter, limit, offset int) ([]*Patient, int, error) {
	if actor == nil {
		return nil, 0, ErrForbidden
	}
	return s.repo.List(ctx, actor.TenantID, f, limit, offset)
}

// Get looks a patient up within the actor's tenant only.
func (s *Service) Get(ctx context.Context, actor *access.Actor, id string) (*Patient, error) {
	if actor == nil {
		return nil, ErrForbidden
	}
	return s.repo.GetByID(ctx, actor.TenantID, id)
}

// DoctorName resolves a patient's assigned doctor for display.
func (s *Service) DoctorName(ctx context.Context, p *Patient) string {
	return staff.DoctorName(ctx, s.roster, p.AssignedDoctorID)
}

// Stats counts the actor's tenant registry for the dashboard.
type Stats struct {
	Total       int
	Inpatients  int
	Outpatients int
	Active      int
	Discharged  int
}

func (s *Service) Stats(ctx context.Context, actor *access.Actor) (Stats, error) {
	if actor == nil {
		return Stats{}, ErrForbidden
	}
	all, total, err := s.repo.List(ctx, actor.TenantID, Filter{}, 0, 0)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: total}
	for _, p := range all {
		switch p.Type {
		case TypeIPD:
			st.Inpatients++
		case TypeOPD:
			st.Outpatients++
		}
		switch p.Status {
		case StatusActive:
			st.Active++
		case StatusDischarged:
			st.Discharged++
		}
	}
	return st, nil
}
