package dashboard

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/domain/patient"
	"github.com/medinexus/hms/internal/domain/tenant"
	"github.com/medinexus/hms/internal/platform/auth"
)

type Slice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type ActivityPoint struct {
	Day        string `json:"day"`
	Active     int    `json:"active"`
	Discharged int    `json:"discharged"`
}

// Summary is the landing page payload.
type Summary struct {
	Greeting           string          `json:"greeting"`
	TenantName         string          `json:"tenant_name"`
	TotalPatients      int             `json:"total_patients"`
	Inpatients         int             `json:"inpatients"`
	Outpatients        int             `json:"outpatients"`
	ActivePatients     int             `json:"active_patients"`
	DischargedPatients int             `json:"discharged_patients"`
	Mix                []Slice         `json:"mix"`
	Activity           []ActivityPoint `json:"activity"`
}

// weeklyActivity is placeholder chart data; there is no admissions history yet.
var weeklyActivity = []ActivityPoint{
	{Day: "Mon", Active: 10, Discharged: 2},
	{Day: "Tue", Active: 15, Discharged: 5},
	{Day: "Wed", Active: 8, Discharged: 3},
	{Day: "Thu", Active: 20, Discharged: 8},
	{Day: "Fri", Active: 12, Discharged: 4},
	{Day: "Sat", Active: 18, Discharged: 6},
	{Day: "Sun", Active: 9, Discharged: 2},
}

type Service struct {
	patients *patient.Service
	tenants  tenant.Directory
}

func NewService(patients *patient.Service, tenants tenant.Directory) *Service {
	return &Service{patients: patients, tenants: tenants}
}

func (s *Service) Summary(ctx context.Context, actor *access.Actor) (*Summary, error) {
	st, err := s.patients.Stats(ctx, actor)
	if err != nil {
		return nil, err
	}
	activity := make([]ActivityPoint, len(weeklyActivity))
	copy(activity, weeklyActivity)

	return &Summary{
		Greeting:           "Welcome back, " + actor.FirstName + ".",
		TenantName:         tenant.DisplayName(ctx, s.tenants, actor.TenantID),
		TotalPatients:      st.Total,
		Inpatients:         st.Inpatients,
		Outpatients:        st.Outpatients,
		ActivePatients:     st.Active,
		DischargedPatients: st.Discharged,
		Mix: []Slice{
			{Name: "IPD (Inpatient)", Value: st.Inpatients},
			{Name: "OPD (Outpatient)", Value: st.Outpatients},
		},
		Activity: activity,
	}, nil
}

type Handler struct {
	svc    *Service
	policy *access.Policy
}

func NewHandler(svc *Service, policy *access.Policy) *Handler {
	return &Handler{svc: svc, policy: policy}
}

// RegisterRoutes mounts the summary route; mw runs after the capability check.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	chain := append([]echo.MiddlewareFunc{auth.RequireCapability(h.policy, access.CapViewDashboard)}, mw...)
	api.GET("/dashboard", h.GetSummary, chain...)
}

func (h *Handler) GetSummary(c echo.Context) error {
	actor := access.ActorFromContext(c.Request().Context())
	if actor == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	sum, err := h.svc.Summary(c.Request().Context(), actor)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sum)
}
