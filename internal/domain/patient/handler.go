package patient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medinexus/hms/internal/domain/access"
	"github.com/medinexus/hms/internal/platform/auth"
	"github.com/medinexus/hms/pkg/pagination"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc    *Service
	policy *access.Policy
}

func NewHandler(svc *Service, policy *access.Policy) *Handler {
	return &Handler{svc: svc, policy: policy}
}

// RegisterRoutes mounts the registry routes. mw runs after the capability
// checks, so a denied request never reaches it.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	view := h.require(access.CapViewPatients, mw)
	api.GET("/patients", h.ListPatients, view...)
	api.GET("/patients/export", h.ExportPatients, h.require(access.CapPatientExport, view)...)
	api.GET("/patients/:id", h.GetPatient, view...)

	api.POST("/patients", h.RegisterPatient, h.require(access.CapPatientCreate, mw)...)
}

func (h *Handler) require(c access.Capability, then []echo.MiddlewareFunc) []echo.MiddlewareFunc {
	return append([]echo.MiddlewareFunc{auth.RequireCapability(h.policy, c)}, then...)
}

// Row is a registry list entry as the patient table shows it.
type Row struct {
	*Patient
	Age                int    `json:"age"`
	AssignedDoctorName string `json:"assigned_doctor_name"`
}

func (h *Handler) row(c echo.Context, p *Patient) Row {
	return Row{
		Patient:            p,
		Age:                p.Age(h.svc.now()),
		AssignedDoctorName: h.svc.DoctorName(c.Request().Context(), p),
	}
}

func filterFromQuery(c echo.Context) (Filter, error) {
	t, ok := ParseTypeFilter(c.QueryParam("type"))
	if !ok {
		return Filter{}, fmt.Errorf("type must be ALL, OPD or IPD")
	}
	f := Filter{Query: c.QueryParam("q"), Type: t}
	if st := c.QueryParam("status"); st != "" {
		f.Status = Status(st)
		if !f.Status.Valid() {
			return Filter{}, fmt.Errorf("status must be Active or Discharged")
		}
	}
	return f, nil
}

func (h *Handler) ListPatients(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	pg := pagination.FromContext(c)
	actor := access.ActorFromContext(c.Request().Context())

	patients, total, err := h.svc.List(c.Request().Context(), actor, f, pg.Limit, pg.Offset)
	if err != nil {
		return h.toHTTP(err)
	}
	rows := make([]Row, 0, len(patients))
	for _, p := range patients {
		rows = append(rows, h.row(c, p))
	}
	resp := pagination.NewResponse(rows, total, pg.Limit, pg.Offset).
		WithLinks(c.Request().URL.Path, c.QueryParams())
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetPatient(c echo.Context) error {
	actor := access.ActorFromContext(c.Request().Context())
	p, err := h.svc.Get(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return h.toHTTP(err)
	}
	return c.JSON(http.StatusOK, h.row(c, p))
}

func (h *Handler) RegisterPatient(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := access.ActorFromContext(c.Request().Context())
	p, err := h.svc.Register(c.Request().Context(), actor, in)
	if err != nil {
		return h.toHTTP(err)
	}
	return c.JSON(http.StatusCreated, h.row(c, p))
}

func (h *Handler) ExportPatients(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor := access.ActorFromContext(c.Request().Context())
	data, err := h.svc.Export(c.Request().Context(), actor, f)
	if err != nil {
		return h.toHTTP(err)
	}
	name := fmt.Sprintf("patients-%s-%s.xlsx", strings.ToLower(actor.TenantID), h.svc.now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", name))
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, xlsxMIME, data)
}

func (h *Handler) toHTTP(err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
