package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
	"github.com/ambulatorio/ambulatorio/internal/platform/auth"
	"github.com/ambulatorio/ambulatorio/internal/platform/metrics"
)

const (
	msgNotFound  = "Paziente non trovato"
	msgDuplicate = "Codice fiscale già registrato in questo ambulatorio"
)

type Handler struct {
	svc     *Service
	metrics *metrics.AgendaMetrics
}

func NewHandler(svc *Service, m *metrics.AgendaMetrics) *Handler {
	return &Handler{svc: svc, metrics: m}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := auth.RequireSite(ctx, req.Ambulatorio); err != nil {
		return err
	}
	p := req.ToPatient()
	if err := h.svc.Create(ctx, p); err != nil {
		return mapError(err)
	}
	h.metrics.ObservePatientCreated(string(p.Ambulatorio), string(p.Tipo))
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	updated, err := h.svc.Update(c.Request().Context(), p.ID, &req)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	p, err := h.load(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p.ID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPatients serves GET /patients?ambulatorio=&status=&tipo=&search=.
func (h *Handler) ListPatients(c echo.Context) error {
	site, err := clinic.ParseSite(c.QueryParam("ambulatorio"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	if err := auth.RequireSite(ctx, string(site)); err != nil {
		return err
	}
	f := ListFilter{Site: site, Search: c.QueryParam("search")}
	if v := c.QueryParam("status"); v != "" {
		f.Status = clinic.PatientStatus(v)
		if !f.Status.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "status non valido")
		}
	}
	if v := c.QueryParam("tipo"); v != "" {
		f.Type = clinic.PatientType(v)
		if !f.Type.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "tipo non valido")
		}
	}
	items, err := h.svc.List(ctx, f)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// load resolves :id and checks the caller may see the patient's site.
func (h *Handler) load(c echo.Context) (*Patient, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "id non valido")
	}
	ctx := c.Request().Context()
	p, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if err := auth.RequireSite(ctx, string(p.Ambulatorio)); err != nil {
		return nil, err
	}
	return p, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, msgDuplicate)
	case errors.Is(err, ErrSiteRestriction), errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
