package scheduling

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ambulatorio/ambulatorio/internal/domain/calendar"
	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
	"github.com/ambulatorio/ambulatorio/internal/platform/auth"
	"github.com/ambulatorio/ambulatorio/internal/platform/metrics"
)

const msgNotFound = "Appuntamento non trovato"

type Handler struct {
	svc     *Service
	metrics *metrics.AgendaMetrics
}

func NewHandler(svc *Service, m *metrics.AgendaMetrics) *Handler {
	return &Handler{svc: svc, metrics: m}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.POST("/appointments", h.CreateAppointment)
	api.GET("/appointments/:id", h.GetAppointment)
	api.PATCH("/appointments/:id", h.UpdateAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment)
	api.GET("/statistics", h.GetStatistics)
	api.GET("/statistics/compare", h.CompareStatistics)
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		h.metrics.ObserveBookingRejected("validation")
		return err
	}
	ctx := c.Request().Context()
	if err := auth.RequireSite(ctx, req.Ambulatorio); err != nil {
		return err
	}
	a, err := req.ToAppointment()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id non valido")
	}
	if err := h.svc.Create(ctx, a); err != nil {
		h.metrics.ObserveBookingRejected(rejectReason(err))
		return h.mapError(err)
	}
	h.metrics.ObserveAppointmentCreated(string(a.Ambulatorio), string(a.Tipo))
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	a, err := h.load(c)
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
	updated, err := h.svc.Update(c.Request().Context(), a.ID, &req)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	a, err := h.load(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), a.ID); err != nil {
		return h.mapError(err)
	}
	h.metrics.ObserveAppointmentDeleted(string(a.Ambulatorio))
	return c.NoContent(http.StatusNoContent)
}

// ListAppointments serves GET /appointments?ambulatorio=&data= or
// ?ambulatorio=&data_from=&data_to=, optionally narrowed by tipo.
func (h *Handler) ListAppointments(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	f := ListFilter{Site: site}
	if v := c.QueryParam("data"); v != "" {
		if _, err := calendar.ParseISO(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "data non valida")
		}
		f.Date = v
	} else if from, to := c.QueryParam("data_from"), c.QueryParam("data_to"); from != "" && to != "" {
		if _, err := calendar.ParseISO(from); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "data_from non valida")
		}
		if _, err := calendar.ParseISO(to); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "data_to non valida")
		}
		f.From, f.To = from, to
	}
	if v := c.QueryParam("tipo"); v != "" {
		t, err := clinic.ParseServiceType(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Type = t
	}
	items, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, items)
}

// GetStatistics serves GET /statistics?ambulatorio=&anno=&mese=&tipo=.
func (h *Handler) GetStatistics(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	q, err := statsQuery(c, site, "anno", "mese")
	if err != nil {
		return err
	}
	st, err := h.svc.Statistics(c.Request().Context(), q)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, st)
}

// CompareStatistics serves GET /statistics/compare. The second period
// defaults to the year of the first.
func (h *Handler) CompareStatistics(c echo.Context) error {
	site, err := h.site(c)
	if err != nil {
		return err
	}
	first, err := statsQuery(c, site, "periodo1_anno", "periodo1_mese")
	if err != nil {
		return err
	}
	yearKey := "periodo2_anno"
	if c.QueryParam(yearKey) == "" {
		yearKey = "periodo1_anno"
	}
	second, err := statsQuery(c, site, yearKey, "periodo2_mese")
	if err != nil {
		return err
	}
	cmp, err := h.svc.Compare(c.Request().Context(), first, second)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, cmp)
}

func statsQuery(c echo.Context, site clinic.Site, yearKey, monthKey string) (StatsQuery, error) {
	q := StatsQuery{Site: site}
	year, err := strconv.Atoi(c.QueryParam(yearKey))
	if err != nil {
		return q, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s obbligatorio", yearKey))
	}
	q.Year = year
	if v := c.QueryParam(monthKey); v != "" {
		month, err := strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			return q, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s non valido", monthKey))
		}
		q.Month = month
	}
	if v := c.QueryParam("tipo"); v != "" {
		t, err := clinic.ParseServiceType(v)
		if err != nil {
			return q, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		q.Type = t
	}
	return q, nil
}

func (h *Handler) site(c echo.Context) (clinic.Site, error) {
	site, err := clinic.ParseSite(c.QueryParam("ambulatorio"))
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := auth.RequireSite(c.Request().Context(), string(site)); err != nil {
		return "", err
	}
	return site, nil
}

func (h *Handler) load(c echo.Context) (*Appointment, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "id non valido")
	}
	ctx := c.Request().Context()
	a, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, h.mapError(err)
	}
	if err := auth.RequireSite(ctx, string(a.Ambulatorio)); err != nil {
		return nil, err
	}
	return a, nil
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotFull):
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("Slot pieno (max %d pazienti)", h.svc.Policy().SlotCapacity))
	case isBookingRule(err), errors.Is(err, ErrNoMEDStats), errors.Is(err, ErrInvalidPeriod):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

var bookingRules = []error{
	clinic.ErrNoProcedures, clinic.ErrUnknownProcedure, clinic.ErrServiceNotOffered,
	clinic.ErrUnknownTimeSlot, clinic.ErrInvalidServiceType, ErrInvalidDate, ErrNonWorkingDay,
	ErrPatientNotInCare, ErrPatientIneligible, ErrPatientOtherSite,
}

func isBookingRule(err error) bool {
	for _, target := range bookingRules {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSlotFull):
		return "slot_full"
	case errors.Is(err, ErrPatientNotFound):
		return "patient_not_found"
	case isBookingRule(err):
		return "rule"
	default:
		return "error"
	}
}
