package calendar

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
)

type Handler struct {
	policy *clinic.Policy
}

func NewHandler(policy *clinic.Policy) *Handler {
	return &Handler{policy: policy}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/calendar/holidays", h.GetHolidays)
	api.GET("/calendar/slots", h.GetTimeSlots)
}

// GetHolidays returns the non-working holidays of the year given by ?anno.
func (h *Handler) GetHolidays(c echo.Context) error {
	year, err := strconv.Atoi(c.QueryParam("anno"))
	if err != nil || year < 1583 || year > 9999 {
		return echo.NewHTTPError(http.StatusBadRequest, "anno non valido")
	}
	return c.JSON(http.StatusOK, HolidaysFor(year))
}

// TimeSlotsResponse lists the bookable slots of a day.
type TimeSlotsResponse struct {
	Mattina    []string `json:"mattina"`
	Pomeriggio []string `json:"pomeriggio"`
	Tutti      []string `json:"tutti"`
}

func (h *Handler) GetTimeSlots(c echo.Context) error {
	morning, afternoon := h.policy.MorningAfternoon()
	return c.JSON(http.StatusOK, TimeSlotsResponse{
		Mattina:    morning,
		Pomeriggio: afternoon,
		Tutti:      h.policy.TimeSlots,
	})
}
