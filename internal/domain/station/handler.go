package station

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/platform/auth"
	"github.com/clinicflow/clinicflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints, open to all clinic roles.
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	readGroup.GET("/stations", h.ListStations)
	readGroup.GET("/stations/board", h.Board)
	readGroup.GET("/stations/:id", h.GetStation)
	readGroup.GET("/stations/:id/queue", h.GetQueue)
	readGroup.GET("/stations/:id/alerts", h.ListAlerts)
	readGroup.GET("/stations/:id/metrics", h.GetMetrics)

	// Queue operations, open to all clinic roles.
	queueGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	queueGroup.POST("/stations/:id/queue", h.Admit)
	queueGroup.DELETE("/stations/:id/queue/:patientId", h.Remove)

	// Station administration is limited to admin and nurse.
	adminGroup := api.Group("", auth.RequireRole("admin", "nurse"))
	adminGroup.PUT("/stations/:id/equipment/:equipmentId", h.SetEquipmentStatus)
	adminGroup.POST("/stations/:id/deactivate", h.Deactivate)
	adminGroup.POST("/stations/:id/reactivate", h.Reactivate)
	adminGroup.POST("/stations/:id/alerts/:alertId/resolve", h.ResolveAlert)
}

func (h *Handler) ListStations(c echo.Context) error {
	f := Filter{
		Type:   Type(c.QueryParam("type")),
		Status: Status(c.QueryParam("status")),
	}
	if active := c.QueryParam("active"); active != "" {
		v := active == "true"
		f.Active = &v
	}

	stations := h.svc.List(c.Request().Context(), f)
	pg := pagination.FromContext(c)
	total := len(stations)
	start, end := pg.Window(total)
	return c.JSON(http.StatusOK, pagination.NewResponse(stations[start:end], total, pg.Limit, pg.Offset))
}

func (h *Handler) GetStation(c echo.Context) error {
	st, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "station not found")
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Board(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Board(c.Request().Context()))
}

func (h *Handler) GetQueue(c echo.Context) error {
	view, err := h.svc.Queue(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "station not found")
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) Admit(c echo.Context) error {
	var body struct {
		PatientID string `json:"patient_id"`
		SessionID string `json:"session_id"`
		Tier      string `json:"tier"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	patientID, err := uuid.Parse(body.PatientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	sessionID := patientID
	if body.SessionID != "" {
		sessionID, err = uuid.Parse(body.SessionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid session_id")
		}
	}
	tier := PriorityTier(body.Tier)
	if body.Tier == "" {
		tier = TierMedium
	}

	adm, err := h.svc.Admit(c.Request().Context(), c.Param("id"), patientID, sessionID, tier)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, adm)
}

func (h *Handler) Remove(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	rem, err := h.svc.Remove(c.Request().Context(), c.Param("id"), patientID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, rem)
}

func (h *Handler) SetEquipmentStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	upd, err := h.svc.SetEquipmentStatus(c.Request().Context(), c.Param("id"), c.Param("equipmentId"), EquipmentStatus(body.Status))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, upd)
}

func (h *Handler) Deactivate(c echo.Context) error {
	ch, err := h.svc.Deactivate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) Reactivate(c echo.Context) error {
	ch, err := h.svc.Reactivate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	unresolvedOnly := c.QueryParam("unresolved") == "true"
	alerts, err := h.svc.Alerts(c.Request().Context(), c.Param("id"), unresolvedOnly)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) ResolveAlert(c echo.Context) error {
	alertID, err := uuid.Parse(c.Param("alertId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert id")
	}

	alert, err := h.svc.ResolveAlert(c.Request().Context(), c.Param("id"), alertID)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, alert)
}

func (h *Handler) GetMetrics(c echo.Context) error {
	metrics, err := h.svc.Metrics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, metrics)
}

// mapError translates domain errors to HTTP errors.
func mapError(err error) error {
	var queued *AlreadyQueuedError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &queued):
		return echo.NewHTTPError(http.StatusConflict, echo.Map{
			"error":      "already queued",
			"patient_id": queued.PatientID.String(),
			"station_id": queued.StationID,
		})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}
