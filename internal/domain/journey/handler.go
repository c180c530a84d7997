package journey

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicflow/clinicflow/internal/domain/station"
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
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	g.POST("/journeys", h.Start)
	g.GET("/journeys", h.List)
	g.GET("/journeys/:id", h.Get)
	g.GET("/journeys/:id/recommendations", h.Recommendations)
	g.POST("/journeys/:id/reception", h.CompleteReception)
	g.PATCH("/journeys/:id/questionnaire", h.UpdateQuestionnaire)
	g.POST("/journeys/:id/questionnaire/complete", h.CompleteQuestionnaire)
	g.POST("/journeys/:id/routing", h.GenerateRouting)
	g.POST("/journeys/:id/station", h.SelectStation)
	g.POST("/journeys/:id/station/:stationId/complete", h.CompleteStation)
	g.POST("/journeys/:id/cancel", h.Cancel)
}

func (h *Handler) Start(c echo.Context) error {
	var body struct {
		PatientID      string `json:"patient_id"`
		PatientName    string `json:"patient_name"`
		DocumentNumber string `json:"document_number"`
		Employer       string `json:"employer"`
		ExamType       string `json:"exam_type"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.PatientName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_name is required")
	}
	if body.ExamType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "exam_type is required")
	}

	in := StartInput{
		PatientName:    body.PatientName,
		DocumentNumber: body.DocumentNumber,
		Employer:       body.Employer,
		ExamType:       body.ExamType,
	}
	if body.PatientID != "" {
		patientID, err := uuid.Parse(body.PatientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		in.PatientID = patientID
	}

	j, err := h.svc.Start(c.Request().Context(), in)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusCreated, j)
}

func (h *Handler) List(c echo.Context) error {
	f := ListFilter{
		Phase:    Phase(c.QueryParam("phase")),
		ExamType: c.QueryParam("exam_type"),
	}
	// Terminal journeys are archived out of the default listing.
	active := true
	f.Active = &active
	switch c.QueryParam("active") {
	case "false":
		active = false
	case "all":
		f.Active = nil
	}

	journeys := h.svc.List(c.Request().Context(), f)
	pg := pagination.FromContext(c)
	total := len(journeys)
	start, end := pg.Window(total)
	return c.JSON(http.StatusOK, pagination.NewResponse(journeys[start:end], total, pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	j, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, j)
}

func (h *Handler) Recommendations(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	recs, err := h.svc.Recommendations(c.Request().Context(), id)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, recs)
}

func (h *Handler) CompleteReception(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	var body struct {
		CheckIn map[string]any `json:"check_in"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	j, err := h.svc.CompleteReception(c.Request().Context(), id, body.CheckIn)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, j)
}

func (h *Handler) UpdateQuestionnaire(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	var body struct {
		Answers  map[string]any `json:"answers"`
		Progress int            `json:"progress"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	j, err := h.svc.UpdateQuestionnaire(c.Request().Context(), id, body.Answers, body.Progress)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, j)
}

func (h *Handler) CompleteQuestionnaire(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	var body struct {
		Answers      map[string]any `json:"answers"`
		MedicalFlags []string       `json:"medical_flags"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	j, err := h.svc.CompleteQuestionnaire(c.Request().Context(), id, body.Answers, body.MedicalFlags)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, j)
}

func (h *Handler) GenerateRouting(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	j, recs, err := h.svc.GenerateRouting(c.Request().Context(), id)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"journey":         j,
		"recommendations": recs,
	})
}

func (h *Handler) SelectStation(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	var body struct {
		StationID string `json:"station_id"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.StationID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "station_id is required")
	}

	j, adm, err := h.svc.SelectStation(c.Request().Context(), id, body.StationID)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"journey":   j,
		"admission": adm,
	})
}

func (h *Handler) CompleteStation(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	var body struct {
		Results map[string]any `json:"results"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	j, finished, err := h.svc.CompleteStation(c.Request().Context(), id, c.Param("stationId"), body.Results)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"journey":  j,
		"finished": finished,
	})
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseJourneyID(c)
	if err != nil {
		return err
	}
	j, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return mapJourneyError(err)
	}
	return c.JSON(http.StatusOK, j)
}

func parseJourneyID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid journey id")
	}
	return id, nil
}

// mapJourneyError translates domain errors to HTTP errors.
func mapJourneyError(err error) error {
	var transition *InvalidTransitionError
	var queued *station.AlreadyQueuedError
	switch {
	case errors.Is(err, ErrNotFound) || errors.Is(err, station.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &transition):
		return echo.NewHTTPError(http.StatusConflict, echo.Map{
			"error":     "invalid transition",
			"from":      transition.From,
			"attempted": transition.Attempted,
		})
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
