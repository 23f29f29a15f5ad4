package appointment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medisched/medisched/internal/platform/auth"
	"github.com/medisched/medisched/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RolePatient, auth.RoleDoctor))
	g.POST("/appointments", h.Create)
	g.GET("/appointments", h.List)
	g.GET("/appointments/:id", h.Get)
	g.GET("/appointments/:id/history", h.History)
	g.POST("/appointments/:id/cancel", h.Cancel)
	g.POST("/appointments/:id/reschedule", h.Reschedule)

	clinical := api.Group("", auth.RequireRole(auth.RoleDoctor))
	clinical.POST("/appointments/:id/confirm", h.Confirm)
	clinical.POST("/appointments/:id/complete", h.Complete)
	clinical.POST("/appointments/:id/no-show", h.MarkNoShow)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	actor, _ := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Create(c.Request().Context(), req, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor, _ := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Get(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor, _ := auth.ActorFromContext(c.Request().Context())
	logs, err := h.svc.History(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *Handler) List(c echo.Context) error {
	actor, _ := auth.ActorFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	q := ListQuery{Period: c.QueryParam("period"), Limit: pg.Limit, Offset: pg.Offset}
	if st := c.QueryParam("status"); st != "" {
		status := Status(st)
		if !status.Valid() {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
		}
		q.Status = &status
	}
	if pid := c.QueryParam("patient_id"); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		q.PatientID = &id
	}
	if did := c.QueryParam("doctor_id"); did != "" {
		id, err := uuid.Parse(did)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		q.DoctorID = &id
	}

	page, err := h.svc.List(c.Request().Context(), q, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(page.Items, page.Total, pg.Limit, pg.Offset))
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.simpleTransition(c, h.svc.Confirm)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.simpleTransition(c, h.svc.Complete)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.simpleTransition(c, h.svc.MarkNoShow)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	// The reason is optional and so is the body.
	_ = c.Bind(&body)
	actor, _ := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Cancel(c.Request().Context(), id, actor, body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		ScheduledAt     time.Time `json:"scheduled_at"`
		DurationMinutes int       `json:"duration_minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.ScheduledAt.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "scheduled_at is required")
	}
	actor, _ := auth.ActorFromContext(c.Request().Context())
	a, err := h.svc.Reschedule(c.Request().Context(), id, actor, body.ScheduledAt, body.DurationMinutes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) simpleTransition(c echo.Context, op func(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Appointment, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	actor, _ := auth.ActorFromContext(c.Request().Context())
	a, err := op(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

// httpError maps service errors to HTTP responses. Violations surface as
// 422 with a structured payload; not-found as 404; anything else is a 500.
func httpError(err error) error {
	if v, ok := AsViolation(err); ok {
		status := http.StatusUnprocessableEntity
		if v.Kind == KindActorMismatch {
			status = http.StatusForbidden
		}
		return echo.NewHTTPError(status, map[string]string{
			"kind":    string(v.Kind),
			"field":   v.Field,
			"message": v.Message,
		})
	}
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
