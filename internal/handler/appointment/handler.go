package appointment

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/umedi/intake-api/internal/handler"
	"github.com/umedi/intake-api/internal/model"
	"github.com/umedi/intake-api/internal/service/appointment"
)

// HeaderDegraded names the step that failed after the appointment was stored.
const HeaderDegraded = "X-Intake-Degraded"

type Service interface {
	AddAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*appointment.Result, error)
	FetchAppointmentList(ctx context.Context) ([]*model.AppointmentView, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/appointment", h.ListAppointments)
	r.PUT("/appointment", h.CreateAppointment)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BadRequest(c)
		return
	}

	result, err := h.service.AddAppointment(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if result.Degraded() {
		c.Header(HeaderDegraded, string(result.Reason))
	}
	c.JSON(http.StatusOK, result.Appointment)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	appointments, err := h.service.FetchAppointmentList(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, appointments)
}
