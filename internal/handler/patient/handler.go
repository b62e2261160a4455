package patient

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/healthtrack-api/internal/handler"
	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/service/patient"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
)

// Reconciler recomputes a patient's critical flag on demand.
type Reconciler interface {
	Reconcile(ctx context.Context, patientID uuid.UUID) (bool, error)
}

type Handler struct {
	service    patient.PatientService
	reconciler Reconciler
}

func NewHandler(service patient.PatientService, reconciler Reconciler) *Handler {
	return &Handler{
		service:    service,
		reconciler: reconciler,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.GET("/critical", h.ListCriticalPatients)
		patients.GET("/statistics", h.GetStatistics)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", h.DeletePatient)
		patients.POST("/:id/reconcile", h.ReconcilePatient)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request body", err))
		return
	}

	p, err := h.service.CreatePatient(c.Request.Context(), &req, handler.ActorID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	p, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) ListPatients(c *gin.Context) {
	var filters model.PatientFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid query parameters", err))
		return
	}

	patients, total, err := h.service.ListPatients(c.Request.Context(), &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"patients":  patients,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	}))
}

// UpdatePatient binds into a request type without is_critical, so a client
// supplied flag is dropped.
func (h *Handler) UpdatePatient(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request body", err))
		return
	}

	p, err := h.service.UpdatePatient(c.Request.Context(), id, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(p))
}

func (h *Handler) DeletePatient(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.service.DeletePatient(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &handler.Response{Status: "success", Message: "patient deleted"})
}

func (h *Handler) ListCriticalPatients(c *gin.Context) {
	patients, err := h.service.ListCritical(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"patients": patients,
		"count":    len(patients),
	}))
}

func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

// ReconcilePatient runs a reconcile synchronously and returns the result.
func (h *Handler) ReconcilePatient(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if _, err := h.service.GetPatient(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	changed, err := h.reconciler.Reconcile(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	p, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"patient": p,
		"changed": changed,
	}))
}
