package record

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/healthtrack-api/internal/handler"
	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/service/record"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
)

type Handler struct {
	service record.RecordService
}

func NewHandler(service record.RecordService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	records := r.Group("/records")
	{
		records.POST("", h.SubmitReadings)
		records.GET("/critical", h.ListCriticalReadings)
		records.GET("/:id", h.GetReading)
		records.DELETE("/:id", h.DeleteReading)
	}

	patients := r.Group("/patients")
	{
		patients.GET("/:id/records", h.ListPatientReadings)
		patients.GET("/:id/records/statistics", h.GetReadingStatistics)
	}
}

func (h *Handler) SubmitReadings(c *gin.Context) {
	var req model.SubmitReadingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid request body", err))
		return
	}

	readings, err := h.service.Submit(c.Request.Context(), &req, handler.ActorID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"records": readings,
		"count":   len(readings),
	}))
}

func (h *Handler) ListCriticalReadings(c *gin.Context) {
	readings, err := h.service.ListCritical(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"records": readings,
		"count":   len(readings),
	}))
}

func (h *Handler) GetReading(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	reading, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(reading))
}

func (h *Handler) DeleteReading(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, &handler.Response{Status: "success", Message: "record deleted"})
}

func (h *Handler) ListPatientReadings(c *gin.Context) {
	patientID, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	var filters model.ReadingFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		_ = c.Error(apperrors.BadRequest("invalid query parameters", err))
		return
	}

	readings, total, err := h.service.ListByPatient(c.Request.Context(), patientID, &filters)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"records":   readings,
		"total":     total,
		"page":      filters.Page,
		"page_size": filters.PageSize,
	}))
}

func (h *Handler) GetReadingStatistics(c *gin.Context) {
	patientID, err := handler.ParseID(c, "id")
	if err != nil {
		_ = c.Error(err)
		return
	}

	stats, err := h.service.Statistics(c.Request.Context(), patientID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}
