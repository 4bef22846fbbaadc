package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/krs-admin-api/internal/models"
	"github.com/noah-isme/krs-admin-api/internal/service"
	appErrors "github.com/noah-isme/krs-admin-api/pkg/errors"
	"github.com/noah-isme/krs-admin-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
	exports     *service.ExportService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService, exports *service.ExportService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, exports: exports}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param page query int false "Page"
// @Param page_size query int false "Page size (1-100)"
// @Param status query string false "Quick filter: enrollment status"
// @Param semester query string false "Quick filter: semester (1 or 2)"
// @Param academic_year query string false "Quick filter: academic year YYYY/YYYY"
// @Param search query string false "Free-text search over nim, student name, course code"
// @Param filters query string false "JSON array of {field, op, value} rules"
// @Param filter_logic query string false "AND or OR"
// @Param sorts query string false "JSON array of {field, dir} pairs"
// @Param sort_by query string false "Legacy sort field"
// @Param sort_dir query string false "Legacy sort direction"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	q := parseListQuery(c)
	rows, meta, err := h.enrollments.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, meta)
}

// Export godoc
// @Summary Export enrollments matching the current filters
// @Tags Enrollments
// @Produce text/csv
// @Param format query string false "csv (default, streamed) or pdf"
// @Success 200 {string} string "delimited document"
// @Router /enrollments/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	q := parseListQuery(c)

	if strings.EqualFold(c.DefaultQuery("format", "csv"), "pdf") {
		payload, err := h.exports.RenderPDF(c.Request.Context(), q)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exports.Filename("pdf")))
		c.Header("Cache-Control", "no-store, no-cache")
		c.Data(http.StatusOK, "application/pdf", payload)
		return
	}

	c.Header("Content-Type", "text/csv; charset=UTF-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exports.Filename("csv")))
	c.Header("Cache-Control", "no-store, no-cache")
	c.Status(http.StatusOK)

	// Headers are already on the wire; a mid-stream failure can only be
	// recorded, not reported to the client.
	if err := h.exports.WriteCSV(c.Request.Context(), q, c.Writer); err != nil {
		_ = c.Error(err)
	}
}

// Create godoc
// @Summary Atomically resolve student and course identity and create an enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body service.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req service.CreateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	receipt, err := h.enrollments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, receipt)
}

// Show godoc
// @Summary Fetch one enrollment with student and course context
// @Tags Enrollments
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Show(c *gin.Context) {
	row, err := h.enrollments.Show(c.Request.Context(), pathID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}

// Update godoc
// @Summary Update an enrollment's course, period and status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path int true "Enrollment ID"
// @Param payload body service.UpdateEnrollmentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	id := pathID(c)

	var req service.UpdateEnrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// The record is resolved before the body is judged: a missing id
		// reports not-found even when the payload is malformed.
		if _, lookupErr := h.enrollments.Show(c.Request.Context(), id); lookupErr != nil {
			response.Error(c, lookupErr)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.enrollments.Update(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "updated"}, nil)
}

// Delete godoc
// @Summary Delete an enrollment
// @Tags Enrollments
// @Produce json
// @Param id path int true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), pathID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "deleted"}, nil)
}

// pathID parses the id path segment; a non-numeric id resolves to 0, which
// no row can match, yielding the usual not-found path.
func pathID(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return id
}

// parseListQuery gathers the listing parameters. Filter and sort JSON is
// decoded leniently: unparseable documents and malformed elements are
// dropped, never rejected.
func parseListQuery(c *gin.Context) models.EnrollmentListQuery {
	q := models.EnrollmentListQuery{
		Status:       c.Query("status"),
		Semester:     c.Query("semester"),
		AcademicYear: c.Query("academic_year"),
		Search:       c.Query("search"),
		FilterLogic:  c.DefaultQuery("filter_logic", "AND"),
		SortBy:       c.DefaultQuery("sort_by", "id"),
		SortDir:      c.DefaultQuery("sort_dir", "desc"),
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		q.Page = page
	} else {
		q.Page = 1
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "10")); err == nil {
		q.PageSize = size
	} else {
		q.PageSize = 10
	}

	if raw := strings.TrimSpace(c.Query("filters")); raw != "" {
		var elems []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &elems); err == nil {
			for _, elem := range elems {
				var rule models.FilterRule
				if err := json.Unmarshal(elem, &rule); err == nil {
					q.Filters = append(q.Filters, rule)
				}
			}
		}
	}

	if raw := strings.TrimSpace(c.Query("sorts")); raw != "" {
		var elems []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &elems); err == nil {
			for _, elem := range elems {
				var rule models.SortRule
				if err := json.Unmarshal(elem, &rule); err == nil {
					q.Sorts = append(q.Sorts, rule)
				}
			}
		}
	}

	return q
}
