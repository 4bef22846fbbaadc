package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/krs-admin-api/internal/service"
	"github.com/noah-isme/krs-admin-api/pkg/response"
)

// CatalogHandler exposes the capped student/course picker listings.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Students godoc
// @Summary List students for pickers (capped, search-only)
// @Tags Catalog
// @Produce json
// @Param search query string false "Substring match over nim, name, email"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *CatalogHandler) Students(c *gin.Context) {
	rows, err := h.catalog.Students(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Courses godoc
// @Summary List courses for pickers (capped, search-only)
// @Tags Catalog
// @Produce json
// @Param search query string false "Substring match over code, name"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CatalogHandler) Courses(c *gin.Context) {
	rows, err := h.catalog.Courses(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
