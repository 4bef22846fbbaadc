package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/krs-admin-api/internal/models"
	appErrors "github.com/noah-isme/krs-admin-api/pkg/errors"
)

// Envelope represents the common response contract: lists wrap rows in
// data, paginated lists add meta, failures carry error only.
type Envelope struct {
	Data  interface{}      `json:"data,omitempty"`
	Meta  *models.PageMeta `json:"meta,omitempty"`
	Error *appErrors.Error `json:"error,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, meta *models.PageMeta) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, Envelope{Data: data, Meta: meta})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
