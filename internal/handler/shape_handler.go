package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tamos/tamos-client-go/internal/archive"
	"github.com/tamos/tamos-client-go/internal/repository"
	"github.com/tamos/tamos-client-go/internal/service"
	"github.com/tamos/tamos-client-go/pkg/response"
)

// maxShapeBody bounds uploaded shape documents and archives
const maxShapeBody = 32 << 20

// ShapeHandler handles HTTP requests for user shapes
type ShapeHandler struct {
	service *service.ShapeService
}

// NewShapeHandler creates a new shape handler
func NewShapeHandler(service *service.ShapeService) *ShapeHandler {
	return &ShapeHandler{service: service}
}

// SaveShapes handles PUT /api/v1/shapes
func (h *ShapeHandler) SaveShapes(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		response.BadRequest(c, "Failed to read request body", err)
		return
	}
	if err := h.service.Save(c.Request.Context(), body); err != nil {
		storeError(c, "Failed to save shapes", err)
		return
	}
	response.Success(c, gin.H{"saved": true})
}

// GetShapes handles GET /api/v1/shapes
func (h *ShapeHandler) GetShapes(c *gin.Context) {
	shapes, err := h.service.Load(c.Request.Context())
	if err != nil {
		storeError(c, "Failed to load shapes", err)
		return
	}
	response.Success(c, shapes)
}

// ImportShapes handles POST /api/v1/shapes/import
func (h *ShapeHandler) ImportShapes(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		response.BadRequest(c, "Failed to read request body", err)
		return
	}
	imported, err := h.service.Import(c.Request.Context(), body)
	if err != nil {
		storeError(c, "Failed to import shapes", err)
		return
	}
	response.Success(c, gin.H{"imported": len(imported), "ids": imported.IDs()})
}

// ExportShapes handles GET /api/v1/shapes/export
func (h *ShapeHandler) ExportShapes(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.service.Export(c.Request.Context(), &buf); err != nil {
		storeError(c, "Failed to export shapes", err)
		return
	}
	name := fmt.Sprintf("shapes-%s%s", time.Now().Format("20060102-150405"), archive.Extension)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/zstd", buf.Bytes())
}

// RestoreShapes handles POST /api/v1/shapes/restore
func (h *ShapeHandler) RestoreShapes(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxShapeBody)
	restored, err := h.service.Restore(c.Request.Context(), c.Request.Body)
	if err != nil {
		storeError(c, "Failed to restore shapes", err)
		return
	}
	response.Success(c, gin.H{"restored": len(restored)})
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxShapeBody))
}

func storeError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, repository.ErrMalformedCollection), errors.Is(err, archive.ErrInvalidArchive):
		response.Error(c, http.StatusBadRequest, message, err)
	case errors.Is(err, repository.ErrStoreUnavailable):
		response.Error(c, http.StatusServiceUnavailable, message, err)
	default:
		response.Error(c, http.StatusInternalServerError, message, err)
	}
}
