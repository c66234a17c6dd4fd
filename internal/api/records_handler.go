package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/models"
	"github.com/livestock-import-api/internal/service"
)

// RecordsHandler serves the dashboard's table reads
type RecordsHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(services *service.Services, log zerolog.Logger) *RecordsHandler {
	return &RecordsHandler{
		services: services,
		log:      log.With().Str("handler", "records").Logger(),
	}
}

// ListRecords handles GET /v1/records/:collection
// Query params: programme (equality filter), page, page_size
func (h *RecordsHandler) ListRecords(c *gin.Context) {
	ctx := c.Request.Context()

	collection := c.Param("collection")
	if !models.ValidKinds[models.ImportKind(collection)] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
		return
	}

	programme := c.Query("programme")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	result, err := h.services.Records.List(ctx, collection, programme, page, pageSize)
	if err != nil {
		h.log.Error().Err(err).Str("collection", collection).Msg("Failed to list records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read records"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportRecords handles GET /v1/records/:collection/export
func (h *RecordsHandler) ExportRecords(c *gin.Context) {
	ctx := c.Request.Context()

	collection := c.Param("collection")
	if !models.ValidKinds[models.ImportKind(collection)] {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown collection"})
		return
	}

	programme := c.Query("programme")

	data, err := h.services.Records.ExportCSV(ctx, collection, programme)
	if err != nil {
		h.log.Error().Err(err).Str("collection", collection).Msg("Failed to export records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export records"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", collection))
	c.Data(http.StatusOK, "text/csv", data)
}
