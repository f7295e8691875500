package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/mcqprep-backend/internal/model"
	"github.com/stemsi/mcqprep-backend/internal/response"
	"github.com/stemsi/mcqprep-backend/internal/service"
)

// CatalogHandler serves the selection screens.
type CatalogHandler struct {
	questionService *service.QuestionService
	log             zerolog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(questionService *service.QuestionService, log zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		questionService: questionService,
		log:             log.With().Str("component", "catalog_handler").Logger(),
	}
}

// GetCatalog godoc
// GET /api/v1/catalog
// Returns subjects, the years available per subject and the boards per year.
func (h *CatalogHandler) GetCatalog(c *gin.Context) {
	catalog, err := h.questionService.Catalog(c.Request.Context())
	if err != nil {
		log := response.Logger(c, h.log)
		log.Error().Err(err).Msg("Failed to build catalog")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if catalog == nil {
		catalog = []model.CatalogSubject{}
	}

	response.Success(c, http.StatusOK, gin.H{"subjects": catalog})
}
