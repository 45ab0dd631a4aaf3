package handlers

import (
	"net/http"

	"github.com/bytebot-ai/bytebot/agent/internal/infrastructure/llm"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModelHandler exposes the model catalogue.
type ModelHandler struct {
	proxyModels []string
	logger      *zap.Logger
}

// NewModelHandler creates the handler.
func NewModelHandler(proxyModels []string, logger *zap.Logger) *ModelHandler {
	return &ModelHandler{
		proxyModels: proxyModels,
		logger:      logger.With(zap.String("handler", "model")),
	}
}

// ListModels handles GET /api/v1/models. The catalogue is derived from the
// credentials present in the environment, so it reflects what the registry
// can actually resolve.
func (h *ModelHandler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": llm.Catalogue(h.proxyModels)})
}
