package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleHealth answers GET /health with liveness, metrics, and component
// flags.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.clone.HealthStatus())
}
