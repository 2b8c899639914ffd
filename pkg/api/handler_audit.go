package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultAuditLimit = 50

// handleAudit answers GET /audit: the trail for ?taskId=, otherwise the most
// recent records (?limit=, default 50).
func (s *Server) handleAudit(c *gin.Context) {
	if taskID := c.Query("taskId"); taskID != "" {
		c.JSON(http.StatusOK, s.clone.Recorder().AuditTrail(taskID))
		return
	}

	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse{Success: false, Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	records := s.clone.Recorder().RecentRecords(limit)
	c.JSON(http.StatusOK, auditResponse{
		Success: true,
		Clone:   s.clone.Role().ID,
		Total:   s.clone.Recorder().Len(),
		Records: records,
	})
}
