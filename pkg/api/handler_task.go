package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omegalab/clonenet/pkg/clone"
)

// handleTask answers POST /task: the generic task pipeline of every clone.
func (s *Server) handleTask(c *gin.Context) {
	var req clone.TaskRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := s.clone.ExecuteTask(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleSpecialization answers the role verb (POST /analyze, /design,
// /generate-tests, /document) by decoding the role's input shape and running
// the matching specialization.
func (s *Server) handleSpecialization(c *gin.Context) {
	var result *clone.SpecializationResult
	var err error

	switch s.clone.Role().ID {
	case clone.IDBeta:
		var req clone.AnalyzeRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err = s.clone.Analyze(c.Request.Context(), req)
	case clone.IDGamma:
		var req clone.DesignRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err = s.clone.Design(c.Request.Context(), req)
	case clone.IDDelta:
		var req clone.GenerateTestsRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err = s.clone.GenerateTests(c.Request.Context(), req)
	case clone.IDSigma:
		var req clone.DocumentRequest
		if !bindJSON(c, &req) {
			return
		}
		result, err = s.clone.Document(c.Request.Context(), req)
	default:
		c.JSON(http.StatusNotFound, errorResponse{Success: false, Error: "no specialization endpoint for this role"})
		return
	}

	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"clone":    s.clone.Role().ID,
		"result":   result.Response,
		"artifact": result.Artifact,
	})
}

// bindJSON decodes the request body into out, answering 400 itself on
// malformed input.
func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Success: false, Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
