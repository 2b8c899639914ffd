package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/omegalab/clonenet/pkg/coordinator"
)

// handleNetworkStatus answers GET /network-status on the coordinator.
func (s *Server) handleNetworkStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.coordinator.Probe(c.Request.Context()))
}

// handleDelegate answers POST /delegate: verbatim forwarding to a registered
// clone's /task. The downstream reply passes through with its status.
func (s *Server) handleDelegate(c *gin.Context) {
	var req coordinator.DelegateRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := s.coordinator.Delegate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(result.StatusCode, "application/json", result.Body)
}

// handleOrchestrate answers POST /orchestrate: quality-gated delegation.
// Downstream failures surface as 502 with the downstream message.
func (s *Server) handleOrchestrate(c *gin.Context) {
	var req coordinator.OrchestrateRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := s.coordinator.Orchestrate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	if !resp.Success {
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleRegister answers POST /register: adds or overrides a peer entry.
func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Clone) == "" || strings.TrimSpace(req.BaseURL) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Success: false, Error: "clone and baseUrl are required"})
		return
	}

	peer := s.coordinator.Registry().Register(req.Clone, req.BaseURL, req.Specialization)
	c.JSON(http.StatusOK, gin.H{"success": true, "peer": peer})
}
