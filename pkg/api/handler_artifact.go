package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omegalab/clonenet/pkg/artifact"
)

// handleStoreArtifact answers POST /artifacts.
func (s *Server) handleStoreArtifact(c *gin.Context) {
	var req storeArtifactRequest
	if !bindJSON(c, &req) {
		return
	}

	manifest, err := s.clone.Store().Store(req.Type, []byte(req.Content), req.Metadata)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, storeArtifactResponse{Success: true, Manifest: manifest})
}

// handleGetArtifact answers GET /artifacts/:id, honoring ?manifestOnly=true.
func (s *Server) handleGetArtifact(c *gin.Context) {
	manifestOnly := c.Query("manifestOnly") == "true"

	result, err := s.clone.Store().Retrieve(c.Param("id"), artifact.RetrieveOptions{ManifestOnly: manifestOnly})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := retrieveArtifactResponse{Success: true, Manifest: result.Manifest}
	if !manifestOnly {
		resp.Content = string(result.Content)
	}
	c.JSON(http.StatusOK, resp)
}

// handleListArtifacts answers GET /artifacts, optionally filtered by ?type=.
func (s *Server) handleListArtifacts(c *gin.Context) {
	c.JSON(http.StatusOK, listArtifactsResponse{
		Success:    true,
		Artifacts:  s.clone.Store().List(c.Query("type")),
		Statistics: s.clone.Store().Statistics(),
	})
}

// handleDeleteArtifact answers DELETE /artifacts/:id.
func (s *Server) handleDeleteArtifact(c *gin.Context) {
	id := c.Param("id")
	if !s.clone.Store().Delete(id) {
		c.JSON(http.StatusNotFound, errorResponse{Success: false, Error: "artifact not found: " + id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deleted": id})
}
