package api

import (
	"github.com/omegalab/clonenet/pkg/artifact"
	"github.com/omegalab/clonenet/pkg/evidence"
)

// errorResponse is the uniform failure body of every endpoint.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// storeArtifactResponse answers POST /artifacts.
type storeArtifactResponse struct {
	Success  bool               `json:"success"`
	Manifest *artifact.Manifest `json:"manifest"`
}

// retrieveArtifactResponse answers GET /artifacts/:id. Content is omitted on
// manifest-only reads.
type retrieveArtifactResponse struct {
	Success  bool               `json:"success"`
	Manifest *artifact.Manifest `json:"manifest"`
	Content  string             `json:"content,omitempty"`
}

// listArtifactsResponse answers GET /artifacts.
type listArtifactsResponse struct {
	Success    bool                 `json:"success"`
	Artifacts  []*artifact.Manifest `json:"artifacts"`
	Statistics artifact.Stats       `json:"statistics"`
}

// auditResponse answers GET /audit without a task id filter.
type auditResponse struct {
	Success bool              `json:"success"`
	Clone   string            `json:"clone"`
	Total   int               `json:"total"`
	Records []evidence.Record `json:"records"`
}
