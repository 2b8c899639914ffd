package api

// storeArtifactRequest is the body of POST /artifacts. Content is a UTF-8
// string on the wire; it is stored byte-exact.
type storeArtifactRequest struct {
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// registerRequest is the body of POST /register on the coordinator.
type registerRequest struct {
	Clone          string `json:"clone"`
	BaseURL        string `json:"baseUrl"`
	Specialization string `json:"specialization,omitempty"`
}
