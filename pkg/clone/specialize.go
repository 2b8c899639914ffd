package clone

import (
	"context"
	"fmt"
	"strings"

	"github.com/omegalab/clonenet/pkg/integrity"
)

// SpecializationResult pairs the task response with the manifest of the
// artifact the specialization stored.
type SpecializationResult struct {
	Response *TaskResponse    `json:"result"`
	Artifact *ArtifactSummary `json:"artifact"`
}

// ArtifactSummary is the caller-facing view of the stored work product.
type ArtifactSummary struct {
	ArtifactID string `json:"artifactId"`
	Type       string `json:"type"`
	Checksum   string `json:"checksum"`
	Size       int    `json:"size"`
	Location   string `json:"location"`
}

// AnalyzeRequest is the analyzer's specialization input.
type AnalyzeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	Context  string `json:"context,omitempty"`
}

// DesignRequest is the architect's specialization input.
type DesignRequest struct {
	Requirements string `json:"requirements"`
	Constraints  string `json:"constraints,omitempty"`
	Focus        string `json:"focus,omitempty"`
}

// GenerateTestsRequest is the tester's specialization input.
type GenerateTestsRequest struct {
	Code      string `json:"code"`
	Framework string `json:"framework,omitempty"`
	Context   string `json:"context,omitempty"`
}

// DocumentRequest is the communicator's specialization input.
type DocumentRequest struct {
	Content  string `json:"content"`
	DocType  string `json:"docType,omitempty"`
	Audience string `json:"audience,omitempty"`
}

// Analyze runs a code analysis task and stores the result as a
// code_analysis artifact.
func (c *Clone) Analyze(ctx context.Context, req AnalyzeRequest) (*SpecializationResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, &integrity.ValidationError{Errors: []string{"code is required and must not be empty"}}
	}
	language := req.Language
	if language == "" {
		language = "unknown"
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Analyze the following %s code for structure, defects, complexity, and risk.\n", language)
	if req.Context != "" {
		fmt.Fprintf(&prompt, "Additional context: %s\n", req.Context)
	}
	fmt.Fprintf(&prompt, "\n```%s\n%s\n```", language, req.Code)

	return c.specialize(ctx, prompt.String(), map[string]any{
		"inputSize": len(req.Code),
		"language":  language,
	})
}

// Design runs an architecture design task and stores the result as an
// architecture_design artifact.
func (c *Clone) Design(ctx context.Context, req DesignRequest) (*SpecializationResult, error) {
	if strings.TrimSpace(req.Requirements) == "" {
		return nil, &integrity.ValidationError{Errors: []string{"requirements are required and must not be empty"}}
	}
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Design a software architecture for the following requirements.\n\nRequirements:\n%s\n", req.Requirements)
	if req.Constraints != "" {
		fmt.Fprintf(&prompt, "\nConstraints:\n%s\n", req.Constraints)
	}
	if req.Focus != "" {
		fmt.Fprintf(&prompt, "\nFocus area: %s\n", req.Focus)
	}

	metadata := map[string]any{"inputSize": len(req.Requirements)}
	if req.Focus != "" {
		metadata["focus"] = req.Focus
	}
	return c.specialize(ctx, prompt.String(), metadata)
}

// GenerateTests runs a test generation task and stores the result as a
// test_suite artifact.
func (c *Clone) GenerateTests(ctx context.Context, req GenerateTestsRequest) (*SpecializationResult, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, &integrity.ValidationError{Errors: []string{"code is required and must not be empty"}}
	}
	framework := req.Framework
	if framework == "" {
		framework = "the language's standard test framework"
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Generate a complete test suite using %s for the following code.\n", framework)
	if req.Context != "" {
		fmt.Fprintf(&prompt, "Additional context: %s\n", req.Context)
	}
	fmt.Fprintf(&prompt, "\n```\n%s\n```", req.Code)

	metadata := map[string]any{"inputSize": len(req.Code)}
	if req.Framework != "" {
		metadata["framework"] = req.Framework
	}
	return c.specialize(ctx, prompt.String(), metadata)
}

// Document runs a documentation task and stores the result as a
// documentation artifact.
func (c *Clone) Document(ctx context.Context, req DocumentRequest) (*SpecializationResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &integrity.ValidationError{Errors: []string{"content is required and must not be empty"}}
	}
	docType := req.DocType
	if docType == "" {
		docType = "technical documentation"
	}
	audience := req.Audience
	if audience == "" {
		audience = "developers"
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write %s for an audience of %s covering the following material.\n\n%s",
		docType, audience, req.Content)

	metadata := map[string]any{"inputSize": len(req.Content)}
	if req.DocType != "" {
		metadata["docType"] = req.DocType
	}
	if req.Audience != "" {
		metadata["audience"] = req.Audience
	}
	return c.specialize(ctx, prompt.String(), metadata)
}

// specialize wraps ExecuteTask and stores the response text as an artifact
// of the role's type. The task evidence event is recorded by ExecuteTask
// before the store appends its own, keeping the audit order task-first.
func (c *Clone) specialize(ctx context.Context, prompt string, metadata map[string]any) (*SpecializationResult, error) {
	resp, err := c.ExecuteTask(ctx, TaskRequest{Prompt: prompt})
	if err != nil {
		return nil, err
	}

	text := ""
	if len(resp.Messages) > 0 {
		text = resp.Messages[0].Content
	}

	manifest, err := c.store.Store(c.role.ArtifactType, []byte(text), metadata)
	if err != nil {
		return nil, fmt.Errorf("store %s artifact: %w", c.role.ArtifactType, err)
	}

	return &SpecializationResult{
		Response: resp,
		Artifact: &ArtifactSummary{
			ArtifactID: manifest.ArtifactID,
			Type:       manifest.Type,
			Checksum:   manifest.Checksum,
			Size:       manifest.Size,
			Location:   manifest.Location,
		},
	}, nil
}
