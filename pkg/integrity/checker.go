// Package integrity enforces the clone network's central invariant: no
// recorded output can be mistaken for a fabricated one. It provides content
// checksums, task request validation, and the execution-marker check every
// component applies to LLM output before returning it to a caller.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Execution markers. Every LLM-backed operation carries exactly one of
// these; any other value is a programming error.
const (
	ExecutionReal   = "real"
	ExecutionFailed = "failed"
)

// ErrInvalidInput is returned when an operation receives input it cannot
// legally process (nil content, empty expected checksum).
var ErrInvalidInput = errors.New("invalid input")

// ValidationError reports a task request that failed shape validation.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("request validation failed: %s", strings.Join(e.Errors, "; "))
}

// SimulationViolationError reports a response whose execution marker is not
// "real". Marker holds the offending value ("" when the marker was absent).
type SimulationViolationError struct {
	Marker string
}

func (e *SimulationViolationError) Error() string {
	if e.Marker == "" {
		return "simulation violation: execution marker missing from response"
	}
	return fmt.Sprintf("simulation violation: execution marker %q is not %q", e.Marker, ExecutionReal)
}

// RequestValidation is the result of validating an inbound task request.
type RequestValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Checker performs integrity checks. It is stateless and safe for
// concurrent use; each clone owns one instance.
type Checker struct{}

// NewChecker creates an integrity checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Checksum computes the SHA-256 of content as a 64-character lowercase hex
// string. Nil content is rejected; empty content is legal.
func (c *Checker) Checksum(content []byte) (string, error) {
	if content == nil {
		return "", fmt.Errorf("checksum: content must not be nil: %w", ErrInvalidInput)
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}

// VerifyChecksum recomputes the checksum of content and compares it with
// expected. The comparison ignores hex case. An empty expected value is
// rejected rather than reported as a mismatch.
func (c *Checker) VerifyChecksum(content []byte, expected string) (bool, error) {
	if expected == "" {
		return false, fmt.Errorf("verify checksum: expected checksum must not be empty: %w", ErrInvalidInput)
	}
	actual, err := c.Checksum(content)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expected), nil
}

// VerifyRequest validates the shape of an inbound task request. Only the
// prompt is mandatory; it must contain at least one non-whitespace rune.
func (c *Checker) VerifyRequest(prompt string) RequestValidation {
	if strings.TrimSpace(prompt) == "" {
		return RequestValidation{
			Valid:  false,
			Errors: []string{"prompt is required and must not be empty"},
		}
	}
	return RequestValidation{Valid: true}
}

// VerifyRealExecution succeeds only when the execution marker is "real".
// Every other value, including an absent marker, is a simulation violation.
func (c *Checker) VerifyRealExecution(execution string) error {
	if execution == ExecutionReal {
		return nil
	}
	return &SimulationViolationError{Marker: execution}
}

// ValidExecution reports whether marker is one of the two legal execution
// values.
func ValidExecution(marker string) bool {
	return marker == ExecutionReal || marker == ExecutionFailed
}
