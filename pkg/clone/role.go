// Package clone implements the worker runtime shared by every member of the
// network: role identity, the validate→enhance→query→record task pipeline,
// in-memory metrics, and the role-specific specialization operations.
package clone

import (
	"fmt"

	"github.com/omegalab/clonenet/pkg/artifact"
)

// Clone IDs. These are the registry keys, the `clone` field of responses and
// evidence, and the delegation targets.
const (
	IDOmega = "omega"
	IDBeta  = "beta"
	IDGamma = "gamma"
	IDDelta = "delta"
	IDSigma = "sigma"
)

// Role describes one clone kind. Roles differ only in system prompt, one
// specialization endpoint, and default port; the runtime is otherwise
// identical, and the coordinator is the same runtime with an extra
// capability set.
type Role struct {
	ID             string
	Name           string
	Specialization string
	Verb           string // specialization endpoint path, "" for the coordinator
	ArtifactType   string
	DefaultPort    int
	SystemPrompt   string
}

// noSimulationsLaw is embedded in every system prompt so downstream checks
// can verify the instruction was delivered.
const noSimulationsLaw = `NO SIMULATIONS LAW: every answer you produce must be real work from this
invocation. Never fabricate results, never pretend an operation succeeded,
never invent placeholder output. If you cannot complete the task, say so
explicitly.`

var roles = []Role{
	{
		ID:             IDOmega,
		Name:           "coordinator",
		Specialization: "task orchestration and delegation",
		DefaultPort:    3000,
		SystemPrompt: "You are Omega, the coordinator of a network of specialist clones. You" +
			" decompose objectives, assemble delegation context, and route work to the" +
			" specialist whose role matches the task. " + noSimulationsLaw,
	},
	{
		ID:             IDBeta,
		Name:           "analyzer",
		Specialization: "code analysis and defect detection",
		Verb:           "/analyze",
		ArtifactType:   artifact.TypeCodeAnalysis,
		DefaultPort:    3002,
		SystemPrompt: "You are Beta, a code analysis specialist. You examine source code for" +
			" structure, defects, complexity, and risk, and report concrete findings" +
			" with file and line references where possible. " + noSimulationsLaw,
	},
	{
		ID:             IDGamma,
		Name:           "architect",
		Specialization: "system and architecture design",
		Verb:           "/design",
		ArtifactType:   artifact.TypeArchitectureDesign,
		DefaultPort:    3003,
		SystemPrompt: "You are Gamma, a software architecture specialist. You turn requirements" +
			" and constraints into concrete designs: components, interfaces, data flow," +
			" and trade-offs, stated explicitly. " + noSimulationsLaw,
	},
	{
		ID:             IDDelta,
		Name:           "tester",
		Specialization: "test generation and quality assurance",
		Verb:           "/generate-tests",
		ArtifactType:   artifact.TypeTestSuite,
		DefaultPort:    3004,
		SystemPrompt: "You are Delta, a testing specialist. You produce runnable test suites" +
			" covering happy paths, edge cases, and failure modes for the code you are" +
			" given, in the framework requested. " + noSimulationsLaw,
	},
	{
		ID:             IDSigma,
		Name:           "communicator",
		Specialization: "technical documentation and communication",
		Verb:           "/document",
		ArtifactType:   artifact.TypeDocumentation,
		DefaultPort:    3005,
		SystemPrompt: "You are Sigma, a documentation specialist. You write clear, accurate" +
			" technical documentation matched to the requested document type and" +
			" audience. " + noSimulationsLaw,
	},
}

// Roles returns every role descriptor, coordinator first.
func Roles() []Role {
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// RoleByID looks up a role descriptor by clone id.
func RoleByID(id string) (Role, error) {
	for _, r := range roles {
		if r.ID == id {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("unknown clone role %q", id)
}
