package bridge

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/omegalab/clonenet/pkg/clone"
)

// tool is one catalogue entry: a fixed name, an input schema for discovery,
// a deadline, and the HTTP call it wraps.
type tool struct {
	description string
	inputSchema map[string]any
	timeout     time.Duration
	invoke      func(ctx context.Context, b *Bridge, args map[string]any) (string, error)
}

// catalogue is the fixed tool set. Names are part of the protocol; adding or
// renaming one is a breaking change for IDE integrations.
var catalogue = map[string]tool{
	"health_check": {
		description: "Report coordinator health and reachability of every registered clone.",
		inputSchema: schema(nil, nil),
		timeout:     defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			return b.call(ctx, clone.IDOmega, "GET", "/network-status", nil)
		},
	},
	"beta_analyze": {
		description: "Analyze source code with the Beta analyzer clone.",
		inputSchema: schema(map[string]string{
			"code":     "source code to analyze",
			"language": "programming language of the code",
			"context":  "additional analysis context",
		}, []string{"code"}),
		timeout: defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			return b.call(ctx, clone.IDBeta, "POST", "/analyze", args)
		},
	},
	"gamma_design": {
		description: "Produce an architecture design with the Gamma architect clone.",
		inputSchema: schema(map[string]string{
			"requirements": "requirements to design for",
			"constraints":  "constraints the design must honor",
			"focus":        "focus area of the design",
		}, []string{"requirements"}),
		timeout: defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			return b.call(ctx, clone.IDGamma, "POST", "/design", args)
		},
	},
	"delta_test": {
		description: "Generate a test suite with the Delta tester clone.",
		inputSchema: schema(map[string]string{
			"code":      "code to generate tests for",
			"framework": "test framework to target",
			"context":   "additional testing context",
		}, []string{"code"}),
		timeout: defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			return b.call(ctx, clone.IDDelta, "POST", "/generate-tests", args)
		},
	},
	"sigma_document": {
		description: "Write documentation with the Sigma communicator clone.",
		inputSchema: schema(map[string]string{
			"content":  "material to document",
			"docType":  "kind of document to produce",
			"audience": "intended audience",
		}, []string{"content"}),
		timeout: defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			return b.call(ctx, clone.IDSigma, "POST", "/document", args)
		},
	},
	"omega_orchestrate": {
		description: "Run a quality-gated orchestration through the Omega coordinator.",
		inputSchema: schema(map[string]string{
			"objective":     "what the target clone should accomplish",
			"targetClone":   "clone id to delegate to",
			"essentialData": "structured data the target needs",
			"constraints":   "constraints on the work",
			"sessionId":     "session id for audit correlation",
		}, []string{"objective", "targetClone"}),
		timeout: orchestrateTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			return b.call(ctx, clone.IDOmega, "POST", "/orchestrate", args)
		},
	},
	"store_artifact": {
		description: "Store an artifact through the coordinator's artifact store.",
		inputSchema: schema(map[string]string{
			"type":     "artifact type",
			"content":  "artifact content",
			"metadata": "artifact metadata",
		}, []string{"type", "content"}),
		timeout: defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			return b.call(ctx, clone.IDOmega, "POST", "/artifacts", args)
		},
	},
	"get_artifact": {
		description: "Retrieve an artifact (or only its manifest) from the coordinator.",
		inputSchema: schema(map[string]string{
			"artifactId":   "artifact id to retrieve",
			"manifestOnly": "return only the manifest when true",
		}, []string{"artifactId"}),
		timeout: defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			id, _ := args["artifactId"].(string)
			if id == "" {
				return "", fmt.Errorf("artifactId is required")
			}
			path := "/artifacts/" + url.PathEscape(id)
			if manifestOnly, _ := args["manifestOnly"].(bool); manifestOnly {
				path += "?manifestOnly=true"
			}
			return b.call(ctx, clone.IDOmega, "GET", path, nil)
		},
	},
	"audit_log": {
		description: "Read the audit stream of a named clone.",
		inputSchema: schema(map[string]string{
			"clone":  "clone id whose audit stream to read",
			"taskId": "return the trail for this task only",
			"limit":  "maximum number of recent records",
		}, []string{"clone"}),
		timeout: defaultTimeout,
		invoke: func(ctx context.Context, b *Bridge, args map[string]any) (string, error) {
			cloneID, _ := args["clone"].(string)
			if cloneID == "" {
				return "", fmt.Errorf("clone is required")
			}
			query := url.Values{}
			if taskID, _ := args["taskId"].(string); taskID != "" {
				query.Set("taskId", taskID)
			}
			if limit, ok := args["limit"].(float64); ok && limit > 0 {
				query.Set("limit", fmt.Sprintf("%d", int(limit)))
			}
			path := "/audit"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}
			return b.call(ctx, cloneID, "GET", path, nil)
		},
	},
}

// ToolNames returns the catalogue names in stable order, for the startup
// banner.
func ToolNames() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a tool's description and input schema, or false for an
// unknown name.
func Describe(name string) (description string, inputSchema map[string]any, ok bool) {
	t, ok := catalogue[name]
	if !ok {
		return "", nil, false
	}
	return t.description, t.inputSchema, true
}

// schema builds a minimal JSON-schema document for a tool's arguments.
func schema(properties map[string]string, required []string) map[string]any {
	props := make(map[string]any, len(properties))
	for name, desc := range properties {
		props[name] = map[string]any{"type": "string", "description": desc}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}
