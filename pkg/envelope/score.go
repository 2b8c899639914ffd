package envelope

import (
	"math"
	"strings"
)

// Weights of the three quality axes.
const (
	clarityWeight     = 0.4
	relevanceWeight   = 0.3
	utilizationWeight = 0.3
)

// actionVerbs are the verbs a clear objective is expected to open with or
// contain. Lowercase; matched per word.
var actionVerbs = map[string]bool{
	"analyze": true, "assess": true, "build": true, "create": true,
	"describe": true, "design": true, "develop": true, "document": true,
	"draft": true, "evaluate": true, "explain": true, "fix": true,
	"generate": true, "implement": true, "investigate": true, "migrate": true,
	"optimize": true, "plan": true, "produce": true, "refactor": true,
	"review": true, "summarize": true, "test": true, "update": true,
	"validate": true, "write": true,
}

// artifactHints are objective words suggesting stored artifacts would aid the
// task, raising the bar for an envelope that ships none.
var artifactHints = []string{
	"code", "design", "schema", "test", "document", "file",
	"implementation", "module", "artifact", "component",
}

// scoreInput computes the three-axis quality score for a delegation input.
func scoreInput(input BuildInput) Score {
	clarity := scoreObjectiveClarity(input.Objective)
	relevance := scoreDataRelevance(input.EssentialData)
	utilization := scoreArtifactUtilization(input.ArtifactManifests, input.Objective)

	overall := int(math.Round(clarityWeight*float64(clarity) +
		relevanceWeight*float64(relevance) +
		utilizationWeight*float64(utilization)))

	return Score{
		ObjectiveClarity:    clarity,
		DataRelevance:       relevance,
		ArtifactUtilization: utilization,
		OverallQuality:      overall,
	}
}

// scoreObjectiveClarity measures word count and the presence of an action
// verb and a target noun. Full band score at 5..20 words, linear degradation
// outside it; missing features subtract fixed penalties.
func scoreObjectiveClarity(objective string) int {
	words := strings.Fields(strings.ToLower(objective))
	n := len(words)
	if n == 0 {
		return 0
	}

	var band float64
	switch {
	case n >= 5 && n <= 20:
		band = 100
	case n < 5:
		band = float64(n) / 5 * 100
	default:
		band = float64(40-n) / 20 * 100
	}

	hasVerb := false
	hasNoun := false
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()")
		if actionVerbs[w] {
			hasVerb = true
			continue
		}
		if len(w) >= 3 {
			hasNoun = true
		}
	}

	score := band
	if !hasVerb {
		score -= 30
	}
	if !hasNoun {
		score -= 20
	}
	return clamp(score)
}

// scoreDataRelevance rewards a non-empty structured map without null or
// empty values. Each offending key subtracts a fixed penalty; an empty map
// scores low but not zero.
func scoreDataRelevance(data map[string]any) int {
	if len(data) == 0 {
		return 20
	}
	score := 100.0
	for _, v := range data {
		if isEmptyValue(v) {
			score -= 25
		}
	}
	if score < 10 {
		score = 10
	}
	return clamp(score)
}

// scoreArtifactUtilization enforces the lightweight-manifest rule: any inline
// content in an entry zeroes the axis; all-manifest entries score full. With
// no entries the score depends on whether the objective suggests artifacts
// would aid it.
func scoreArtifactUtilization(entries []map[string]any, objective string) int {
	if len(entries) == 0 {
		lower := strings.ToLower(objective)
		for _, hint := range artifactHints {
			if strings.Contains(lower, hint) {
				return 30
			}
		}
		return 60
	}
	for _, entry := range entries {
		for k, v := range entry {
			if isContentKey(k) && !isEmptyValue(v) {
				return 0
			}
		}
	}
	return 100
}

// isContentKey reports whether a manifest-entry field carries raw artifact
// bytes rather than index metadata.
func isContentKey(key string) bool {
	switch strings.ToLower(key) {
	case "content", "contents", "data", "bytes", "body":
		return true
	}
	return false
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

func clamp(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
