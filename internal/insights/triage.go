// Package insights holds the heuristic helpers behind the dashboard:
// triage scoring, wait estimates and arrival statistics. None of them are
// learned models.
package insights

import "strings"

const (
	ScoreLow    = 1
	ScoreMedium = 3
	ScoreHigh   = 5
)

var (
	highAcuityKeywords   = []string{"chest pain", "bleeding", "stroke", "seizure", "unconscious"}
	mediumAcuityKeywords = []string{"fever", "vomiting", "severe pain", "cough", "headache"}
)

// TriageScore maps free-text symptoms to a priority of 1, 3 or 5.
// The high tier is checked first, so "severe pain with bleeding" scores 5.
func TriageScore(symptoms string) int {
	text := strings.ToLower(symptoms)
	if strings.TrimSpace(text) == "" {
		return ScoreLow
	}
	if containsAny(text, highAcuityKeywords) {
		return ScoreHigh
	}
	if containsAny(text, mediumAcuityKeywords) {
		return ScoreMedium
	}
	return ScoreLow
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
