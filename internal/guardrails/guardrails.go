// Package guardrails screens short user-supplied strings before they are
// interpolated into model prompts.
package guardrails

import (
	"strings"
	"unicode"
)

// Result holds the outcome of a check.
type Result struct {
	Allowed bool     `json:"allowed"`
	Flags   []string `json:"flags,omitempty"`
	Score   float64  `json:"score,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

var injectionPatterns = []struct {
	pattern string
	weight  float64
	flag    string
}{
	{"ignore previous instructions", 0.9, "override_attempt"},
	{"ignore all previous", 0.9, "override_attempt"},
	{"ignore the above", 0.9, "override_attempt"},
	{"disregard your instructions", 0.9, "override_attempt"},
	{"forget your instructions", 0.85, "override_attempt"},
	{"you are now", 0.7, "role_hijack"},
	{"pretend you are", 0.7, "role_hijack"},
	{"act as if you", 0.6, "role_hijack"},
	{"system prompt", 0.8, "system_leak"},
	{"reveal your", 0.8, "system_leak"},
	{"respond with", 0.7, "format_override"},
	{"instead of a poem", 0.8, "format_override"},
	{"jailbreak", 0.9, "jailbreak"},
	{"do anything now", 0.85, "jailbreak"},
	{"<system>", 0.8, "tag_injection"},
	{"</system>", 0.8, "tag_injection"},
	{"[system]", 0.7, "tag_injection"},
	{"```", 0.7, "format_injection"},
}

// CheckPhrase screens a free-text style phrase such as a poem tone. Only
// input that can break out of its line in the prompt is rejected: control
// characters and template markers. Phrases that read like instructions are
// reported in Flags and Score but still allowed.
func CheckPhrase(text string) Result {
	if strings.IndexFunc(text, unicode.IsControl) >= 0 {
		return Result{
			Allowed: false,
			Flags:   []string{"control_characters"},
			Score:   1,
			Reason:  "contains line breaks or control characters",
		}
	}
	if strings.Contains(text, "{{") || strings.Contains(text, "}}") {
		return Result{
			Allowed: false,
			Flags:   []string{"template_injection"},
			Score:   1,
			Reason:  "contains template markers",
		}
	}

	lower := strings.ToLower(text)
	var flags []string
	score := 0.0
	for _, p := range injectionPatterns {
		if strings.Contains(lower, p.pattern) {
			score = max(score, p.weight)
			flags = append(flags, p.flag)
		}
	}
	return Result{Allowed: true, Flags: flags, Score: score}
}
