package generate

import "strings"

// Taxonomy is the fixed five-level feeling scale, each category carrying a
// closed list of specific emotion names. Classification results outside this
// taxonomy are discarded.
var Taxonomy = map[string][]string{
	"Great":    {"excited", "joyful", "proud", "grateful", "energized", "inspired"},
	"Good":     {"content", "hopeful", "calm", "relieved", "amused", "connected"},
	"Fine":     {"okay", "neutral", "indifferent", "tired", "distracted", "pensive"},
	"Bad":      {"anxious", "sad", "frustrated", "lonely", "overwhelmed", "guilty"},
	"Terrible": {"despairing", "angry", "ashamed", "hopeless", "grieving", "panicked"},
}

// CategoryOrder lists the categories best to worst, for stable prompt output.
var CategoryOrder = []string{"Great", "Good", "Fine", "Bad", "Terrible"}

// ValidFeeling reports whether the (name, category) pair belongs to the
// taxonomy. Matching is case-insensitive on both parts.
func ValidFeeling(name, category string) (string, string, bool) {
	for _, cat := range CategoryOrder {
		if !strings.EqualFold(cat, category) {
			continue
		}
		for _, n := range Taxonomy[cat] {
			if strings.EqualFold(n, name) {
				return n, cat, true
			}
		}
	}
	return "", "", false
}

// taxonomyText renders the taxonomy for inclusion in a prompt.
func taxonomyText() string {
	var lines []string
	for _, cat := range CategoryOrder {
		lines = append(lines, cat+": "+strings.Join(Taxonomy[cat], ", "))
	}
	return strings.Join(lines, "\n")
}
