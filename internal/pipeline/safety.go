// ABOUTME: Keyword-based safety filter blocking hateful, violent, vulgar, and anti-human content.
// ABOUTME: Fast and offline; designed to be swapped for a model-backed moderation call.

package pipeline

import (
	"regexp"
	"strings"
)

// SafetyFilter decides whether generated text may be published. A blocked
// verdict carries a reason naming the matched category.
type SafetyFilter interface {
	Check(text string) (safe bool, reason string)
}

// Blocklist, organised by category. Terms are matched case-insensitively.
var blockedCategories = []struct {
	category string
	patterns []string
}{
	{"hate speech", []string{
		`\bkill\s+all\b`, `\bexterminate\b`, `\bgenocide\b`,
		`\bethnic\s+cleansing\b`, `\bsubhuman\b`, `\bvermin\b`,
		`\binfidel(s)?\b`, `\bdie\s+you\b`,
	}},
	{"violent content", []string{
		`\bbomb\s+making\b`, `\bhow\s+to\s+make\s+a\s+bomb\b`,
		`\bterrorist\s+attack\b`, `\bmass\s+shooting\b`,
		`\bsuicide\s+bomb\b`, `\bbeheading\b`,
	}},
	{"vulgar language", []string{
		`\bf[u*]+ck\b`, `\bs[h*]+it\b`, `\bc[u*]+nt\b`,
		`\bb[i*]+tch\b`, `\ba[s*]+hole\b`,
	}},
	{"anti-human content", []string{
		`\bhuman\s+trafficking\b`, `\bchild\s+abuse\b`,
		`\bchild\s+pornography\b`, `\bsex\s+slave\b`,
		`\btorture\s+manual\b`,
	}},
}

type compiledPattern struct {
	category string
	re       *regexp.Regexp
}

// KeywordFilter implements SafetyFilter with a compiled regex blocklist.
type KeywordFilter struct {
	patterns []compiledPattern
}

// NewKeywordFilter compiles the built-in blocklist.
func NewKeywordFilter() *KeywordFilter {
	var patterns []compiledPattern
	for _, cat := range blockedCategories {
		for _, p := range cat.patterns {
			patterns = append(patterns, compiledPattern{
				category: cat.category,
				re:       regexp.MustCompile(`(?i)` + p),
			})
		}
	}
	return &KeywordFilter{patterns: patterns}
}

// Check scans the text against every blocked category. The first match is
// terminal and its category names the reason.
func (f *KeywordFilter) Check(text string) (bool, string) {
	for _, p := range f.patterns {
		if p.re.MatchString(text) {
			return false, "Content blocked: matched " + p.category + " filter."
		}
	}
	return true, ""
}

// buildCheckText concatenates the draft's text fields for moderation.
func buildCheckText(draft *Draft) string {
	parts := []string{
		draft.Title,
		draft.Summary,
		draft.Content,
		draft.WhyThisMatters,
		strings.Join(draft.KeyPoints, " "),
	}
	return strings.Join(parts, " ")
}
