package memory

import "strings"

// maxAliases caps the generated alias set per reference.
const maxAliases = 5

// Generic business-noun tails that users tend to drop when referring to
// a workflow ("the customer complaint one").
var genericTails = map[string]struct{}{
	"workflow":   {},
	"process":    {},
	"handling":   {},
	"management": {},
	"system":     {},
	"flow":       {},
}

// Common word abbreviations seen in user phrasing.
var abbreviations = map[string]string{
	"approval":    "appr",
	"document":    "doc",
	"management":  "mgmt",
	"request":     "req",
	"process":     "proc",
	"workflow":    "wf",
	"application": "app",
}

// GenerateAliases derives a small set of plausible user phrasings from a
// workflow name: the lowercased name, the name with generic tail words
// removed, individual words, and abbreviated variants.
func GenerateAliases(name string) []string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return nil
	}

	seen := map[string]struct{}{}
	var aliases []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || len(aliases) >= maxAliases {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		aliases = append(aliases, s)
	}

	add(lower)

	words := strings.Fields(lower)

	// Name with generic tail words stripped ("customer complaint
	// handling" → "customer complaint").
	var kept []string
	for _, w := range words {
		if _, generic := genericTails[w]; !generic {
			kept = append(kept, w)
		}
	}
	if len(kept) > 0 && len(kept) < len(words) {
		add(strings.Join(kept, " "))
	}

	// Individual words for single-word lookups.
	if len(words) > 1 {
		for _, w := range words {
			add(w)
		}
	}

	// Abbreviated variants ("document approval" → "doc approval").
	for word, abbr := range abbreviations {
		if strings.Contains(lower, word) {
			add(strings.ReplaceAll(lower, word, abbr))
		}
	}

	return aliases
}
