// Package prompt composes a minimal instruction set per request. One of
// five modes is inferred from the user message and the previous turn's
// tool usage; each mode carries a compact instruction block instead of
// one large monolithic prompt.
package prompt

import (
	"regexp"
	"strings"
)

// Mode is a conversation mode for instruction selection.
type Mode string

// Conversation modes.
const (
	ModeGeneral      Mode = "general"
	ModeCreation     Mode = "creation"
	ModeSearch       Mode = "search"
	ModeModification Mode = "modification"
	ModeAnalysis     Mode = "analysis"
)

// Modes lists all modes, scored in this order so ties resolve
// deterministically.
var Modes = []Mode{ModeCreation, ModeSearch, ModeModification, ModeAnalysis, ModeGeneral}

var modePatterns = map[Mode][]*regexp.Regexp{
	ModeCreation: compileAll(
		`\bcreate\b`, `\bnew\b`, `\bmake\b`, `\bbuild\b`, `\bgenerate\b`,
		`\bdesign\b`, `\bset up\b`, `\bsetup\b`,
		`\bneed a workflow\b`, `\bwant a workflow\b`,
	),
	ModeSearch: compileAll(
		`\bfind\b`, `\bsearch\b`, `\blist\b`, `\bshow\b`,
		`\bwhat workflows\b`, `\bavailable workflows\b`,
		`\bexisting workflows\b`, `\bget all\b`,
	),
	ModeModification: compileAll(
		`\bupdate\b`, `\bmodify\b`, `\bchange\b`, `\bedit\b`,
		`\bremove\b`, `\bdelete\b`, `\badd a state\b`, `\badd an action\b`,
		`\bfix\b`, `\badjust\b`,
	),
	ModeAnalysis: compileAll(
		`\bexplain\b`, `\bhow does\b`, `\bwhat is\b`, `\bwhat are\b`,
		`\btell me about\b`, `\bdescribe\b`, `\bwhy\b`,
		`\bwhat can i\b`, `\bwhat happens\b`, `\bunderstand\b`,
	),
}

// mutationTools are previous-turn tool names that bias inference toward
// modification: a user following up on a just-mutated workflow is most
// likely asking for another change.
var mutationTools = map[string]struct{}{
	"create_workflow_from_description": {},
	"create_workflow_from_template":    {},
	"update_workflow_actions":          {},
	"add_workflow_state":               {},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// InferMode scores keyword patterns over the user message, adds a
// modification bias when the previous turn used a workflow-mutation
// tool, and returns the best mode. With no signal at all, a workflow in
// context means the user is probably asking about it (analysis);
// otherwise general wins.
func InferMode(message string, previousTools []string, hasWorkflow bool) Mode {
	lower := strings.ToLower(message)

	scores := make(map[Mode]int, len(modePatterns))
	for mode, patterns := range modePatterns {
		for _, p := range patterns {
			if p.MatchString(lower) {
				scores[mode]++
			}
		}
	}
	for _, tool := range previousTools {
		if _, ok := mutationTools[tool]; ok {
			scores[ModeModification]++
		}
	}

	best, bestScore := ModeGeneral, 0
	for _, mode := range Modes {
		if scores[mode] > bestScore {
			best, bestScore = mode, scores[mode]
		}
	}
	if bestScore == 0 {
		if hasWorkflow {
			return ModeAnalysis
		}
		return ModeGeneral
	}
	return best
}
