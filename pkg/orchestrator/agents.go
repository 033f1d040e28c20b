package orchestrator

import "strings"

// agentOutputs maps agent slugs to the markdown files they are expected to
// produce. Unknown slugs produce no markdown outputs. Keys are the bare
// agent names; lookups tolerate a dotted namespace prefix.
var agentOutputs = map[string][]string{
	"specify": {"spec.md"},
	"plan":    {"plan.md"},
	"tasks":   {"tasks.md"},
}

// ExpectedMarkdownOutputs returns the markdown filenames an agent is expected
// to produce, or nil for agents without document outputs.
func ExpectedMarkdownOutputs(slug string) []string {
	name := slug
	if i := strings.LastIndex(slug, "."); i >= 0 {
		name = slug[i+1:]
	}
	return agentOutputs[strings.ToLower(name)]
}

// IsDocumentProducingAgent reports whether an agent's completion is detected
// through posted markdown outputs.
func IsDocumentProducingAgent(slug string) bool {
	return len(ExpectedMarkdownOutputs(slug)) > 0
}
