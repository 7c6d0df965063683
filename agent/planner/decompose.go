package planner

import (
	"regexp"
	"strings"

	contractx "github.com/naphat/mathflow/agent/contract"
	"github.com/naphat/mathflow/agent/retrieval"
	toolx "github.com/naphat/mathflow/agent/tool"
)

// Intent is one planned unit: a rationale string plus, for tool-flagged
// intents, the tool name and arguments to call.
type Intent struct {
	Text string
	Tool string
	Args map[string]any
}

var (
	expressionPattern = regexp.MustCompile(`[0-9=+\-*/^()]`)
	numericOnly       = regexp.MustCompile(`^[\d\s\+\-\*/%\^\(\)\.]+$`)

	derivativeKeywords = []string{"differentiate", "derivative", "derive"}
	plotKeywords       = []string{"plot", "graph", "sketch"}
)

// decompose turns a question and its retrieved context into an ordered plan.
// Sentences carrying math expressions become tool intents; prose becomes
// reasoning intents, split on commas when long; non-empty context prepends a
// consultation step.
func decompose(question string, rc contractx.RetrievedContext, available func(string) bool) []Intent {
	var plan []Intent

	if !rc.Empty() {
		flattened := strings.ReplaceAll(retrieval.FormatContext(rc), "\n", " | ")
		plan = append(plan, Intent{Text: "Consult reference material: " + flattened})
	}

	for _, sentence := range splitSentences(question) {
		if expressionPattern.MatchString(sentence) {
			plan = append(plan, toolIntent(sentence, available))
			continue
		}
		if strings.Contains(sentence, ",") {
			for _, part := range strings.Split(sentence, ",") {
				if p := strings.TrimSpace(part); p != "" {
					plan = append(plan, Intent{Text: p})
				}
			}
			continue
		}
		plan = append(plan, Intent{Text: sentence})
	}

	if len(plan) == 0 {
		plan = append(plan, Intent{Text: question})
	}
	return plan
}

func toolIntent(sentence string, available func(string) bool) Intent {
	lower := strings.ToLower(sentence)
	expression := extractExpression(sentence)
	if expression == "" {
		return Intent{Text: sentence}
	}

	for _, kw := range derivativeKeywords {
		if strings.Contains(lower, kw) {
			return Intent{
				Text: sentence,
				Tool: toolx.ToolDerivative,
				Args: map[string]any{"expression": expression},
			}
		}
	}
	for _, kw := range plotKeywords {
		if strings.Contains(lower, kw) {
			return Intent{
				Text: sentence,
				Tool: toolx.ToolGraph,
				Args: map[string]any{"expression": expression},
			}
		}
	}

	name := toolx.ToolEvaluate
	if !numericOnly.MatchString(expression) {
		// symbolic but not a derivative: prefer a remote CAS when registered
		switch {
		case available(toolx.ToolMathJS):
			name = toolx.ToolMathJS
		case available(toolx.ToolWolfram):
			return Intent{
				Text: sentence,
				Tool: toolx.ToolWolfram,
				Args: map[string]any{"query": sentence},
			}
		}
	}
	return Intent{
		Text: sentence,
		Tool: name,
		Args: map[string]any{"expression": expression},
	}
}

// extractExpression keeps the tokens of a sentence that look like math
// (anything with a digit or operator, or single-letter variables) and joins
// them without spaces.
func extractExpression(sentence string) string {
	var kept []string
	for _, word := range strings.Fields(sentence) {
		trimmed := strings.Trim(word, ".,;:?!")
		if trimmed == "" {
			continue
		}
		if expressionPattern.MatchString(trimmed) || len(trimmed) == 1 {
			kept = append(kept, trimmed)
			continue
		}
	}
	expr := strings.Join(kept, "")
	if !expressionPattern.MatchString(expr) {
		return ""
	}
	return expr
}

func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '?' || r == '!' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
