package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cloudwego/eino/schema"
)

const ToolGraph = "plot.graph"

const desmosBaseURL = "https://www.desmos.com/calculator"

type GraphOutput struct {
	Expression string `json:"expression"`
	URL        string `json:"url"`
}

// GraphTool produces a shareable Desmos graph URL for an expression. The
// plot artifact itself lives outside the core; the reference is the result.
type GraphTool struct{}

func (GraphTool) Name() string { return ToolGraph }

func (GraphTool) Description() string {
	return "Generate a graph URL for a given expression."
}

func (GraphTool) Params() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"expression": {Type: schema.String, Desc: "Expression to graph", Required: true},
	}
}

func (GraphTool) MaxConcurrency() int { return 0 }

func (GraphTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	expression, ok := args["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("expression must be a string")
	}
	if expression == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	state := map[string]any{
		"expressions": map[string]any{
			"list": []map[string]string{{"latex": expression}},
		},
	}
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal graph state: %w", err)
	}

	return GraphOutput{
		Expression: expression,
		URL:        desmosBaseURL + "?state=" + url.QueryEscape(string(encoded)),
	}, nil
}
