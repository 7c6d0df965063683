package tool

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
)

func TestGraphToolBuildsDesmosURL(t *testing.T) {
	t.Parallel()

	out, err := GraphTool{}.Execute(context.Background(), map[string]any{"expression": "y=x^2"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	graph := out.(GraphOutput)
	if graph.Expression != "y=x^2" {
		t.Fatalf("unexpected expression: %s", graph.Expression)
	}
	if !strings.HasPrefix(graph.URL, desmosBaseURL+"?state=") {
		t.Fatalf("unexpected url: %s", graph.URL)
	}

	encoded := strings.TrimPrefix(graph.URL, desmosBaseURL+"?state=")
	raw, err := url.QueryUnescape(encoded)
	if err != nil {
		t.Fatalf("QueryUnescape() error = %v", err)
	}
	var state struct {
		Expressions struct {
			List []struct {
				Latex string `json:"latex"`
			} `json:"list"`
		} `json:"expressions"`
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.Fatalf("state is not valid json: %v", err)
	}
	if len(state.Expressions.List) != 1 || state.Expressions.List[0].Latex != "y=x^2" {
		t.Fatalf("unexpected state: %s", raw)
	}
}

func TestGraphToolRejectsEmptyExpression(t *testing.T) {
	t.Parallel()

	if _, err := (GraphTool{}).Execute(context.Background(), map[string]any{"expression": ""}); err == nil {
		t.Fatal("expected error for empty expression")
	}
}
