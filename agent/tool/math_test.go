package tool

import (
	"context"
	"math"
	"strings"
	"testing"
)

func evaluate(t *testing.T, expression string) float64 {
	t.Helper()
	out, err := EvaluateTool{}.Execute(context.Background(), map[string]any{"expression": expression})
	if err != nil {
		t.Fatalf("Execute(%q) error = %v", expression, err)
	}
	return out.(EvaluateOutput).Result
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		expression string
		want       float64
	}{
		{"2+2", 4},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2^10", 1024},
		{"2^3^2", 512}, // right-associative
		{"-2^2", -4},   // unary minus binds looser than ^
		{"-2^2+1", -3},
		{"2^-3", 0.125},
		{"2^-3*4", 0.5},
		{"-3 + 5", 2},
		{"-(2+3)", -5},
		{"2 * -3", -6},
		{"1.5 * 2", 3},
	}
	for _, c := range cases {
		if got := evaluate(t, c.expression); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("evaluate(%q) = %f, want %f", c.expression, got, c.want)
		}
	}
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		expression string
		wantSubstr string
	}{
		{"empty", "", "empty"},
		{"letters", "x + 1", "invalid characters"},
		{"unbalanced open", "(1 + 2", "unbalanced"},
		{"unbalanced close", "1 + 2)", "unbalanced"},
		{"division by zero", "1 / 0", "division by zero"},
		{"modulo by zero", "1 % 0", "modulo by zero"},
		{"dangling operator", "1 +", "operand"},
		{"double dot", "1..2", "number"},
	}
	for _, c := range cases {
		_, err := EvaluateTool{}.Execute(context.Background(), map[string]any{"expression": c.expression})
		if err == nil {
			t.Fatalf("%s: expected error for %q", c.name, c.expression)
		}
		if !strings.Contains(err.Error(), c.wantSubstr) {
			t.Fatalf("%s: error %q does not mention %q", c.name, err, c.wantSubstr)
		}
	}

	if _, err := (EvaluateTool{}).Execute(context.Background(), map[string]any{"expression": 7}); err == nil {
		t.Fatal("expected error for non-string expression")
	}
}
