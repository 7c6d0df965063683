package tool

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

const ToolEvaluate = "math.evaluate"

// Accepts digits, whitespace, decimal points, operators, and parentheses.
var numericExpressionPattern = regexp.MustCompile(`^[\d\s\+\-\*/%\^\(\)\.]+$`)

type EvaluateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// EvaluateTool computes numeric arithmetic expressions locally.
type EvaluateTool struct{}

func (EvaluateTool) Name() string { return ToolEvaluate }

func (EvaluateTool) Description() string {
	return "Evaluate a numeric arithmetic expression."
}

func (EvaluateTool) Params() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"expression": {Type: schema.String, Desc: "Expression to evaluate", Required: true},
	}
}

func (EvaluateTool) MaxConcurrency() int { return 0 }

func (EvaluateTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	raw, ok := args["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("expression must be a string")
	}
	expression := strings.TrimSpace(raw)
	if err := checkExpression(expression); err != nil {
		return nil, err
	}
	result, err := evalExpression(expression)
	if err != nil {
		return nil, err
	}
	return EvaluateOutput{Expression: expression, Result: result}, nil
}

func checkExpression(expression string) error {
	if expression == "" {
		return fmt.Errorf("expression is empty")
	}
	if !numericExpressionPattern.MatchString(expression) {
		return fmt.Errorf("expression contains invalid characters")
	}
	depth := 0
	for _, ch := range expression {
		if ch == '(' {
			depth++
		}
		if ch == ')' {
			depth--
			if depth < 0 {
				return fmt.Errorf("expression has unbalanced parentheses")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("expression has unbalanced parentheses")
	}
	return nil
}

// evalExpression parses with precedence climbing: ^ binds tightest and is
// right-associative, then * / %, then + -.
func evalExpression(expression string) (float64, error) {
	ev := &evaluator{src: expression}
	value, err := ev.expr(0)
	if err != nil {
		return 0, err
	}
	ev.ws()
	if ev.pos < len(ev.src) {
		return 0, fmt.Errorf("unexpected token at position %d", ev.pos)
	}
	return value, nil
}

type evaluator struct {
	src string
	pos int
}

var binaryPrec = map[byte]int{'+': 1, '-': 1, '*': 2, '/': 2, '%': 2, '^': 3}

func (ev *evaluator) expr(minPrec int) (float64, error) {
	left, err := ev.operand()
	if err != nil {
		return 0, err
	}

	for {
		ev.ws()
		if ev.pos >= len(ev.src) {
			return left, nil
		}
		op := ev.src[ev.pos]
		prec, isOp := binaryPrec[op]
		if !isOp || prec < minPrec {
			return left, nil
		}
		ev.pos++

		// right-associative exponent keeps the same precedence on recursion
		next := prec + 1
		if op == '^' {
			next = prec
		}
		right, err := ev.expr(next)
		if err != nil {
			return 0, err
		}

		switch op {
		case '+':
			left += right
		case '-':
			left -= right
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		case '^':
			left = math.Pow(left, right)
		}
	}
}

func (ev *evaluator) operand() (float64, error) {
	ev.ws()
	if ev.pos >= len(ev.src) {
		return 0, fmt.Errorf("expected operand at position %d", ev.pos)
	}

	switch ev.src[ev.pos] {
	case '+':
		ev.pos++
		return ev.expr(binaryPrec['^'])
	case '-':
		// unary minus binds looser than exponentiation, so -2^2 is -(2^2)
		ev.pos++
		v, err := ev.expr(binaryPrec['^'])
		return -v, err
	case '(':
		ev.pos++
		v, err := ev.expr(0)
		if err != nil {
			return 0, err
		}
		ev.ws()
		if ev.pos >= len(ev.src) || ev.src[ev.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis at position %d", ev.pos)
		}
		ev.pos++
		return v, nil
	}
	return ev.number()
}

func (ev *evaluator) number() (float64, error) {
	start := ev.pos
	sawDigit, sawDot := false, false
	for ev.pos < len(ev.src) {
		ch := ev.src[ev.pos]
		if ch >= '0' && ch <= '9' {
			sawDigit = true
			ev.pos++
			continue
		}
		if ch == '.' {
			if sawDot {
				return 0, fmt.Errorf("invalid number format at position %d", ev.pos)
			}
			sawDot = true
			ev.pos++
			continue
		}
		break
	}
	if !sawDigit {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	v, err := strconv.ParseFloat(ev.src[start:ev.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", ev.src[start:ev.pos], err)
	}
	return v, nil
}

func (ev *evaluator) ws() {
	for ev.pos < len(ev.src) && ev.src[ev.pos] == ' ' {
		ev.pos++
	}
}
