package tool

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

const ToolDerivative = "math.derivative"

type DerivativeOutput struct {
	Expression string `json:"expression"`
	Variable   string `json:"variable"`
	Derivative string `json:"derivative"`
}

// DerivativeTool differentiates polynomial expressions symbolically using
// the power rule. It handles sums of terms of the form c*v^n.
type DerivativeTool struct{}

func (DerivativeTool) Name() string { return ToolDerivative }

func (DerivativeTool) Description() string {
	return "Differentiate a polynomial expression with respect to a variable."
}

func (DerivativeTool) Params() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"expression": {Type: schema.String, Desc: "Polynomial expression, e.g. x^2+3x", Required: true},
		"variable":   {Type: schema.String, Desc: "Variable to differentiate by (default x)"},
	}
}

func (DerivativeTool) MaxConcurrency() int { return 0 }

func (DerivativeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	raw, ok := args["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("expression must be a string")
	}
	variable := "x"
	if v, ok := args["variable"].(string); ok && strings.TrimSpace(v) != "" {
		variable = strings.TrimSpace(v)
	}

	expression := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	if expression == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	derivative, err := differentiate(expression, variable)
	if err != nil {
		return nil, err
	}
	return DerivativeOutput{Expression: expression, Variable: variable, Derivative: derivative}, nil
}

type polyTerm struct {
	coeff float64
	power int
}

// differentiate applies the power rule term by term: d/dv c*v^n = c*n*v^(n-1).
func differentiate(expression, variable string) (string, error) {
	terms, err := parsePolynomial(expression, variable)
	if err != nil {
		return "", err
	}

	var out []polyTerm
	for _, t := range terms {
		if t.power == 0 {
			continue
		}
		out = append(out, polyTerm{coeff: t.coeff * float64(t.power), power: t.power - 1})
	}
	if len(out) == 0 {
		return "0", nil
	}
	return formatPolynomial(out, variable), nil
}

func parsePolynomial(expression, variable string) ([]polyTerm, error) {
	var terms []polyTerm
	rest := expression
	sign := 1.0
	if strings.HasPrefix(rest, "-") {
		sign = -1.0
		rest = rest[1:]
	} else if strings.HasPrefix(rest, "+") {
		rest = rest[1:]
	}

	for rest != "" {
		cut := len(rest)
		for i, ch := range rest {
			if i > 0 && (ch == '+' || ch == '-') && rest[i-1] != '^' {
				cut = i
				break
			}
		}

		term, err := parseTerm(rest[:cut], variable)
		if err != nil {
			return nil, err
		}
		term.coeff *= sign
		terms = append(terms, term)

		if cut == len(rest) {
			break
		}
		if rest[cut] == '-' {
			sign = -1.0
		} else {
			sign = 1.0
		}
		rest = rest[cut+1:]
		if rest == "" {
			return nil, fmt.Errorf("dangling operator in %q", expression)
		}
	}
	return terms, nil
}

func parseTerm(term, variable string) (polyTerm, error) {
	pattern := regexp.MustCompile(`^(\d+(?:\.\d+)?)?\*?` + regexp.QuoteMeta(variable) + `(?:\^(-?\d+))?$`)

	if m := pattern.FindStringSubmatch(term); m != nil {
		coeff := 1.0
		if m[1] != "" {
			c, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				return polyTerm{}, fmt.Errorf("invalid coefficient in term %q", term)
			}
			coeff = c
		}
		power := 1
		if m[2] != "" {
			p, err := strconv.Atoi(m[2])
			if err != nil {
				return polyTerm{}, fmt.Errorf("invalid exponent in term %q", term)
			}
			power = p
		}
		return polyTerm{coeff: coeff, power: power}, nil
	}

	if c, err := strconv.ParseFloat(term, 64); err == nil {
		return polyTerm{coeff: c, power: 0}, nil
	}
	return polyTerm{}, fmt.Errorf("term %q is not a polynomial in %s", term, variable)
}

func formatPolynomial(terms []polyTerm, variable string) string {
	var b strings.Builder
	for i, t := range terms {
		if i == 0 {
			if t.coeff < 0 {
				b.WriteString("-")
			}
		} else {
			if t.coeff < 0 {
				b.WriteString(" - ")
			} else {
				b.WriteString(" + ")
			}
		}
		b.WriteString(formatTerm(t, variable))
	}
	return b.String()
}

func formatTerm(t polyTerm, variable string) string {
	coeff := t.coeff
	if coeff < 0 {
		coeff = -coeff
	}
	c := strconv.FormatFloat(coeff, 'f', -1, 64)

	switch {
	case t.power == 0:
		return c
	case t.power == 1:
		if c == "1" {
			return variable
		}
		return c + variable
	default:
		base := variable + "^" + strconv.Itoa(t.power)
		if c == "1" {
			return base
		}
		return c + base
	}
}
