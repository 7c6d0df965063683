package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMathJSToolEvaluates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var body struct {
			Expr string `json:"expr"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Expr != "sqrt(16)" {
			t.Errorf("unexpected expr %q", body.Expr)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "4"})
	}))
	defer srv.Close()

	tool, err := NewMathJSTool(MathJSConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewMathJSTool() error = %v", err)
	}

	out, err := tool.Execute(context.Background(), map[string]any{"expression": "sqrt(16)"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "4" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestMathJSToolBareStringResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("42\n"))
	}))
	defer srv.Close()

	tool, err := NewMathJSTool(MathJSConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewMathJSTool() error = %v", err)
	}
	out, err := tool.Execute(context.Background(), map[string]any{"expression": "6*7"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "42" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestMathJSToolUpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Undefined symbol q"})
	}))
	defer srv.Close()

	tool, err := NewMathJSTool(MathJSConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewMathJSTool() error = %v", err)
	}
	_, err = tool.Execute(context.Background(), map[string]any{"expression": "q"})
	if err == nil || !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestMathJSToolConfigValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewMathJSTool(MathJSConfig{BaseURL: "  "}); err == nil {
		t.Fatal("expected error for blank base url")
	}
	if _, err := NewMathJSTool(MathJSConfig{BaseURL: "::not-a-url"}); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}

func TestWolframToolQueries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("i"); got != "integrate x^2" {
			t.Errorf("unexpected query %q", got)
		}
		if got := r.URL.Query().Get("appid"); got != "APP-123" {
			t.Errorf("unexpected appid %q", got)
		}
		_, _ = w.Write([]byte("x^3/3 + constant\n"))
	}))
	defer srv.Close()

	tool, err := NewWolframTool(WolframConfig{BaseURL: srv.URL, AppID: "APP-123"})
	if err != nil {
		t.Fatalf("NewWolframTool() error = %v", err)
	}
	out, err := tool.Execute(context.Background(), map[string]any{"query": "integrate x^2"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out != "x^3/3 + constant" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestWolframToolRequiresAppID(t *testing.T) {
	t.Parallel()

	if _, err := NewWolframTool(WolframConfig{BaseURL: "http://example.com"}); err == nil {
		t.Fatal("expected error for missing app id")
	}
}
