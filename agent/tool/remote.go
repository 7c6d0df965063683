package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

const (
	ToolMathJS  = "mathjs.evaluate"
	ToolWolfram = "wolfram.query"

	maxRemoteResponseBytes = 1 << 20
)

type MathJSConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.mathjs.org/v4/"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// MathJSTool evaluates expressions through the MathJS HTTP API. The API is
// rate limited, so calls are single-flight.
type MathJSTool struct {
	baseURL    string
	httpClient *http.Client
}

func NewMathJSTool(cfg MathJSConfig) (*MathJSTool, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("mathjs base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid mathjs base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MathJSTool{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (m *MathJSTool) Name() string { return ToolMathJS }

func (m *MathJSTool) Description() string {
	return "Evaluate a math expression using the MathJS API."
}

func (m *MathJSTool) Params() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"expression": {Type: schema.String, Desc: "Expression to evaluate", Required: true},
	}
}

func (m *MathJSTool) MaxConcurrency() int { return 1 }

func (m *MathJSTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	expression, ok := args["expression"].(string)
	if !ok {
		return nil, fmt.Errorf("expression must be a string")
	}

	body, err := json.Marshal(map[string]string{"expr": expression})
	if err != nil {
		return nil, fmt.Errorf("marshal mathjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build mathjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute mathjs request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read mathjs response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mathjs http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Result string `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// v4 may answer with a bare string result
		return strings.TrimSpace(string(raw)), nil
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("mathjs: %s", parsed.Error)
	}
	return parsed.Result, nil
}

type WolframConfig struct {
	BaseURL string        `envconfig:"BASE_URL" split_words:"true" default:"http://api.wolframalpha.com/v1/result"`
	AppID   string        `envconfig:"APP_ID" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// WolframTool sends a query to the WolframAlpha short answers API.
// Single-flight for the same reason as MathJS.
type WolframTool struct {
	baseURL    string
	appID      string
	httpClient *http.Client
}

func NewWolframTool(cfg WolframConfig) (*WolframTool, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("wolfram base url is required")
	}
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		return nil, fmt.Errorf("wolfram app id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WolframTool{
		baseURL:    baseURL,
		appID:      appID,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (w *WolframTool) Name() string { return ToolWolfram }

func (w *WolframTool) Description() string {
	return "Query WolframAlpha for a short math answer."
}

func (w *WolframTool) Params() map[string]*schema.ParameterInfo {
	return map[string]*schema.ParameterInfo{
		"query": {Type: schema.String, Desc: "Question or expression to send", Required: true},
	}
}

func (w *WolframTool) MaxConcurrency() int { return 1 }

func (w *WolframTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query, ok := args["query"].(string)
	if !ok {
		return nil, fmt.Errorf("query must be a string")
	}

	params := url.Values{}
	params.Set("i", query)
	params.Set("appid", w.appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build wolfram request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute wolfram request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read wolfram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wolfram http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return strings.TrimSpace(string(raw)), nil
}
