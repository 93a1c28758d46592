package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Generation and evaluation request settings. Generation runs warm and
// long (full summaries); evaluation runs cool and bounded (a JSON
// scorecard).
const (
	generateTemperature = 0.7
	generateMaxTokens   = 8192
	evaluateTemperature = 0.3
	evaluateMaxTokens   = 4000

	// DefaultGenerateTimeout bounds generate and optimize calls.
	DefaultGenerateTimeout = 5 * time.Minute
	// DefaultEvaluateTimeout bounds evaluate calls. One value for every
	// caller, CLI and API alike.
	DefaultEvaluateTimeout = 2 * time.Minute
)

// Service is the gateway contract consumed by the CLI and API layers.
// *Gateway is the production implementation; tests substitute fakes.
type Service interface {
	Generate(ctx context.Context, dialogue, prompt, modelKey string) (*GenerateResult, error)
	Evaluate(ctx context.Context, generated, reference, modelKey string) (*Evaluation, error)
	Optimize(ctx context.Context, prompt string, eval *Evaluation, modelKey string) (*GenerateResult, error)
	Models() []Provider
}

// GenerateResult is the outcome of a generate or optimize call.
type GenerateResult struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Evaluation is the judge's scorecard for one generated summary.
// Scores are trusted as returned: the judge prompt asks for 0-100 but
// nothing clamps an out-of-range value.
type Evaluation struct {
	Completeness  int      `json:"completeness"`
	Detail        int      `json:"detail"`
	Thoroughness  int      `json:"thoroughness"`
	WordCountDiff int      `json:"word_count_diff"`
	Total         int      `json:"total"`
	Grade         string   `json:"grade"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Suggestions   []string `json:"suggestions"`
}

// Gateway routes generate/evaluate/optimize calls to the registered
// providers. It holds no mutable state beyond the shared HTTP client;
// construct one per process and pass it down.
type Gateway struct {
	providers       []Provider
	client          *chatClient
	logger          *slog.Logger
	generateTimeout time.Duration
	evaluateTimeout time.Duration
}

// GatewayOption configures a Gateway built by NewGateway.
type GatewayOption func(*Gateway)

// WithProviders replaces the default provider registry. Used by tests
// to point model keys at a local fake server.
func WithProviders(providers []Provider) GatewayOption {
	return func(g *Gateway) { g.providers = providers }
}

// WithGenerateTimeout overrides the generate/optimize deadline.
func WithGenerateTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.generateTimeout = d
		}
	}
}

// WithEvaluateTimeout overrides the evaluate deadline.
func WithEvaluateTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.evaluateTimeout = d
		}
	}
}

// NewGateway creates a gateway with the default provider registry.
func NewGateway(logger *slog.Logger, opts ...GatewayOption) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		providers:       DefaultProviders(),
		client:          newChatClient(logger),
		logger:          logger,
		generateTimeout: DefaultGenerateTimeout,
		evaluateTimeout: DefaultEvaluateTimeout,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Models returns the registered providers in registry order.
func (g *Gateway) Models() []Provider {
	out := make([]Provider, len(g.providers))
	copy(out, g.providers)
	return out
}

// Generate produces a meeting summary: the prompt rides as the system
// message, the transcript as the user message.
func (g *Gateway) Generate(ctx context.Context, dialogue, prompt, modelKey string) (*GenerateResult, error) {
	p, apiKey, err := resolve(g.providers, modelKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.generateTimeout)
	defer cancel()

	content, err := g.client.complete(ctx, p, apiKey, chatRequest{
		Messages: []Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: dialogue},
		},
		Temperature: generateTemperature,
		MaxTokens:   generateMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &GenerateResult{Content: content, Model: p.Model}, nil
}

// Evaluate asks the judge model to score a generated summary against a
// reference. The response is requested as a JSON object and parsed
// directly into the scorecard; a malformed reply is a protocol error.
func (g *Gateway) Evaluate(ctx context.Context, generated, reference, modelKey string) (*Evaluation, error) {
	p, apiKey, err := resolve(g.providers, modelKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.evaluateTimeout)
	defer cancel()

	content, err := g.client.complete(ctx, p, apiKey, chatRequest{
		Messages: []Message{
			{Role: "user", Content: judgePrompt(generated, reference)},
		},
		Temperature:    evaluateTemperature,
		MaxTokens:      evaluateMaxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	var eval Evaluation
	if err := json.Unmarshal([]byte(content), &eval); err != nil {
		return nil, protocolErrorf("judge reply is not valid JSON: %v", err)
	}
	return &eval, nil
}

// Optimize rewrites a prompt based on its evaluation. The result is
// free text (the new prompt), produced with generate settings.
func (g *Gateway) Optimize(ctx context.Context, prompt string, eval *Evaluation, modelKey string) (*GenerateResult, error) {
	p, apiKey, err := resolve(g.providers, modelKey)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.generateTimeout)
	defer cancel()

	content, err := g.client.complete(ctx, p, apiKey, chatRequest{
		Messages: []Message{
			{Role: "user", Content: optimizePrompt(prompt, eval)},
		},
		Temperature: generateTemperature,
		MaxTokens:   generateMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &GenerateResult{Content: content, Model: p.Model}, nil
}
