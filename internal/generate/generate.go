// Package generate turns a natural-language app request into a contract by
// calling the Gemini API. The model's output is never trusted: whatever comes
// back is decoded and pushed through the same validation gate as any other
// contract.
package generate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ndjc/forge/internal/contract"
	"github.com/ndjc/forge/internal/retry"
)

// DefaultModel is used when the request does not name one.
const DefaultModel = "gemini-2.5-flash"

// Request describes what the user wants built.
type Request struct {
	RunID       string
	Template    string
	AppName     string
	PackageID   string
	Description string
	Locales     []string
	Model       string
}

// Generator produces a contract for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (*contract.Contract, error)
}

// Gemini is the production Generator.
type Gemini struct {
	client *genai.Client
	policy retry.Policy
	log    *zap.Logger
}

// NewGemini builds a generator against the Gemini API backend.
func NewGemini(ctx context.Context, apiKey string, log *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generate: API key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: create client: %w", err)
	}
	return &Gemini{client: client, policy: retry.DefaultPolicy, log: log}, nil
}

// Generate calls the model and decodes its JSON reply into a contract.
// Transient API failures are retried with backoff; a reply that is not valid
// contract JSON is permanent.
func (g *Gemini) Generate(ctx context.Context, req Request) (*contract.Contract, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	prompt := BuildPrompt(req)
	g.log.Info("requesting contract",
		zap.String("runId", req.RunID),
		zap.String("model", model),
		zap.String("template", req.Template))

	var ct *contract.Contract
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			return fmt.Errorf("generate: model call: %w", err)
		}
		text := result.Text()
		if text == "" {
			return fmt.Errorf("generate: empty model reply")
		}
		decoded, err := contract.Decode(strings.NewReader(StripCodeFences(text)))
		if err != nil {
			return retry.Permanent(fmt.Errorf("generate: model reply is not a contract: %w", err))
		}
		ct = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The caller's identity fields win over whatever the model chose.
	ct.Metadata.RunID = req.RunID
	ct.Metadata.Template = req.Template
	if req.PackageID != "" {
		ct.Metadata.PackageID = req.PackageID
	}
	if req.AppName != "" {
		ct.Metadata.AppName = req.AppName
	}
	return ct, nil
}

// StripCodeFences removes a surrounding markdown code fence, which models add
// even when asked for raw JSON.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
