// ABOUTME: Optional grounding verifier that cross-checks a draft against its source payload.
// ABOUTME: Config-gated; when disabled the pipeline skips the stage with identical semantics otherwise.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const verifierSystemPrompt = `You are a strict fact-checker for the Collective Intelligence Network.
Your job is to verify that a generated post contains ONLY information supported by the original source data.
You must be conservative — if something cannot be confirmed from the source, flag it.`

const verifierUserPrompt = `Compare the GENERATED POST against the ORIGINAL SOURCE DATA.

ORIGINAL SOURCE DATA:
- Headline: %s
- Content: %s
- Sources: %s

GENERATED POST:
%s

Answer with a JSON object:
{
  "verified": true or false,
  "confidence_score": <integer 0-100>,
  "issues": ["list of invented or unsupported claims, empty if none"],
  "verdict": "A one-sentence summary of your finding"
}

Rules:
- Set verified=false if ANY claim in the post cannot be traced to the source data.
- Set verified=true only if all key claims are supported.
- Be strict but fair.`

// Verifier cross-checks a draft against the payload it was generated from.
// A negative verdict is a terminal rejection for the job.
type Verifier interface {
	Verify(ctx context.Context, draft *Draft, payload *UpdatePayload) (verified bool, verdict string, err error)
}

// LLMVerifier implements Verifier with a chat-completions fact-check call.
type LLMVerifier struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewLLMVerifier creates a verifier sharing the generator's endpoint config.
func NewLLMVerifier(cfg GeneratorConfig, logger *slog.Logger) *LLMVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &LLMVerifier{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger.With("component", "verifier"),
	}
}

// Verify asks the model whether every claim in the draft traces back to the
// payload.
func (v *LLMVerifier) Verify(ctx context.Context, draft *Draft, payload *UpdatePayload) (bool, string, error) {
	draftJSON, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return false, "", fmt.Errorf("encoding draft: %w", err)
	}
	sources, err := json.Marshal(payload.Sources)
	if err != nil {
		sources = []byte("[]")
	}

	userPrompt := fmt.Sprintf(verifierUserPrompt,
		payload.Headline, payload.Content, sources, draftJSON)

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(v.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(verifierSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.0),
	})
	if err != nil {
		return false, "", fmt.Errorf("verifier model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return false, "", fmt.Errorf("verifier model returned no choices")
	}

	data := extractJSON(resp.Choices[0].Message.Content)
	if data == nil {
		return false, "", fmt.Errorf("verifier response was not valid JSON")
	}

	var decoded struct {
		Verified bool     `json:"verified"`
		Issues   []string `json:"issues"`
		Verdict  string   `json:"verdict"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return false, "", fmt.Errorf("decoding verifier response: %w", err)
	}

	verdict := decoded.Verdict
	if !decoded.Verified && len(decoded.Issues) > 0 {
		verdict = fmt.Sprintf("%s (issues: %v)", verdict, decoded.Issues)
	}
	v.logger.Info("draft verified", "verified", decoded.Verified, "verdict", truncate(verdict, 120))
	return decoded.Verified, verdict, nil
}
