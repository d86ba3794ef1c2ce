// ABOUTME: OpenAI-compatible ContentGenerator using the official openai-go SDK.
// ABOUTME: Targets any chat-completions endpoint, including a local Ollama /v1 server.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const generatorSystemPrompt = `You are a neutral, factual AI journalist for the Collective Intelligence Network.
Your job is to transform raw update data into a structured, verified post.

STRICT RULES:
1. Use ONLY the information provided in the user message. Do NOT invent facts.
2. Do NOT add statistics, quotes, or details not present in the input.
3. If you are unsure about something, say so — do not guess.
4. Be concise, neutral, and professional.
5. Return ONLY valid JSON — no markdown fences, no extra text.`

const generatorUserPrompt = `Transform the following update into a structured post.

INPUT DATA:
- Domain: %s
- Headline: %s
- Content: %s
- Sources: %s

Return a JSON object with EXACTLY these fields:
{
  "title": "A clear, factual title (max 120 chars)",
  "summary": "A 2-3 sentence neutral summary using only the provided content",
  "content": "A comprehensive, detailed article covering the topic in depth, in Markdown. Use professional journalistic tone.",
  "key_points": ["Point 1", "Point 2", "Point 3"],
  "why_this_matters": "1-2 sentences explaining significance, grounded in the content",
  "sources": %s,
  "confidence_score": <integer 0-100 reflecting how complete the source data is>
}

Remember: Do NOT invent any facts not present in the input.`

// GeneratorConfig configures the OpenAI-compatible generator.
type GeneratorConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIGenerator implements ContentGenerator against a chat-completions
// API. Any upstream failure — unreachable endpoint, timeout, unparsable
// response — degrades to a fallback draft instead of an error.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIGenerator creates a generator from config. Pass nil logger for
// default.
func NewOpenAIGenerator(cfg GeneratorConfig, logger *slog.Logger) *OpenAIGenerator {
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
	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger.With("component", "generator"),
	}
}

// Generate asks the model to write a structured post grounded in the
// payload. Never returns an error: the fallback draft covers all upstream
// failure modes.
func (g *OpenAIGenerator) Generate(ctx context.Context, payload *UpdatePayload) (*Draft, error) {
	sources, err := json.Marshal(payload.Sources)
	if err != nil {
		sources = []byte("[]")
	}

	userPrompt := fmt.Sprintf(generatorUserPrompt,
		payload.Domain, payload.Headline, payload.Content, sources, sources)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(generatorSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		// Low temperature keeps the model close to the source data.
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		g.logger.Error("model call failed, using fallback draft", "error", err)
		return FallbackDraft(payload), nil
	}
	if len(resp.Choices) == 0 {
		g.logger.Error("model returned no choices, using fallback draft")
		return FallbackDraft(payload), nil
	}

	draft, ok := parseDraft(resp.Choices[0].Message.Content, payload)
	if !ok {
		g.logger.Warn("could not parse model response, using fallback draft")
		return FallbackDraft(payload), nil
	}

	g.logger.Info("draft generated",
		"title", truncate(draft.Title, 60),
		"confidence", draft.ConfidenceScore)
	return draft, nil
}

var (
	thinkBlockRe = regexp.MustCompile(`(?is)<think>.*?</think>`)
	codeFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	bareObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// extractJSON pulls a JSON object out of a model response. Models wrap
// output in <think> tags, markdown fences, or surrounding prose; each
// strategy is tried in turn.
func extractJSON(raw string) []byte {
	cleaned := strings.TrimSpace(thinkBlockRe.ReplaceAllString(raw, ""))

	if m := codeFenceRe.FindStringSubmatch(cleaned); m != nil {
		if json.Valid([]byte(m[1])) {
			return []byte(m[1])
		}
	}
	if m := bareObjectRe.FindString(cleaned); m != "" {
		if json.Valid([]byte(m)) {
			return []byte(m)
		}
	}
	if json.Valid([]byte(cleaned)) {
		return []byte(cleaned)
	}
	return nil
}

// parseDraft decodes the extracted JSON into a Draft, filling gaps from
// the payload. Returns false if no JSON object could be recovered.
func parseDraft(raw string, payload *UpdatePayload) (*Draft, bool) {
	data := extractJSON(raw)
	if data == nil {
		return nil, false
	}

	// confidence_score arrives as a float from some models.
	var decoded struct {
		Title           string   `json:"title"`
		Summary         string   `json:"summary"`
		Content         string   `json:"content"`
		KeyPoints       []string `json:"key_points"`
		WhyThisMatters  string   `json:"why_this_matters"`
		Sources         []string `json:"sources"`
		ConfidenceScore float64  `json:"confidence_score"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, false
	}

	draft := &Draft{
		Title:           decoded.Title,
		Summary:         decoded.Summary,
		Content:         decoded.Content,
		KeyPoints:       decoded.KeyPoints,
		WhyThisMatters:  decoded.WhyThisMatters,
		Sources:         decoded.Sources,
		ConfidenceScore: int(decoded.ConfidenceScore),
		Domain:          payload.Domain,
	}
	if draft.Title == "" {
		draft.Title = payload.Headline
	}
	if len(draft.Title) > 200 {
		draft.Title = draft.Title[:200]
	}
	if len(draft.Sources) == 0 {
		draft.Sources = payload.Sources
	}
	if draft.ConfidenceScore < 0 {
		draft.ConfidenceScore = 0
	}
	if draft.ConfidenceScore > 100 {
		draft.ConfidenceScore = 100
	}
	return draft, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
