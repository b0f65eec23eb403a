package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/maelis/hostpilot/internal/store"
)

// Generation parameters tuned for short, warm guest replies. Length is
// the only knob exposed through configuration.
const (
	replyTemperature      float32 = 0.7
	replyTopP             float32 = 0.9
	replyFrequencyPenalty float32 = 0.3
	replyPresencePenalty  float32 = 0.3
)

// Generator produces one reply per call. A call either succeeds with a
// non-empty reply or fails; there is no retry and no fabricated fallback
// text.
type Generator interface {
	GenerateReply(ctx context.Context, message store.Message, property *store.Property, booking BookingContext, history []store.Message, cfg Config) (string, error)
}

type sdkGenerator struct {
	genaiClient *genai.Client
	log         *slog.Logger
	prompts     *PromptBuilder
	modelName   string
}

// NewGenerator creates a Gemini-backed generator. apiKey must be set;
// callers wanting demo behavior use NewMockGenerator instead.
func NewGenerator(ctx context.Context, apiKey, modelName string, log *slog.Logger) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("AI API key is required")
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "ai_generator")
	logger.Info("AI generator initialized successfully", "model", modelName)
	return &sdkGenerator{
		genaiClient: genaiClient,
		log:         logger,
		prompts:     NewPromptBuilder(log),
		modelName:   modelName,
	}, nil
}

// GenerateReply builds the situational snapshot and prompt, then makes a
// single model call. Transient backend failures surface to the caller
// wrapped in ErrGeneration; the caller owns the retry policy, if any.
func (g *sdkGenerator) GenerateReply(ctx context.Context, message store.Message, property *store.Property, booking BookingContext, history []store.Message, cfg Config) (string, error) {
	g.log.DebugContext(ctx, "Generating reply",
		"property_id", property.ID, "history_count", len(history))

	response := BuildContext(property, booking, history, time.Now())

	temperature := replyTemperature
	topP := replyTopP
	frequencyPenalty := replyFrequencyPenalty
	presencePenalty := replyPresencePenalty
	contentConfig := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		TopP:             &topP,
		FrequencyPenalty: &frequencyPenalty,
		PresencePenalty:  &presencePenalty,
		MaxOutputTokens:  int32(cfg.MaxResponseLength),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: g.prompts.BuildSystemPrompt(response, cfg)}},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(g.prompts.BuildUserPrompt(message), genai.RoleUser),
	}

	resp, err := g.genaiClient.Models.GenerateContent(ctx, g.modelName, contents, contentConfig)
	if err != nil {
		g.log.ErrorContext(ctx, "AI reply generation failed", "error", err)
		return "", fmt.Errorf("%w: model call failed: %v", ErrGeneration, err)
	}

	return g.extractText(ctx, resp)
}

func (g *sdkGenerator) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		g.log.ErrorContext(ctx, "AI request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("%w: blocked by safety filter: %s", ErrGeneration, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		g.log.WarnContext(ctx, "AI response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("%w: model returned no content, finish reason: %s", ErrGeneration, finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty text", ErrGeneration)
	}
	return text, nil
}
