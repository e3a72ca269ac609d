package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docai-platform/internal/config"
	"docai-platform/internal/logger"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

// TokenUsage is the token accounting of one completed LLM call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GeminiClient wraps the Gemini API with a circuit breaker and request
// pacing. One instance is shared across requests.
type GeminiClient struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	usageMu     sync.Mutex
	lastUsage   TokenUsage
}

type rateLimits struct {
	rpm int
	tpm int
}

func tierLimits(tier string) rateLimits {
	switch tier {
	case "tier1":
		return rateLimits{rpm: 1000, tpm: 1000000}
	case "tier2":
		return rateLimits{rpm: 2000, tpm: 4000000}
	default:
		return rateLimits{rpm: 10, tpm: 250000}
	}
}

func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := tierLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.rpm)*0.9/60.0), limits.rpm/10+1)

	return &GeminiClient{
		client:      client,
		model:       cfg.GeminiModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

func (gc *GeminiClient) generativeModel(systemPrompt string, temperature float32, maxTokens int) *genai.GenerativeModel {
	model := gc.client.GenerativeModel(gc.model)
	model.SetTemperature(temperature)
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	return model
}

// Complete runs a single non-streaming chat completion and returns the
// response text.
func (gc *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, maxTokens int) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", gc.model))

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.generativeModel(systemPrompt, temperature, maxTokens)
		return model.GenerateContent(ctx, genai.Text(userPrompt))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return "", fmt.Errorf("llm temporarily unavailable: %w", err)
		}
		return "", err
	}

	resp := result.(*genai.GenerateContentResponse)
	gc.recordUsage(usageFromResponse(resp))
	span.SetAttributes(attribute.Int("gemini.total_tokens", gc.LastUsage().TotalTokens))

	return responseText(resp), nil
}

// CompleteStream streams a chat completion, invoking onDelta for each text
// fragment, and returns the final token usage.
func (gc *GeminiClient) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, temperature float32, onDelta func(text string)) (TokenUsage, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.complete_stream")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", gc.model))

	var usage TokenUsage

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		return usage, err
	}

	model := gc.generativeModel(systemPrompt, temperature, 0)
	iter := model.GenerateContentStream(ctx, genai.Text(userPrompt))
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return usage, err
		}
		if text := responseText(resp); text != "" {
			onDelta(text)
		}
		if resp.UsageMetadata != nil {
			usage = usageFromResponse(resp)
		}
	}

	gc.recordUsage(usage)
	span.SetAttributes(attribute.Int("gemini.total_tokens", usage.TotalTokens))
	return usage, nil
}

// LastUsage returns the token usage of the most recent call.
func (gc *GeminiClient) LastUsage() TokenUsage {
	gc.usageMu.Lock()
	defer gc.usageMu.Unlock()
	return gc.lastUsage
}

func (gc *GeminiClient) recordUsage(usage TokenUsage) {
	gc.usageMu.Lock()
	defer gc.usageMu.Unlock()
	gc.lastUsage = usage
}

func usageFromResponse(resp *genai.GenerateContentResponse) TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return TokenUsage{}
	}
	return TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	out := ""
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
	}
	return out
}

// Close the underlying API client.
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
