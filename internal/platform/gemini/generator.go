package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/oljefondvakt/fundwatch/internal/config"
	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/oljefondvakt/fundwatch/internal/redact"
	"google.golang.org/genai"
)

// modelsAPI is the subset of *genai.Models the generator uses.
type modelsAPI interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
	GenerateContentStream(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) iter.Seq2[*genai.GenerateContentResponse, error]
}

// maxRawInError bounds how much of a bad reply is echoed into errors.
const maxRawInError = 2000

// Generator implements generation.Generator using Gemini models.
type Generator struct {
	logger *slog.Logger
	models modelsAPI

	temperature     float32
	topP            float32
	seed            int32
	maxOutputTokens int32
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Generator with a genai client for the configured backend.
func NewGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	clientConfig := &genai.ClientConfig{}
	switch cfg.Backend {
	case "vertex":
		if cfg.Project == "" {
			return nil, fmt.Errorf("%w: vertex backend needs a project", generation.ErrInvalidConfig)
		}
		clientConfig.Backend = genai.BackendVertexAI
		clientConfig.Project = cfg.Project
		clientConfig.Location = cfg.Location
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
		}
		clientConfig.Backend = genai.BackendGeminiAPI
		clientConfig.APIKey = cfg.APIKey
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", generation.ErrInvalidConfig, cfg.Backend)
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create genai client: %s",
			generation.ErrInvalidConfig, redact.Error(err))
	}

	logger.InfoContext(ctx, "gemini generator initialized",
		"backend", cfg.Backend,
		"location", cfg.Location)

	return newGenerator(logger, client.Models, cfg), nil
}

func newGenerator(logger *slog.Logger, models modelsAPI, cfg config.LLMConfig) *Generator {
	return &Generator{
		logger:          logger.With("component", "gemini_generator"),
		models:          models,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
		seed:            cfg.Seed,
		maxOutputTokens: cfg.MaxOutputTokens,
	}
}

// Generate performs one call with req.Profile's model and mode. It does not
// retry and does not impose the profile timeout itself; callers wrap it with
// generation.CallWithTimeout.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	if req.Profile.Model == "" {
		return nil, fmt.Errorf("%w: profile %q has no model", generation.ErrInvalidConfig, req.Profile.Name)
	}

	contents := []*genai.Content{genai.NewContentFromParts(toParts(req.Parts), genai.RoleUser)}
	genConfig := g.contentConfig(req.Schema)

	g.logger.DebugContext(ctx, "calling model",
		"profile", req.Profile.Name,
		"model", req.Profile.Model,
		"stream", req.Profile.Stream,
		"parts", len(req.Parts))

	var (
		raw string
		err error
	)
	if req.Profile.Stream {
		raw, err = g.stream(ctx, req.Profile.Model, contents, genConfig)
	} else {
		raw, err = g.buffered(ctx, req.Profile.Model, contents, genConfig)
	}
	if err != nil {
		return nil, err
	}

	decoded, err := generation.DecodeJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (response: %s)", err, truncate(raw))
	}

	return &generation.Result{Raw: raw, Decoded: CleanGuidelines(decoded)}, nil
}

func (g *Generator) buffered(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (string, error) {
	resp, err := g.models.GenerateContent(ctx, model, contents, genConfig)
	if err != nil {
		return "", mapAPIError(ctx, err)
	}
	if err := checkBlocked(resp); err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (g *Generator) stream(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (string, error) {
	var sb strings.Builder
	chunks := 0
	for resp, err := range g.models.GenerateContentStream(ctx, model, contents, genConfig) {
		if err != nil {
			return "", mapAPIError(ctx, err)
		}
		if err := checkBlocked(resp); err != nil {
			return "", err
		}
		sb.WriteString(resp.Text())
		chunks++
	}
	g.logger.DebugContext(ctx, "stream finished", "chunks", chunks, "bytes", sb.Len())
	return sb.String(), nil
}

func (g *Generator) contentConfig(schema map[string]any) *genai.GenerateContentConfig {
	c := &genai.GenerateContentConfig{
		Temperature:      float32Ptr(g.temperature),
		TopP:             float32Ptr(g.topP),
		Seed:             int32Ptr(g.seed),
		MaxOutputTokens:  g.maxOutputTokens,
		ResponseMIMEType: "application/json",
	}
	if schema != nil {
		c.ResponseJsonSchema = schema
	}
	return c
}

func toParts(parts []generation.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			out = append(out, genai.NewPartFromBytes(p.Data, p.MIMEType))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return out
}

// checkBlocked reports safety blocks, which arrive as successful responses.
func checkBlocked(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" &&
		resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		return fmt.Errorf("%w: prompt blocked: %s", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return fmt.Errorf("%w: response blocked by safety filters", generation.ErrContentBlocked)
	}
	return nil
}

// mapAPIError keeps context errors recognizable and marks everything else
// as retryable.
func mapAPIError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: model call failed: %s", generation.ErrTransientFailure, redact.Error(err))
}

func truncate(s string) string {
	if len(s) <= maxRawInError {
		return s
	}
	return s[:maxRawInError] + "..."
}

func float32Ptr(v float32) *float32 { return &v }

func int32Ptr(v int32) *int32 { return &v }
