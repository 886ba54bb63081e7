package gemini

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"testing"
	"time"

	"github.com/oljefondvakt/fundwatch/internal/config"
	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// fakeModels records the last call and replays canned responses.
type fakeModels struct {
	GenerateFn func(ctx context.Context) (*genai.GenerateContentResponse, error)
	Chunks     []*genai.GenerateContentResponse
	StreamErr  error

	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
	streamed     bool
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.lastModel, f.lastContents, f.lastConfig = model, contents, cfg
	return f.GenerateFn(ctx)
}

func (f *fakeModels) GenerateContentStream(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.lastModel, f.lastContents, f.lastConfig = model, contents, cfg
	f.streamed = true
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.Chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.StreamErr != nil {
			yield(nil, f.StreamErr)
		}
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		ShallowModel:    "gemini-2.5-flash",
		DeepModel:       "gemini-2.5-pro",
		ShallowTimeout:  120 * time.Second,
		DeepTimeout:     300 * time.Second,
		TopP:            1,
		MaxOutputTokens: 65535,
	}
}

func newTestGenerator(models modelsAPI) *Generator {
	return newGenerator(slog.New(slog.NewTextHandler(io.Discard, nil)), models, testConfig())
}

func TestGenerateBuffered(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{GenerateFn: func(context.Context) (*genai.GenerateContentResponse, error) {
		return textResponse(`[{"riskAssessment":{"category":"1","guidelines":["§4.e","3.d"]}}]`), nil
	}}
	g := newTestGenerator(fake)

	schema := map[string]any{"type": "array"}
	res, err := g.Generate(context.Background(), generation.Request{
		Parts:   []generation.Part{generation.PDFPart([]byte("%PDF")), generation.TextPart("Equinor ASA from Norway")},
		Schema:  schema,
		Profile: ShallowProfile(testConfig()),
	})

	require.NoError(t, err)
	assert.False(t, fake.streamed)
	assert.Equal(t, "gemini-2.5-flash", fake.lastModel)

	require.Len(t, fake.lastContents, 1)
	content := fake.lastContents[0]
	assert.Equal(t, "user", content.Role)
	require.Len(t, content.Parts, 2)
	require.NotNil(t, content.Parts[0].InlineData)
	assert.Equal(t, "application/pdf", content.Parts[0].InlineData.MIMEType)
	assert.Equal(t, "Equinor ASA from Norway", content.Parts[1].Text)

	cfg := fake.lastConfig
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	assert.Equal(t, schema, cfg.ResponseJsonSchema)
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0), *cfg.Temperature)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int32(0), *cfg.Seed)
	assert.Equal(t, int32(65535), cfg.MaxOutputTokens)

	entries := res.Decoded.([]any)
	guidelines := entries[0].(map[string]any)["riskAssessment"].(map[string]any)["guidelines"].([]any)
	assert.Equal(t, []any{"4.e", "3.d"}, guidelines)
	assert.Contains(t, res.Raw, "§4.e", "raw text is kept verbatim")
}

func TestGenerateStreamed(t *testing.T) {
	t.Parallel()

	fake := &fakeModels{Chunks: []*genai.GenerateContentResponse{
		textResponse(`{"summary":`),
		textResponse(`"ok","guidelines":["§1.a"]}`),
	}}
	g := newTestGenerator(fake)

	res, err := g.Generate(context.Background(), generation.Request{
		Parts:   []generation.Part{generation.TextPart("deep")},
		Profile: DeepProfile(testConfig()),
	})

	require.NoError(t, err)
	assert.True(t, fake.streamed)
	assert.Equal(t, "gemini-2.5-pro", fake.lastModel)
	assert.Nil(t, fake.lastConfig.ResponseJsonSchema)
	assert.Equal(t, map[string]any{"summary": "ok", "guidelines": []any{"1.a"}}, res.Decoded)
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fake    *fakeModels
		stream  bool
		wantErr error
	}{
		{
			name: "api error is transient and redacted",
			fake: &fakeModels{GenerateFn: func(context.Context) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("POST https://x/models?key=secretsecret: 503")
			}},
			wantErr: generation.ErrTransientFailure,
		},
		{
			name: "malformed json",
			fake: &fakeModels{GenerateFn: func(context.Context) (*genai.GenerateContentResponse, error) {
				return textResponse(`[{"a":`), nil
			}},
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name: "empty reply",
			fake: &fakeModels{GenerateFn: func(context.Context) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{}, nil
			}},
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name: "safety finish reason",
			fake: &fakeModels{GenerateFn: func(context.Context) (*genai.GenerateContentResponse, error) {
				resp := textResponse(`[]`)
				resp.Candidates[0].FinishReason = genai.FinishReasonSafety
				return resp, nil
			}},
			wantErr: generation.ErrContentBlocked,
		},
		{
			name: "prompt blocked",
			fake: &fakeModels{GenerateFn: func(context.Context) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{
					PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
						BlockReason: genai.BlockedReasonProhibitedContent,
					},
				}, nil
			}},
			wantErr: generation.ErrContentBlocked,
		},
		{
			name:    "stream error mid way",
			fake:    &fakeModels{Chunks: []*genai.GenerateContentResponse{textResponse(`[`)}, StreamErr: errors.New("reset")},
			stream:  true,
			wantErr: generation.ErrTransientFailure,
		},
		{
			name: "deadline passes through",
			fake: &fakeModels{GenerateFn: func(context.Context) (*genai.GenerateContentResponse, error) {
				return nil, context.DeadlineExceeded
			}},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			profile := ShallowProfile(testConfig())
			profile.Stream = tt.stream

			_, err := newTestGenerator(tt.fake).Generate(context.Background(), generation.Request{
				Parts:   []generation.Part{generation.TextPart("x")},
				Profile: profile,
			})

			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotContains(t, err.Error(), "secretsecret")
		})
	}
}

func TestGenerateRequiresModel(t *testing.T) {
	t.Parallel()

	_, err := newTestGenerator(&fakeModels{}).Generate(context.Background(), generation.Request{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestNewGeneratorValidation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewGenerator(context.Background(), nil, testConfig())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Backend = "gemini"
	_, err = NewGenerator(context.Background(), logger, cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	cfg.Backend = "vertex"
	_, err = NewGenerator(context.Background(), logger, cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	cfg.Backend = "openai"
	_, err = NewGenerator(context.Background(), logger, cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestCleanGuidelines(t *testing.T) {
	t.Parallel()

	in := []any{
		map[string]any{
			"riskAssessment": map[string]any{"guidelines": []any{"§4.e", 7}},
			"nested":         map[string]any{"deep": map[string]any{"guidelines": []any{"§§2.b"}}},
		},
		"untouched §",
	}

	out := CleanGuidelines(in).([]any)

	first := out[0].(map[string]any)
	assert.Equal(t, []any{"4.e", 7}, first["riskAssessment"].(map[string]any)["guidelines"])
	assert.Equal(t, []any{"2.b"}, first["nested"].(map[string]any)["deep"].(map[string]any)["guidelines"])
	assert.Equal(t, "untouched §", out[1])
}

func TestProfiles(t *testing.T) {
	t.Parallel()

	shallow := ShallowProfile(testConfig())
	deep := DeepProfile(testConfig())

	assert.Equal(t, generation.ProfileShallow, shallow.Name)
	assert.False(t, shallow.Stream)
	assert.Equal(t, 120*time.Second, shallow.Timeout)
	assert.Equal(t, generation.ProfileDeep, deep.Name)
	assert.True(t, deep.Stream)
	assert.Equal(t, 300*time.Second, deep.Timeout)
}
