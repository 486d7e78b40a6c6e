package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paygenio/paygen/internal/catalog"
	"github.com/paygenio/paygen/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textGeneratorFunc func(ctx context.Context, template string, input json.RawMessage) (string, error)

func (f textGeneratorFunc) Generate(ctx context.Context, template string, input json.RawMessage) (string, error) {
	return f(ctx, template, input)
}

type imageGeneratorFunc func(ctx context.Context, model, prompt string) (json.RawMessage, error)

func (f imageGeneratorFunc) Generate(ctx context.Context, model, prompt string) (json.RawMessage, error) {
	return f(ctx, model, prompt)
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load("testdata/catalog.yaml")
	require.NoError(t, err)
	return cat
}

func newTestDispatcher(cat *catalog.Catalog, text TextGenerator, image ImageGenerator, cfg *Config) *Dispatcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg == nil {
		cfg = &Config{}
	}
	return NewDispatcher(cat, text, image, cfg, logger)
}

func textJob(input string) *domain.Job {
	return &domain.Job{
		PublicID:   "11111111-2222-3333-4444-555555555555",
		ServiceKey: "summarize",
		Input:      json.RawMessage(input),
	}
}

func imageJob(input string) *domain.Job {
	return &domain.Job{
		PublicID:   "11111111-2222-3333-4444-555555555555",
		ServiceKey: "illustration",
		Input:      json.RawMessage(input),
	}
}

func TestDispatcher_Dispatch_Text(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name      string
		raw       string
		genErr    error
		wantErrIs error
		wantOut   string
	}{
		{
			name:    "well-formed object passes through",
			raw:     `{"summary": "two sentences"}`,
			wantOut: `{"summary": "two sentences"}`,
		},
		{
			name:      "concatenated objects rejected",
			raw:       `{"a":1}{"b":2}`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "trailing garbage rejected",
			raw:       `{"a":1} oops`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "bare string rejected",
			raw:       `"just text"`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "array rejected",
			raw:       `[1,2,3]`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "not json rejected",
			raw:       `the model apologizes`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "provider failure classified",
			genErr:    fmt.Errorf("upstream 500"),
			wantErrIs: domain.ErrProviderFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := textGeneratorFunc(func(ctx context.Context, template string, input json.RawMessage) (string, error) {
				assert.NotEmpty(t, template)
				return tt.raw, tt.genErr
			})

			d := newTestDispatcher(cat, text, nil, nil)

			out, err := d.Dispatch(context.Background(), textJob(`{"text":"hello"}`))

			if tt.wantErrIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErrIs)
				assert.Nil(t, out)
			} else {
				require.NoError(t, err)
				assert.JSONEq(t, tt.wantOut, string(out))
			}
		})
	}
}

func TestDispatcher_Dispatch_TextTimeout(t *testing.T) {
	cat := testCatalog(t)

	text := textGeneratorFunc(func(ctx context.Context, template string, input json.RawMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	d := newTestDispatcher(cat, text, nil, &Config{TextTimeout: 20 * time.Millisecond})

	_, err := d.Dispatch(context.Background(), textJob(`{"text":"hello"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderTimeout)
	assert.NotErrorIs(t, err, domain.ErrProviderFailed)
}

func TestDispatcher_Dispatch_Image(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name      string
		input     string
		raw       string
		genErr    error
		wantErrIs error
		wantURLs  []string
	}{
		{
			name:     "openai-style data array",
			input:    `{"prompt":"a lighthouse"}`,
			raw:      `{"data":[{"url":"https://img.example/1.png"},{"url":"https://img.example/2.png"}]}`,
			wantURLs: []string{"https://img.example/1.png", "https://img.example/2.png"},
		},
		{
			name:     "bare url list",
			input:    `{"prompt":"a lighthouse"}`,
			raw:      `{"images":["https://img.example/1.png"]}`,
			wantURLs: []string{"https://img.example/1.png"},
		},
		{
			name:     "base64 payload",
			input:    `{"prompt":"a lighthouse"}`,
			raw:      `{"data":[{"b64_json":"aGVsbG8="}]}`,
			wantURLs: []string{"aGVsbG8="},
		},
		{
			name:      "missing prompt",
			input:     `{"text":"no prompt here"}`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "input not an object",
			input:     `"a lighthouse"`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "unrecognized response shape",
			input:     `{"prompt":"a lighthouse"}`,
			raw:       `{"status":"done"}`,
			wantErrIs: domain.ErrMalformedOutput,
		},
		{
			name:      "provider failure classified",
			input:     `{"prompt":"a lighthouse"}`,
			genErr:    fmt.Errorf("content policy violation"),
			wantErrIs: domain.ErrProviderFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			image := imageGeneratorFunc(func(ctx context.Context, model, prompt string) (json.RawMessage, error) {
				assert.Equal(t, "dall-e-3", model)
				assert.NotEmpty(t, prompt)
				return json.RawMessage(tt.raw), tt.genErr
			})

			d := newTestDispatcher(cat, nil, image, nil)

			out, err := d.Dispatch(context.Background(), imageJob(tt.input))

			if tt.wantErrIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}

			require.NoError(t, err)

			var envelope struct {
				Images []string `json:"images"`
			}
			require.NoError(t, json.Unmarshal(out, &envelope))
			assert.Equal(t, tt.wantURLs, envelope.Images)
		})
	}
}

func TestDispatcher_Dispatch_UnknownService(t *testing.T) {
	cat := testCatalog(t)
	d := newTestDispatcher(cat, nil, nil, nil)

	_, err := d.Dispatch(context.Background(), &domain.Job{ServiceKey: "no-such-service"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServiceUnknown)
}
