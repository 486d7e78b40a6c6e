package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/paygenio/paygen/internal/catalog"
	"github.com/paygenio/paygen/internal/domain"
)

// TextGenerator produces a raw completion for an instruction template and a
// structured input. Implementations must respect ctx cancellation.
type TextGenerator interface {
	Generate(ctx context.Context, template string, input json.RawMessage) (string, error)
}

// ImageGenerator produces the provider's raw response payload for a model and
// prompt. Implementations must respect ctx cancellation.
type ImageGenerator interface {
	Generate(ctx context.Context, model, prompt string) (json.RawMessage, error)
}

// Config holds dispatcher timeout policy per fulfillment kind.
type Config struct {
	TextTimeout  time.Duration
	ImageTimeout time.Duration
}

// Dispatcher routes a paid job to the right generation provider, enforces the
// per-kind timeout, and normalizes heterogeneous outputs into one envelope.
// It never retries: retry policy belongs to the orchestrator.
type Dispatcher struct {
	catalog      *catalog.Catalog
	text         TextGenerator
	image        ImageGenerator
	textTimeout  time.Duration
	imageTimeout time.Duration
	logger       *slog.Logger
}

// NewDispatcher creates a new provider dispatcher
func NewDispatcher(cat *catalog.Catalog, text TextGenerator, image ImageGenerator, cfg *Config, logger *slog.Logger) *Dispatcher {
	textTimeout := cfg.TextTimeout
	if textTimeout <= 0 {
		textTimeout = 30 * time.Second
	}
	imageTimeout := cfg.ImageTimeout
	if imageTimeout <= 0 {
		imageTimeout = 60 * time.Second
	}

	return &Dispatcher{
		catalog:      cat,
		text:         text,
		image:        image,
		textTimeout:  textTimeout,
		imageTimeout: imageTimeout,
		logger:       logger,
	}
}

// Dispatch executes the job against its provider and returns the normalized
// output envelope. Errors wrap domain.ErrProviderTimeout,
// domain.ErrMalformedOutput or domain.ErrProviderFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	entry, err := d.catalog.Lookup(job.ServiceKey)
	if err != nil {
		return nil, err
	}

	switch entry.Kind {
	case domain.KindText:
		return d.dispatchText(ctx, entry, job)
	case domain.KindImage:
		return d.dispatchImage(ctx, entry, job)
	default:
		return nil, fmt.Errorf("%w: kind %q", domain.ErrServiceUnknown, entry.Kind)
	}
}

func (d *Dispatcher) dispatchText(ctx context.Context, entry *catalog.Entry, job *domain.Job) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, d.textTimeout)
	defer cancel()

	started := time.Now()
	raw, err := d.text.Generate(ctx, entry.Template, job.Input)
	if err != nil {
		return nil, d.classify(err, "text", job.PublicID, time.Since(started))
	}

	output, err := decodeStrictObject(raw)
	if err != nil {
		d.logger.Warn("Text provider returned malformed output",
			slog.String("job_id", job.PublicID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	return output, nil
}

func (d *Dispatcher) dispatchImage(ctx context.Context, entry *catalog.Entry, job *domain.Job) (json.RawMessage, error) {
	prompt, err := imagePrompt(job.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.imageTimeout)
	defer cancel()

	started := time.Now()
	raw, err := d.image.Generate(ctx, entry.Model, prompt)
	if err != nil {
		return nil, d.classify(err, "image", job.PublicID, time.Since(started))
	}

	urls, err := normalizeImages(raw)
	if err != nil {
		d.logger.Warn("Image provider returned unrecognized output",
			slog.String("job_id", job.PublicID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedOutput, err)
	}

	envelope, err := json.Marshal(map[string][]string{"images": urls})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image envelope: %w", err)
	}

	return envelope, nil
}

// classify separates a deadline hit from a provider-reported failure so the
// orchestrator can record which leg failed.
func (d *Dispatcher) classify(err error, kind, jobID string, elapsed time.Duration) error {
	if errors.Is(err, context.DeadlineExceeded) {
		d.logger.Warn("Provider call timed out",
			slog.String("job_id", jobID),
			slog.String("kind", kind),
			slog.Duration("elapsed", elapsed),
		)
		return fmt.Errorf("%w: %s provider exceeded %s", domain.ErrProviderTimeout, kind, elapsed.Round(time.Millisecond))
	}
	return fmt.Errorf("%w: %v", domain.ErrProviderFailed, err)
}

// imagePrompt validates the schemaless input at the dispatcher boundary:
// image jobs must carry a non-empty "prompt" string.
func imagePrompt(input json.RawMessage) (string, error) {
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return "", fmt.Errorf("input is not a JSON object: %v", err)
	}
	if payload.Prompt == "" {
		return "", fmt.Errorf("input is missing a prompt")
	}
	return payload.Prompt, nil
}

// decodeStrictObject decodes raw as exactly one JSON object. Trailing tokens
// (truncated or concatenated JSON) are a provider contract violation, not
// something to salvage with substring extraction.
func decodeStrictObject(raw string) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))

	var value json.RawMessage
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %v", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(value, &probe); err != nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	if dec.More() {
		return nil, fmt.Errorf("response contains trailing data after the first object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("response contains trailing data after the first object")
	}

	return value, nil
}
