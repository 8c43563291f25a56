package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quipufin/quipu/internal/common"
	"github.com/quipufin/quipu/internal/model"
	"github.com/quipufin/quipu/internal/service"
)

const systemPrompt = `You are a financial transaction extractor for a personal expense tracker.
Given a user's message, extract every financial transaction it mentions.
You MUST respond with ONLY a valid JSON object. Do not include any explanatory
text, markdown formatting, or commentary before or after the JSON.
The object has this shape:
{"transactions":[{"amount":20.5,"direction":"debit","category":"food","description":"lunch","payment_method":"cash","currency":"USD"}],"is_multiple":false}
Rules:
- "direction" is "debit" for money spent and "credit" for money received.
- "amount" is always positive.
- Omit nothing you can infer; leave fields you cannot infer as empty strings.
- If the message mentions no transaction, return {"transactions":[],"is_multiple":false}.`

// Extractor implements service.Extractor using an LLM provider.
type Extractor struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

var _ service.Extractor = (*Extractor)(nil)

// NewExtractor creates a new LLM-backed extraction adapter.
func NewExtractor(cfg Config, logger *slog.Logger) (*Extractor, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Extractor{
		client:      client,
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

// Extract turns a transcript into zero or more candidate transactions.
func (e *Extractor) Extract(ctx context.Context, transcript, cohort string) (model.ExtractionResult, error) {
	if err := e.rateLimiter.wait(ctx); err != nil {
		return model.ExtractionResult{}, err
	}

	userPrompt := fmt.Sprintf("Country code: %s\nMessage: %s", cohort, transcript)

	var content string
	err := common.WithRetry(ctx, func() error {
		var callErr error
		content, callErr = e.client.Complete(ctx, systemPrompt, userPrompt)
		return callErr
	}, e.retryOpts)
	if err != nil {
		return model.ExtractionResult{}, fmt.Errorf("extraction call failed: %w", err)
	}

	result, err := parseExtraction(content)
	if err != nil {
		e.logger.Warn("unparseable extraction output, treating as zero candidates",
			"cohort", cohort,
			"error", err)
		return model.ExtractionResult{}, nil
	}

	e.logger.Debug("extraction complete",
		"cohort", cohort,
		"candidates", len(result.Transactions))
	return result, nil
}

// Close releases the extractor's background resources.
func (e *Extractor) Close() {
	e.rateLimiter.Close()
}
