package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jordanhubbard/convreview/internal/metrics"
	"github.com/jordanhubbard/convreview/internal/telemetry"
)

// Completer is what the scorer, teaching engine and extractor depend on.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionRequest is one request/response exchange with the model.
type CompletionRequest struct {
	Purpose     string // "score", "teach", "extract_dialogue", ...; used for metrics and logs
	System      string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Completion is the text the model returned.
type Completion struct {
	Content     string
	Model       string
	TotalTokens int
	Attempts    int
}

// Options configures a Client
type Options struct {
	Model      string
	Timeout    time.Duration // per attempt; zero means no per-attempt deadline
	MaxRetries int           // on transient failures; values above 1 are treated as 1
	RetryDelay time.Duration
	Metrics    *metrics.Metrics
}

// Client wraps a Protocol with per-call timeouts, a single retry on
// transient failures, tracing and metrics.
type Client struct {
	protocol Protocol
	opts     Options
}

// NewClient returns a Client calling p.
func NewClient(p Protocol, opts Options) *Client {
	if opts.MaxRetries > 1 {
		opts.MaxRetries = 1
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{protocol: p, opts: opts}
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.opts.Model
}

// Complete sends req and returns the first choice's content. Failures are
// returned as *UpstreamError.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "provider.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.purpose", req.Purpose),
		attribute.String("llm.model", c.opts.Model),
		attribute.Int("llm.messages", len(req.Messages)),
	)

	chatReq := &ChatCompletionRequest{
		Model:       c.opts.Model,
		Messages:    make([]ChatMessage, 0, len(req.Messages)+1),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, ChatMessage{Role: "system", Content: req.System})
	}
	chatReq.Messages = append(chatReq.Messages, req.Messages...)
	if req.JSONMode {
		chatReq.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	maxAttempts := 1 + c.opts.MaxRetries
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if c.opts.Metrics != nil {
				c.opts.Metrics.ModelRetries.WithLabelValues(req.Purpose).Inc()
			}
			log.Printf("[Provider] Retrying %s after transient failure: %v", req.Purpose, lastErr)
			if err := sleepCtx(ctx, c.opts.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}

		attempts = attempt
		start := time.Now()
		resp, err := c.attempt(ctx, chatReq)
		latency := time.Since(start).Milliseconds()

		if err == nil && len(resp.Choices) == 0 {
			err = ErrEmptyCompletion
		}
		if err != nil {
			c.record(req.Purpose, false, latency, 0)
			lastErr = err
			if !IsTransient(err) || ctx.Err() != nil {
				break
			}
			continue
		}

		c.record(req.Purpose, true, latency, int64(resp.Usage.TotalTokens))
		span.SetAttributes(attribute.Int("llm.attempts", attempt))
		return &Completion{
			Content:     resp.Choices[0].Message.Content,
			Model:       resp.Model,
			TotalTokens: resp.Usage.TotalTokens,
			Attempts:    attempt,
		}, nil
	}

	upstream := &UpstreamError{
		Purpose:   req.Purpose,
		Attempts:  attempts,
		Retryable: IsTransient(lastErr) || errors.Is(lastErr, ErrEmptyCompletion),
		Err:       lastErr,
	}
	span.RecordError(upstream)
	span.SetStatus(codes.Error, upstream.Error())
	return nil, upstream
}

func (c *Client) attempt(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	resp, err := c.protocol.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

func (c *Client) record(purpose string, success bool, latencyMs, tokens int64) {
	if c.opts.Metrics == nil {
		return
	}
	c.opts.Metrics.RecordModelRequest(purpose, c.opts.Model, success, latencyMs, tokens)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
