// Package llm asks a generative model to answer a question from document text
// and to synthesize per-document answers into one.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// DefaultMaxAttempts is the attempt budget per model call.
	DefaultMaxAttempts = 2

	// NoTextAnswer is returned without calling the model when a document has no text.
	NoTextAnswer = "Document contains no extractable text."

	rateLimitDelayUnit = 5 * time.Second
	retryDelay         = 2 * time.Second
)

// ErrAttemptsExhausted marks an Answer whose every attempt failed.
var ErrAttemptsExhausted = errors.New("llm: all attempts failed")

// Generator is the external model service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answer is the outcome of one question. When Err is set, Text holds a
// displayable failure message starting with "Error:".
type Answer struct {
	Text   string
	Quotes []string
	Err    error
}

// Failed reports whether the model could not produce an answer.
func (a Answer) Failed() bool {
	return a.Err != nil
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Client)

// WithMaxAttempts sets the attempt budget. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client wraps a Generator with prompting and a fixed retry budget.
// It never returns an error; failures are carried in the Answer.
type Client struct {
	gen         Generator
	maxAttempts int
	sleep       SleepFunc
	logger      *slog.Logger
}

func NewClient(gen Generator, opts ...Option) *Client {
	c := &Client{
		gen:         gen,
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnswerForDocument answers query strictly from one document's text.
func (c *Client) AnswerForDocument(ctx context.Context, text, query, filename string) Answer {
	if strings.TrimSpace(text) == "" {
		return Answer{Text: NoTextAnswer}
	}

	logCtx := c.logger.With("file", filename)
	out, err := c.generate(ctx, logCtx, documentPrompt(text, query, filename))
	if err != nil {
		return Answer{
			Text: fmt.Sprintf("Error: Failed to get response from LLM after %d attempts. Last error: %v", c.maxAttempts, errors.Unwrap(err)),
			Err:  err,
		}
	}
	return Answer{Text: out, Quotes: extractQuotes(out)}
}

// Summarize synthesizes one answer from the concatenated per-document answers.
func (c *Client) Summarize(ctx context.Context, allAnswers, query string) Answer {
	logCtx := c.logger.With("stage", "summary")
	out, err := c.generate(ctx, logCtx, summaryPrompt(allAnswers, query))
	if err != nil {
		return Answer{
			Text: fmt.Sprintf("Error: Failed to get summary response from LLM after %d attempts. Last error: %v", c.maxAttempts, errors.Unwrap(err)),
			Err:  err,
		}
	}
	return Answer{Text: out}
}

// generate runs up to maxAttempts calls. The returned error wraps
// ErrAttemptsExhausted around the last attempt's error.
func (c *Client) generate(ctx context.Context, logCtx *slog.Logger, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		out, err := c.call(ctx, prompt)
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		lastErr = err
		logCtx.Warn("Model call failed.", "attempt", attempt, "maxAttempts", c.maxAttempts, "error", err)

		if attempt == c.maxAttempts {
			break
		}
		delay := retryDelay
		if isRateLimited(err) {
			delay = rateLimitDelayUnit * time.Duration(attempt)
		}
		if err := c.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}
	logCtx.Error("Model call failed after all attempts.", "error", lastErr)
	return "", &exhaustedError{last: lastErr}
}

// call invokes the generator, converting a panic into an error.
func (c *Client) call(ctx context.Context, prompt string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model client panicked: %v", r)
		}
	}()
	return c.gen.Generate(ctx, prompt)
}

type exhaustedError struct {
	last error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrAttemptsExhausted, e.last)
}

// Unwrap exposes the last attempt's error; errors.Is also matches ErrAttemptsExhausted.
func (e *exhaustedError) Unwrap() error {
	return e.last
}

func (e *exhaustedError) Is(target error) bool {
	return target == ErrAttemptsExhausted
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var quoteSplitter = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`)

// extractQuotes returns the fragments between quotation characters whose
// raw length exceeds five characters.
func extractQuotes(text string) []string {
	var quotes []string
	for _, frag := range strings.Split(quoteSplitter.Replace(text), `"`) {
		trimmed := strings.TrimSpace(frag)
		if trimmed != "" && len([]rune(frag)) > 5 {
			quotes = append(quotes, trimmed)
		}
	}
	return quotes
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
