package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// scriptedGenerator returns errs[i] for call i, then reply.
type scriptedGenerator struct {
	errs    []error
	reply   string
	calls   int
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	return g.reply, nil
}

type panicGenerator struct{}

func (panicGenerator) Generate(context.Context, string) (string, error) {
	panic("boom")
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newTestClient(gen Generator, attempts int) (*Client, *sleepRecorder) {
	rec := &sleepRecorder{}
	return NewClient(gen, WithMaxAttempts(attempts), WithSleep(rec.sleep)), rec
}

func TestAnswerForDocumentBlankText(t *testing.T) {
	gen := &scriptedGenerator{reply: "unused"}
	c, _ := newTestClient(gen, 2)

	for _, text := range []string{"", "   \n\t"} {
		ans := c.AnswerForDocument(context.Background(), text, "q", "a.txt")
		if ans.Failed() || ans.Text != NoTextAnswer {
			t.Errorf("text %q: got %+v", text, ans)
		}
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times for blank text", gen.calls)
	}
}

func TestAnswerForDocumentSuccess(t *testing.T) {
	gen := &scriptedGenerator{reply: `  The text says "Hello world" on page 1.  `}
	c, rec := newTestClient(gen, 2)

	ans := c.AnswerForDocument(context.Background(), "Hello world", "What does it say?", "hello.txt")
	if ans.Failed() {
		t.Fatalf("unexpected failure: %v", ans.Err)
	}
	if ans.Text != `The text says "Hello world" on page 1.` {
		t.Errorf("text = %q", ans.Text)
	}
	if gen.calls != 1 || len(rec.delays) != 0 {
		t.Errorf("calls = %d, delays = %v", gen.calls, rec.delays)
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"Document source: hello.txt", `"What does it say?"`, "Hello world"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !reflect.DeepEqual(ans.Quotes, []string{"The text says", "Hello world", "on page 1."}) {
		t.Errorf("quotes = %q", ans.Quotes)
	}
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("connection reset")}, reply: "ok"}
	c, rec := newTestClient(gen, 2)

	ans := c.AnswerForDocument(context.Background(), "text", "q", "a.txt")
	if ans.Failed() || ans.Text != "ok" {
		t.Fatalf("got %+v", ans)
	}
	if !reflect.DeepEqual(rec.delays, []time.Duration{2 * time.Second}) {
		t.Errorf("delays = %v", rec.delays)
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	// Fails twice and would succeed on a third call that the budget never allows.
	gen := &scriptedGenerator{
		errs:  []error{errors.New("unavailable"), errors.New("still unavailable")},
		reply: "too late",
	}
	c, rec := newTestClient(gen, 2)

	ans := c.AnswerForDocument(context.Background(), "text", "q", "a.txt")
	if !ans.Failed() {
		t.Fatal("expected failure")
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
	if !errors.Is(ans.Err, ErrAttemptsExhausted) {
		t.Errorf("err = %v, want ErrAttemptsExhausted", ans.Err)
	}
	want := "Error: Failed to get response from LLM after 2 attempts. Last error: still unavailable"
	if ans.Text != want {
		t.Errorf("text = %q, want %q", ans.Text, want)
	}
	// No sleep after the final attempt.
	if len(rec.delays) != 1 {
		t.Errorf("delays = %v", rec.delays)
	}
}

func TestRateLimitBackoff(t *testing.T) {
	quota := errors.New("429 Quota exceeded for aiplatform")
	gen := &scriptedGenerator{errs: []error{quota, quota, quota}}
	c, rec := newTestClient(gen, 3)

	ans := c.Summarize(context.Background(), "--- Document: a.txt ---\nanswer\n\n", "q")
	if !ans.Failed() {
		t.Fatal("expected failure")
	}
	if !strings.HasPrefix(ans.Text, "Error: Failed to get summary response from LLM after 3 attempts.") {
		t.Errorf("text = %q", ans.Text)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if !reflect.DeepEqual(rec.delays, want) {
		t.Errorf("delays = %v, want %v", rec.delays, want)
	}
}

func TestGeneratorPanicIsAFailedAttempt(t *testing.T) {
	c, rec := newTestClient(panicGenerator{}, 2)
	ans := c.AnswerForDocument(context.Background(), "text", "q", "a.txt")
	if !ans.Failed() || !strings.Contains(ans.Text, "panicked") {
		t.Errorf("got %+v", ans)
	}
	if len(rec.delays) != 1 {
		t.Errorf("delays = %v", rec.delays)
	}
}

func TestSleepCancellationStopsRetries(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	c := NewClient(gen, WithMaxAttempts(3), WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))
	ans := c.AnswerForDocument(context.Background(), "text", "q", "a.txt")
	if !ans.Failed() || gen.calls != 1 {
		t.Errorf("calls = %d, answer = %+v", gen.calls, ans)
	}
}

func TestSummaryLegitimateErrorPrefixIsSuccess(t *testing.T) {
	gen := &scriptedGenerator{reply: "Error bars in the charts overlap, so no conclusion holds."}
	c, _ := newTestClient(gen, 2)
	ans := c.Summarize(context.Background(), "findings", "q")
	if ans.Failed() {
		t.Errorf("answer starting with Error must not be a failure: %+v", ans)
	}
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("connection refused"), false},
		{"quota message", errors.New("Quota exceeded"), true},
		{"rate limit message", errors.New("Rate Limit reached"), true},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "slow down"), true},
		{"wrapped grpc", fmt.Errorf("gemini call failed: %w", status.Error(codes.ResourceExhausted, "x")), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "try later"), false},
		{"http 429", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"http 500", &googleapi.Error{Code: http.StatusInternalServerError, Message: "internal"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRateLimited(tt.err); got != tt.want {
				t.Errorf("isRateLimited(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExtractQuotes(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"no quotes here", []string{"no quotes here"}},
		{`short "abc" x`, []string{"short"}},
		{"Curly “the revenue grew” marks", []string{"Curly", "the revenue grew", "marks"}},
		{`""`, nil},
	}
	for _, tt := range tests {
		if got := extractQuotes(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("extractQuotes(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("ééé", 3); got != "ééé" {
		t.Errorf("got %q", got)
	}
}
