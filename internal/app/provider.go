package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"quiz-eval-service/internal/domain"
)

// Mode selects how answers are produced.
type Mode string

const (
	// ModeSimulated answers with a random letter after a fake network delay.
	ModeSimulated Mode = "simulated"
	// ModeDelegated asks a language model and validates its reply.
	ModeDelegated Mode = "delegated"
)

// ParseMode maps a config value to a Mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeSimulated:
		return ModeSimulated, nil
	case ModeDelegated:
		return ModeDelegated, nil
	default:
		return "", fmt.Errorf("unknown provider mode %q", raw)
	}
}

// AnswerProvider produces a single-letter answer for a question and reports
// how long it took.
type AnswerProvider interface {
	Answer(ctx context.Context, q domain.Question) (domain.Answer, error)
	// Name is shown to observers while the provider is working.
	Name() string
}

// answerLetters are the letters a simulated provider may pick.
var answerLetters = []string{"a", "b", "c", "d"}

// validLetters is what the validator tolerates from a language model. The two
// extra letters match observed model output for four-option questions.
var validLetters = map[string]struct{}{
	"a": {}, "b": {}, "c": {}, "d": {}, "e": {}, "f": {},
}

// ValidResponse reports whether raw is exactly one recognized letter.
func ValidResponse(raw string) bool {
	clean := strings.ToLower(strings.TrimSpace(raw))
	if len(clean) != 1 {
		return false
	}
	_, ok := validLetters[clean]
	return ok
}

// NormalizeLetter trims and lower-cases a provider reply or answer key.
func NormalizeLetter(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// BuildPrompt renders the deterministic prompt sent to language models.
func BuildPrompt(q domain.Question) string {
	var b strings.Builder
	b.WriteString("Answer this multiple-choice question.\n")
	b.WriteString("Respond with only one letter (a, b, c, or d).\n")
	fmt.Fprintf(&b, "Question: %s\n", q.Text)
	b.WriteString("Options:\n")
	for i, opt := range q.Options() {
		fmt.Fprintf(&b, "%s) %s\n", answerLetters[i], opt)
	}
	fmt.Fprintf(&b, "Domain: %s\n", q.Domain)
	return b.String()
}

// SimulatedProvider picks a letter uniformly at random and sleeps for a random
// duration in [min, max] to emulate network latency.
type SimulatedProvider struct {
	min, max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedProvider builds a simulated provider. Bounds are swapped if
// given in the wrong order; negative bounds are treated as zero.
func NewSimulatedProvider(min, max time.Duration) *SimulatedProvider {
	if min < 0 {
		min = 0
	}
	if max < 0 {
		max = 0
	}
	if max < min {
		min, max = max, min
	}
	return &SimulatedProvider{
		min: min,
		max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *SimulatedProvider) Name() string { return "simulated (random answer)" }

// Answer never fails unless ctx is canceled while sleeping.
func (p *SimulatedProvider) Answer(ctx context.Context, _ domain.Question) (domain.Answer, error) {
	start := time.Now()

	p.mu.Lock()
	letter := answerLetters[p.rnd.Intn(len(answerLetters))]
	delay := p.min + time.Duration(p.rnd.Int63n(int64(p.max-p.min)+1))
	p.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return domain.Answer{}, ctx.Err()
	}

	return domain.Answer{Letter: letter, ElapsedMs: time.Since(start).Milliseconds()}, nil
}
