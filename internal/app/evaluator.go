package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"quiz-eval-service/internal/domain"
	"quiz-eval-service/internal/metrics"
)

// RecordStore persists evaluation records per domain collection.
type RecordStore interface {
	Create(ctx context.Context, d domain.Domain, rec domain.Record) error
	Count(ctx context.Context, d domain.Domain, correct bool) (int, error)
	// ResponseTimes returns latencies in insertion order.
	ResponseTimes(ctx context.Context, d domain.Domain) ([]int64, error)
}

// Evaluator runs the answer-evaluation pipeline. One call to Evaluate is one
// strictly sequential run; concurrent calls share only the store and notifier.
type Evaluator struct {
	mode     Mode
	provider AnswerProvider
	store    RecordStore
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	total atomic.Int64
	right atomic.Int64
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

func WithLogger(l *zap.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// WithClock is used by tests for deterministic record timestamps.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

func NewEvaluator(mode Mode, provider AnswerProvider, store RecordStore, notifier Notifier, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		mode:     mode,
		provider: provider,
		store:    store,
		notifier: notifier,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate answers, scores, records and announces a single question.
//
// Errors: domain.ErrUnknownDomain before any side effect,
// *domain.InvalidResponseError when a delegated reply fails validation, and a
// wrapped provider error otherwise. Persistence failures are logged only.
func (e *Evaluator) Evaluate(ctx context.Context, req domain.Request) (domain.Outcome, error) {
	d, err := domain.Parse(req.Domain)
	if err != nil {
		return domain.Outcome{}, err
	}

	e.notify(domain.MessageEvent(domain.EventUpdate, fmt.Sprintf("Received %s question: %s", d, req.Question)))

	q := domain.Question{Text: req.Question, A: req.A, B: req.B, C: req.C, D: req.D, Domain: d}
	answer, err := e.acquire(ctx, q)
	if err != nil {
		return domain.Outcome{}, err
	}

	e.notify(domain.MessageEvent(domain.EventAnswer,
		fmt.Sprintf("Answer: %s (Response time: %dms)", strings.ToUpper(answer.Letter), answer.ElapsedMs)))

	correct := answer.Letter == NormalizeLetter(req.CorrectAnswer)
	e.tally(correct)
	e.metrics.RecordEvaluation(d.String(), correct)
	e.logger.Info("answer scored",
		zap.String("domain", d.String()),
		zap.String("question", req.Question),
		zap.String("answer", answer.Letter),
		zap.String("expected", NormalizeLetter(req.CorrectAnswer)),
		zap.Bool("correct", correct),
		zap.Int64("response_time_ms", answer.ElapsedMs),
	)

	e.notify(domain.ResultEvent(domain.ResultPayload{
		Question:     req.Question,
		Answer:       answer.Letter,
		Correct:      correct,
		ResponseTime: answer.ElapsedMs,
		Domain:       d,
	}))

	e.persist(ctx, d, domain.Record{
		QuestionName:   req.Question,
		CorrectBoolean: correct,
		ResponseTimeMs: answer.ElapsedMs,
	})

	return domain.Outcome{
		Answer:       answer.Letter,
		IsCorrect:    correct,
		ResponseTime: answer.ElapsedMs,
		Domain:       d,
	}, nil
}

func (e *Evaluator) acquire(ctx context.Context, q domain.Question) (domain.Answer, error) {
	if e.mode == ModeDelegated {
		e.notify(domain.MessageEvent(domain.EventUpdate, fmt.Sprintf("Sending question to %s...", e.provider.Name())))
	} else {
		e.notify(domain.MessageEvent(domain.EventUpdate, fmt.Sprintf("Using %s...", e.provider.Name())))
	}

	answer, err := e.provider.Answer(ctx, q)
	if err != nil {
		e.metrics.RecordProviderError()
		e.logger.Error("answer provider failed", zap.String("provider", e.provider.Name()), zap.Error(err))
		return domain.Answer{}, fmt.Errorf("%w: %s: %w", domain.ErrProviderUnavailable, e.provider.Name(), err)
	}
	if answer.ElapsedMs < 0 {
		answer.ElapsedMs = 0
	}
	e.metrics.ObserveProviderLatency(string(e.mode), answer.ElapsedMs)

	if e.mode == ModeDelegated && !ValidResponse(answer.Letter) {
		e.metrics.RecordInvalidResponse()
		e.logger.Warn("invalid provider response", zap.String("raw", answer.Letter))
		return domain.Answer{}, &domain.InvalidResponseError{Raw: answer.Letter}
	}
	answer.Letter = NormalizeLetter(answer.Letter)
	return answer, nil
}

func (e *Evaluator) persist(ctx context.Context, d domain.Domain, rec domain.Record) {
	now := e.now()
	rec.Domain = d
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := e.store.Create(ctx, d, rec); err != nil {
		e.metrics.RecordPersistFailure(d.String())
		e.logger.Error("failed to save evaluation record",
			zap.String("domain", d.String()), zap.String("collection", d.Collection()), zap.Error(err))
		return
	}
	e.logger.Debug("saved evaluation record", zap.String("collection", d.Collection()))
	e.notify(domain.MessageEvent(domain.EventDB, fmt.Sprintf("Saved answer to %s collection", d)))
}

func (e *Evaluator) tally(correct bool) {
	total := e.total.Add(1)
	right := e.right.Load()
	if correct {
		right = e.right.Add(1)
	}
	e.logger.Info("score so far", zap.Int64("right", right), zap.Int64("total", total))
}

// Stats returns the process-lifetime right/total counts.
func (e *Evaluator) Stats() (right, total int64) {
	return e.right.Load(), e.total.Load()
}

func (e *Evaluator) notify(ev domain.Event) {
	if e.notifier == nil {
		return
	}
	e.notifier.Broadcast(ev)
}
