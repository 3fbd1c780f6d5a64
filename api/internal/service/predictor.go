// Package service — граница между чатом и движком инференса: пул воркеров,
// futures, пакетные запросы и приведение ошибок к четырём известным видам.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"viral-bot/api/internal/predictor"
)

var ErrClosed = errors.New("service: predictor closed")

const DefaultWorkers = 4

type Options struct {
	Workers   int
	QueueSize int
}

type Predictor struct {
	engine  *predictor.Engine
	log     *zap.Logger
	metrics *Metrics
	workers int

	jobs chan *job
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	// mu.RLock держат отправители в jobs; после closed новых задач нет.
	mu     sync.RWMutex
	closed bool

	served atomic.Int64
	failed atomic.Int64
}

type job struct {
	id        string
	text      string
	threshold float64
	fut       *Future
}

// Future — результат, который появится, когда воркер досчитает.
type Future struct {
	done chan struct{}
	res  predictor.Result
	err  error
}

func (f *Future) Done() <-chan struct{} { return f.done }

// Wait ждёт результат или отмену ctx. Отмена не прерывает сам инференс.
func (f *Future) Wait(ctx context.Context) (predictor.Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return predictor.Result{}, ctx.Err()
	}
}

func resolved(res predictor.Result, err error) *Future {
	f := &Future{done: make(chan struct{}), res: res, err: err}
	close(f.done)
	return f
}

type Stats struct {
	Served int64
	Failed int64
}

// New запускает воркеров. engine может быть nil — тогда все вызовы вернут ErrNotLoaded.
func New(engine *predictor.Engine, opts Options, log *zap.Logger, m *Metrics) *Predictor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = NewMetrics(nil)
	}
	s := &Predictor{
		engine:  engine,
		log:     log,
		metrics: m,
		workers: opts.Workers,
		jobs:    make(chan *job, opts.QueueSize),
		quit:    make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

func (s *Predictor) Loaded() bool { return s.engine.Loaded() }

func (s *Predictor) Stats() Stats {
	return Stats{Served: s.served.Load(), Failed: s.failed.Load()}
}

// Submit ставит текст в очередь пула и сразу возвращает Future.
func (s *Predictor) Submit(ctx context.Context, text string, threshold float64) (*Future, error) {
	if !s.Loaded() {
		s.metrics.Predictions.WithLabelValues(outcomeNotReady).Inc()
		return resolved(predictor.Result{}, predictor.ErrNotLoaded), nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	j := &job{
		id:        RequestID(ctx),
		text:      text,
		threshold: threshold,
		fut:       &Future{done: make(chan struct{})},
	}
	select {
	case s.jobs <- j:
		s.metrics.QueueDepth.Inc()
		return j.fut, nil
	case <-ctx.Done():
		s.metrics.Predictions.WithLabelValues(outcomeAborted).Inc()
		return nil, ctx.Err()
	case <-s.quit:
		return nil, ErrClosed
	}
}

// Predict = Submit + Wait.
func (s *Predictor) Predict(ctx context.Context, text string, threshold float64) (predictor.Result, error) {
	fut, err := s.Submit(ctx, text, threshold)
	if err != nil {
		return predictor.Result{}, err
	}
	return fut.Wait(ctx)
}

type Outcome struct {
	Result predictor.Result
	Err    error
}

// PredictBatch считает тексты независимо и параллельно; результаты по позициям входа.
func (s *Predictor) PredictBatch(ctx context.Context, texts []string, threshold float64) []Outcome {
	out := make([]Outcome, len(texts))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			out[i].Result, out[i].Err = s.Predict(ctx, text, threshold)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Close останавливает воркеров и дожидается текущих задач.
// Задачи, оставшиеся в очереди, не выполняются: их Future получают ErrClosed.
func (s *Predictor) Close() {
	s.once.Do(func() {
		close(s.quit)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.wg.Wait()

		for {
			select {
			case j := <-s.jobs:
				s.metrics.QueueDepth.Dec()
				s.metrics.Predictions.WithLabelValues(outcomeAborted).Inc()
				j.fut.err = ErrClosed
				close(j.fut.done)
			default:
				return
			}
		}
	})
}

func (s *Predictor) worker() {
	defer s.wg.Done()
	for {
		// select выбирает случайно, поэтому quit проверяем первым
		select {
		case <-s.quit:
			return
		default:
		}
		select {
		case <-s.quit:
			return
		case j := <-s.jobs:
			s.metrics.QueueDepth.Dec()
			j.fut.res, j.fut.err = s.run(j)
			close(j.fut.done)
		}
	}
}

func (s *Predictor) run(j *job) (res predictor.Result, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = predictor.Result{}, fmt.Errorf("%w: panic: %v", predictor.ErrInference, r)
		}
		s.metrics.Duration.Observe(time.Since(start).Seconds())
		s.record(j, res, err)
	}()

	res, err = s.engine.Predict(j.text, j.threshold)
	if err != nil && !isKnown(err) {
		err = fmt.Errorf("%w: %v", predictor.ErrInference, err)
	}
	return res, err
}

func isKnown(err error) bool {
	return errors.Is(err, predictor.ErrEmptyInput) ||
		errors.Is(err, predictor.ErrNotLoaded) ||
		errors.Is(err, predictor.ErrInference)
}

func (s *Predictor) record(j *job, res predictor.Result, err error) {
	switch {
	case err == nil:
		s.served.Add(1)
		s.metrics.Predictions.WithLabelValues(outcomeOK).Inc()
		s.log.Debug("prediction",
			zap.String("request_id", j.id),
			zap.Float64("probability", res.Probability),
			zap.Bool("viral", res.IsViral),
			zap.Int("text_length", res.TextLength),
		)
	case errors.Is(err, predictor.ErrEmptyInput):
		s.metrics.Predictions.WithLabelValues(outcomeEmpty).Inc()
	case errors.Is(err, predictor.ErrNotLoaded):
		s.metrics.Predictions.WithLabelValues(outcomeNotReady).Inc()
	default:
		s.failed.Add(1)
		s.metrics.Predictions.WithLabelValues(outcomeFailed).Inc()
		s.log.Error("prediction failed",
			zap.String("request_id", j.id),
			zap.Int("text_length", len([]rune(j.text))),
			zap.Error(err),
		)
	}
}

type requestIDKey struct{}

// WithRequestID кладёт id запроса в контекст, чтобы связать логи чата и пула.
func WithRequestID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID достаёт id из контекста или генерирует новый.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return uuid.NewString()
}
