package predictor

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode/utf8"
)

const DefaultMinChars = 10

// Engine — загруженная пара токенизатор+классификатор. Неизменяем после создания,
// поэтому Predict можно вызывать из любого числа горутин без синхронизации.
// Нулевой или nil *Engine отвечает ErrNotLoaded.
type Engine struct {
	tokenizer *Tokenizer
	scorer    Scorer
	minChars  int
	rt        RuntimeConfig
}

type Option func(*Engine)

// WithMinChars задаёт минимальную длину текста (в рунах, после обрезки пробелов).
func WithMinChars(n int) Option {
	return func(e *Engine) { e.minChars = n }
}

func WithRuntime(rt RuntimeConfig) Option {
	return func(e *Engine) { e.rt = rt }
}

func New(tok *Tokenizer, scorer Scorer, opts ...Option) *Engine {
	e := &Engine{tokenizer: tok, scorer: scorer, minChars: DefaultMinChars}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load читает оба артефакта. Вызывать один раз до начала трафика.
func Load(modelPath, tokenizerPath string, opts ...Option) (*Engine, error) {
	e := New(nil, nil, opts...)

	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model: %v", ErrLoad, err)
	}
	if _, err := os.Stat(tokenizerPath); err != nil {
		return nil, fmt.Errorf("%w: tokenizer: %v", ErrLoad, err)
	}

	tok, err := LoadTokenizer(tokenizerPath)
	if err != nil {
		return nil, err
	}
	scorer, err := NewONNXScorer(modelPath, SequenceLength, e.rt)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrLoad, modelPath, err)
	}
	e.tokenizer = tok
	e.scorer = scorer
	return e, nil
}

func (e *Engine) Loaded() bool {
	return e != nil && e.tokenizer != nil && e.scorer != nil
}

// Encode: нормализация → ids → ровно SequenceLength позиций.
func (e *Engine) Encode(text string) ([]int, error) {
	if e == nil || e.tokenizer == nil {
		return nil, ErrNotLoaded
	}
	return e.encode(text), nil
}

func (e *Engine) encode(text string) []int {
	return PadSequence(e.tokenizer.TextToSequence(Normalize(text)), SequenceLength)
}

func (e *Engine) Predict(text string, threshold float64) (Result, error) {
	if !e.Loaded() {
		return Result{}, ErrNotLoaded
	}
	trimmed := strings.TrimSpace(text)
	minChars := e.minChars
	if minChars < 1 {
		minChars = 1
	}
	if utf8.RuneCountInString(trimmed) < minChars {
		return Result{}, ErrEmptyInput
	}

	p, err := e.scorer.Score(e.encode(trimmed))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInference, err)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return Result{}, fmt.Errorf("%w: probability %v out of range", ErrInference, p)
	}

	res := Classify(p, threshold)
	res.TextLength = utf8.RuneCountInString(text)
	res.TextSample = Sample(trimmed, sampleRunes)
	return res, nil
}

// PredictLabel — только is_viral при пороге по умолчанию.
func (e *Engine) PredictLabel(text string) (bool, error) {
	res, err := e.Predict(text, DefaultThreshold)
	if err != nil {
		return false, err
	}
	return res.IsViral, nil
}

// PredictScore — только вероятность.
func (e *Engine) PredictScore(text string) (float64, error) {
	res, err := e.Predict(text, DefaultThreshold)
	if err != nil {
		return 0, err
	}
	return res.Probability, nil
}

type BatchResult struct {
	Result Result
	Err    error
}

// PredictBatch эквивалентен независимым Predict по каждому тексту, порядок сохраняется.
func (e *Engine) PredictBatch(texts []string, threshold float64) []BatchResult {
	out := make([]BatchResult, len(texts))
	for i, t := range texts {
		out[i].Result, out[i].Err = e.Predict(t, threshold)
	}
	return out
}

func (e *Engine) Close() error {
	if !e.Loaded() {
		return nil
	}
	return e.scorer.Close()
}
