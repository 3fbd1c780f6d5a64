package predictor

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lifeHack = "This life hack will change your life"

// countingScorer отдаёт фиксированную вероятность и считает вызовы.
type countingScorer struct {
	p     float64
	err   error
	calls atomic.Int32
	last  []int
	mu    sync.Mutex
}

func (s *countingScorer) Score(ids []int) (float64, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.last = append([]int(nil), ids...)
	s.mu.Unlock()
	return s.p, s.err
}

func (s *countingScorer) Close() error { return nil }

func newTestEngine(t *testing.T, sc Scorer, opts ...Option) *Engine {
	t.Helper()
	return New(mustParse(t, kerasTokenizerJSON), sc, opts...)
}

func TestPredict_NotLoaded(t *testing.T) {
	var nilEngine *Engine
	_, err := nilEngine.Predict(lifeHack, 0.5)
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = (&Engine{}).Predict(lifeHack, 0.5)
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = nilEngine.PredictLabel(lifeHack)
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = nilEngine.PredictScore(lifeHack)
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = nilEngine.Encode(lifeHack)
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = (&Engine{}).Encode(lifeHack)
	assert.ErrorIs(t, err, ErrNotLoaded)

	assert.NoError(t, nilEngine.Close())
}

func TestPredict_EmptyInput(t *testing.T) {
	sc := &countingScorer{p: 0.9}
	e := newTestEngine(t, sc)

	for _, text := range []string{"", "   ", "\t\n ", "short", "  123456789  "} {
		_, err := e.Predict(text, 0.5)
		assert.ErrorIs(t, err, ErrEmptyInput, "text=%q", text)
	}
	assert.Zero(t, sc.calls.Load())
}

func TestPredict_MinCharsOption(t *testing.T) {
	sc := &countingScorer{p: 0.9}
	e := newTestEngine(t, sc, WithMinChars(3))

	_, err := e.Predict("abc", 0.5)
	assert.NoError(t, err)

	_, err = e.Predict(" ab ", 0.5)
	assert.ErrorIs(t, err, ErrEmptyInput)

	// даже с нулевым минимумом пустой текст не проходит
	e = newTestEngine(t, sc, WithMinChars(0))
	_, err = e.Predict("   ", 0.5)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEncode_LifeHack(t *testing.T) {
	e := newTestEngine(t, &countingScorer{})

	seq, err := e.Encode(lifeHack)
	require.NoError(t, err)
	require.Len(t, seq, SequenceLength)
	assert.Equal(t, []int{3, 2, 4, 5, 6, 7, 2}, seq[:7])
	for _, v := range seq[7:] {
		assert.Equal(t, PadID, v)
	}
}

func TestEncode_LongTextTruncatedAtEnd(t *testing.T) {
	e := newTestEngine(t, &countingScorer{})

	text := strings.Repeat("life ", SequenceLength) + strings.Repeat("hack ", 10)
	seq, err := e.Encode(text)
	require.NoError(t, err)
	require.Len(t, seq, SequenceLength)
	for _, v := range seq {
		assert.Equal(t, 2, v)
	}
}

func TestPredict_Result(t *testing.T) {
	sc := &countingScorer{p: 0.85}
	e := newTestEngine(t, sc)

	input := "  " + lifeHack + "  "
	res, err := e.Predict(input, 0.5)
	require.NoError(t, err)

	assert.Equal(t, 0.85, res.Probability)
	assert.True(t, res.IsViral)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Equal(t, MessageHigh, res.Message)
	assert.Equal(t, 0.5, res.Threshold)
	assert.Equal(t, len(input), res.TextLength)
	assert.Equal(t, lifeHack, res.TextSample)
	assert.Len(t, sc.last, SequenceLength)
}

func TestPredict_Messages(t *testing.T) {
	tests := []struct {
		p    float64
		want Message
	}{
		{0.85, MessageHigh},
		{0.75, MessageLikely},
		{0.4, MessageModerate},
		{0.1, MessageUnlikely},
	}
	for _, tt := range tests {
		e := newTestEngine(t, &countingScorer{p: tt.p})
		res, err := e.Predict(lifeHack, 0.5)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Message, "p=%v", tt.p)
	}
}

func TestPredict_BoundaryIsNotViral(t *testing.T) {
	e := newTestEngine(t, &countingScorer{p: 0.5})
	res, err := e.Predict(lifeHack, 0.5)
	require.NoError(t, err)
	assert.False(t, res.IsViral)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestPredict_Deterministic(t *testing.T) {
	// вероятность зависит только от последовательности
	sc := ScorerFunc(func(ids []int) (float64, error) {
		sum := 0
		for _, v := range ids {
			sum += v
		}
		return float64(sum%100) / 100, nil
	})
	e := newTestEngine(t, sc)

	first, err := e.Predict(lifeHack, 0.3)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := e.Predict(lifeHack, 0.3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPredict_LongSample(t *testing.T) {
	e := newTestEngine(t, &countingScorer{p: 0.2})
	text := strings.Repeat("life ", 40)

	res, err := e.Predict(text, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 200, res.TextLength)
	assert.True(t, strings.HasSuffix(res.TextSample, "..."))
	assert.Equal(t, 103, len([]rune(res.TextSample)))
}

func TestPredict_InferenceErrors(t *testing.T) {
	tests := []struct {
		name string
		sc   Scorer
	}{
		{"scorer error", &countingScorer{err: errors.New("tensor exploded")}},
		{"nan", &countingScorer{p: math.NaN()}},
		{"above one", &countingScorer{p: 1.5}},
		{"negative", &countingScorer{p: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestEngine(t, tt.sc).Predict(lifeHack, 0.5)
			assert.ErrorIs(t, err, ErrInference)
		})
	}
}

func TestPredictLabelAndScore(t *testing.T) {
	e := newTestEngine(t, &countingScorer{p: 0.64})

	viral, err := e.PredictLabel(lifeHack)
	require.NoError(t, err)
	assert.True(t, viral)

	score, err := e.PredictScore(lifeHack)
	require.NoError(t, err)
	assert.Equal(t, 0.64, score)
}

func TestPredictBatch(t *testing.T) {
	sc := ScorerFunc(func(ids []int) (float64, error) {
		if ids[0] == 4 {
			return 0.9, nil
		}
		return 0.1, nil
	})
	e := newTestEngine(t, sc)

	out := e.PredictBatch([]string{lifeHack, "", "hack hack hack hack"}, 0.5)
	require.Len(t, out, 3)

	assert.NoError(t, out[0].Err)
	assert.False(t, out[0].Result.IsViral)
	assert.ErrorIs(t, out[1].Err, ErrEmptyInput)
	assert.NoError(t, out[2].Err)
	assert.True(t, out[2].Result.IsViral)
}

func TestPredict_Concurrent(t *testing.T) {
	e := newTestEngine(t, &countingScorer{p: 0.66})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Predict(lifeHack, 0.5)
			assert.NoError(t, err)
			assert.Equal(t, MessageLikely, res.Message)
		}()
	}
	wg.Wait()
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(model, []byte("not really onnx"), 0o600))
	badTok := filepath.Join(dir, "tokenizer.json")
	require.NoError(t, os.WriteFile(badTok, []byte("\x80\x04pickle"), 0o600))

	t.Run("missing model", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.onnx"), badTok)
		assert.ErrorIs(t, err, ErrLoad)
	})

	t.Run("missing tokenizer", func(t *testing.T) {
		_, err := Load(model, filepath.Join(dir, "missing.json"))
		assert.ErrorIs(t, err, ErrLoad)
	})

	t.Run("corrupt tokenizer", func(t *testing.T) {
		_, err := Load(model, badTok)
		assert.ErrorIs(t, err, ErrLoad)
	})
}
