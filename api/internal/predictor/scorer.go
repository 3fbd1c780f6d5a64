package predictor

// Scorer — обученный классификатор: последовательность длины SequenceLength → вероятность.
type Scorer interface {
	Score(ids []int) (float64, error)
	Close() error
}

// ScorerFunc позволяет использовать функцию как Scorer.
type ScorerFunc func(ids []int) (float64, error)

func (f ScorerFunc) Score(ids []int) (float64, error) { return f(ids) }

func (f ScorerFunc) Close() error { return nil }
