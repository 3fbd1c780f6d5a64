package predictor

import (
	"math"
	"strings"
	"unicode/utf8"
)

// Message — вердикт, выбираемый по таблице (is_viral, probability).
type Message string

const (
	MessageHigh     Message = "high probability of becoming viral"
	MessageLikely   Message = "may become viral"
	MessageUnlikely Message = "unlikely to become viral"
	MessageModerate Message = "moderate chance of virality"
)

const (
	DefaultThreshold = 0.5

	highBand = 0.8
	lowBand  = 0.3

	sampleRunes = 100
	ellipsis    = "..."
)

type Result struct {
	Probability float64 `json:"probability"`
	IsViral     bool    `json:"is_viral"`
	Confidence  float64 `json:"confidence"`
	Message     Message `json:"message"`
	Threshold   float64 `json:"threshold"`
	TextLength  int     `json:"text_length"`
	TextSample  string  `json:"text_sample"`
}

// Classify строит результат из вероятности. Граница строгая: p == threshold → не вирально.
func Classify(probability, threshold float64) Result {
	viral := probability > threshold
	return Result{
		Probability: probability,
		IsViral:     viral,
		Confidence:  Confidence(probability),
		Message:     selectMessage(viral, probability),
		Threshold:   threshold,
	}
}

// Confidence: 0 при p=0.5, 1 при p∈{0,1}.
func Confidence(probability float64) float64 {
	return math.Abs(probability-0.5) * 2
}

func selectMessage(viral bool, p float64) Message {
	if viral {
		if p > highBand {
			return MessageHigh
		}
		return MessageLikely
	}
	if p < lowBand {
		return MessageUnlikely
	}
	return MessageModerate
}

// Sample обрезает текст до n рун и добавляет "..." если что-то отрезано. n < 0 — без обрезки.
func Sample(text string, n int) string {
	if n < 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	var b strings.Builder
	i := 0
	for _, r := range text {
		if i == n {
			break
		}
		b.WriteRune(r)
		i++
	}
	b.WriteString(ellipsis)
	return b.String()
}
