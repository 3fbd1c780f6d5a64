package predictor

import "strings"

const (
	// SequenceLength — фиксированная длина входа классификатора.
	SequenceLength = 200
	PadID          = 0
)

// Normalize: нижний регистр и схлопывание пробелов. Больше ничего.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// PadSequence приводит ids ровно к maxLen: хвост дополняется PadID или отрезается
// (post-padding, post-truncating). Исходный срез не меняется.
func PadSequence(ids []int, maxLen int) []int {
	out := make([]int, maxLen)
	n := copy(out, ids)
	for i := n; i < maxLen; i++ {
		out[i] = PadID
	}
	return out
}
