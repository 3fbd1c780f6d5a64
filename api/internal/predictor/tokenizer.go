package predictor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Keras по умолчанию выбрасывает эту пунктуацию.
const defaultFilters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

// Tokenizer воспроизводит texts_to_sequences обученного Keras-токенизатора.
// После загрузки не изменяется, безопасен для конкурентного чтения.
type Tokenizer struct {
	wordIndex map[string]int
	numWords  int // 0 — без ограничения
	filters   string
	lower     bool
	split     string
	charLevel bool
	oovIndex  int // 0 — OOV-токена нет, неизвестные слова выбрасываются
}

// tokenizerJSON — формат Tokenizer.to_json().
type tokenizerJSON struct {
	ClassName string `json:"class_name"`
	Config    struct {
		NumWords  *int            `json:"num_words"`
		Filters   *string         `json:"filters"`
		Lower     *bool           `json:"lower"`
		Split     *string         `json:"split"`
		CharLevel bool            `json:"char_level"`
		OOVToken  *string         `json:"oov_token"`
		WordIndex json.RawMessage `json:"word_index"`
	} `json:"config"`
}

func LoadTokenizer(path string) (*Tokenizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenizer: %v", ErrLoad, err)
	}
	t, err := ParseTokenizer(b)
	if err != nil {
		return nil, fmt.Errorf("%w: tokenizer %s: %v", ErrLoad, path, err)
	}
	return t, nil
}

func ParseTokenizer(data []byte) (*Tokenizer, error) {
	var raw tokenizerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("bad json: %w", err)
	}
	if raw.ClassName != "" && raw.ClassName != "Tokenizer" {
		return nil, fmt.Errorf("unexpected class_name %q", raw.ClassName)
	}
	c := raw.Config

	wi, err := decodeWordIndex(c.WordIndex)
	if err != nil {
		return nil, err
	}
	if len(wi) == 0 {
		return nil, fmt.Errorf("word_index is empty")
	}

	t := &Tokenizer{
		wordIndex: wi,
		filters:   defaultFilters,
		lower:     true,
		split:     " ",
		charLevel: c.CharLevel,
	}
	if c.NumWords != nil {
		t.numWords = *c.NumWords
	}
	if c.Filters != nil {
		t.filters = *c.Filters
	}
	if c.Lower != nil {
		t.lower = *c.Lower
	}
	if c.Split != nil {
		t.split = *c.Split
	}
	if c.OOVToken != nil {
		idx, ok := wi[*c.OOVToken]
		if !ok {
			return nil, fmt.Errorf("oov_token %q missing from word_index", *c.OOVToken)
		}
		t.oovIndex = idx
	}
	return t, nil
}

// Keras кладёт word_index строкой с JSON внутри; принимаем и обычный объект.
func decodeWordIndex(raw json.RawMessage) (map[string]int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("word_index is missing")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("word_index: %w", err)
		}
		raw = []byte(s)
	}
	var wi map[string]int
	if err := json.Unmarshal(raw, &wi); err != nil {
		return nil, fmt.Errorf("word_index: %w", err)
	}
	return wi, nil
}

func (t *Tokenizer) VocabularySize() int { return len(t.wordIndex) }

// TextToSequence переводит текст в ids по политике артефакта.
func (t *Tokenizer) TextToSequence(text string) []int {
	var seq []string
	if t.charLevel {
		if t.lower {
			text = strings.ToLower(text)
		}
		for _, r := range text {
			seq = append(seq, string(r))
		}
	} else {
		seq = t.words(text)
	}

	ids := make([]int, 0, len(seq))
	for _, w := range seq {
		i, ok := t.wordIndex[w]
		switch {
		case ok && t.numWords > 0 && i >= t.numWords:
			if t.oovIndex != 0 {
				ids = append(ids, t.oovIndex)
			}
		case ok:
			ids = append(ids, i)
		case t.oovIndex != 0:
			ids = append(ids, t.oovIndex)
		}
	}
	return ids
}

// text_to_word_sequence: фильтры заменяются разделителем, пустые куски выкидываются.
func (t *Tokenizer) words(text string) []string {
	if t.lower {
		text = strings.ToLower(text)
	}
	sep := t.split
	if sep == "" {
		sep = " "
	}
	if t.filters != "" {
		var b strings.Builder
		b.Grow(len(text))
		for _, r := range text {
			if strings.ContainsRune(t.filters, r) {
				b.WriteString(sep)
				continue
			}
			b.WriteRune(r)
		}
		text = b.String()
	}
	var out []string
	for _, w := range strings.Split(text, sep) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
