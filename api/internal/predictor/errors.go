package predictor

import "errors"

var (
	// ErrLoad — артефакт модели или токенизатора отсутствует либо не читается.
	ErrLoad = errors.New("predictor: load failed")
	// ErrNotLoaded возвращается, если предсказание запрошено до успешной загрузки.
	ErrNotLoaded = errors.New("predictor: model not loaded")
	// ErrEmptyInput — текст пустой или короче минимальной длины после обрезки пробелов.
	ErrEmptyInput = errors.New("predictor: text is empty or too short")
	// ErrInference — неожиданный сбой токенизации или скоринга.
	ErrInference = errors.New("predictor: inference failed")
)
