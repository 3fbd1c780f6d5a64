// Command predict прогоняет тексты через модель без Telegram:
//
//	predict -model models/complete_model.onnx -tokenizer tokenizers/tokenizer.json "текст 1" "текст 2"
//	cat posts.txt | predict
//
// На каждый текст печатается одна строка JSON.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"viral-bot/api/internal/config"
	"viral-bot/api/internal/logger"
	"viral-bot/api/internal/predictor"
)

type errorLine struct {
	Error string `json:"error"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	def := config.Default()

	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	modelPath := fs.String("model", envOr("ML_MODEL_PATH", def.Model.Path), "path to the ONNX model")
	tokPath := fs.String("tokenizer", envOr("TOKENIZER_PATH", def.Model.TokenizerPath), "path to the tokenizer JSON")
	threshold := fs.Float64("threshold", predictor.DefaultThreshold, "viral threshold in [0,1]")
	minChars := fs.Int("min-chars", predictor.DefaultMinChars, "minimum text length after trimming")
	lib := fs.String("lib", os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"), "path to libonnxruntime")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *threshold < 0 || *threshold > 1 {
		fmt.Fprintln(stderr, "threshold must be in [0,1]")
		return 2
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.NewTo(config.LogConfig{Level: level, Format: "console"}, zapcore.Lock(zapcore.AddSync(stderr)))
	defer func() { _ = log.Sync() }()

	eng, err := predictor.Load(*modelPath, *tokPath,
		predictor.WithMinChars(*minChars),
		predictor.WithRuntime(predictor.RuntimeConfig{LibraryPath: *lib, Sessions: 1}),
	)
	if err != nil {
		log.Error("load", zap.Error(err))
		return 1
	}
	defer func() { _ = eng.Close() }()
	log.Debug("model loaded", zap.String("model", *modelPath), zap.String("tokenizer", *tokPath))

	texts := fs.Args()
	if len(texts) == 0 {
		texts, err = readLines(stdin)
		if err != nil {
			log.Error("stdin", zap.Error(err))
			return 1
		}
	}
	if failed := predictAll(eng, texts, *threshold, stdout); failed > 0 {
		log.Warn("some texts failed", zap.Int("failed", failed), zap.Int("total", len(texts)))
	}
	return 0
}

// predictAll печатает по строке JSON на текст и возвращает число ошибок.
func predictAll(eng *predictor.Engine, texts []string, threshold float64, w io.Writer) int {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	failed := 0
	for _, br := range eng.PredictBatch(texts, threshold) {
		if br.Err != nil {
			failed++
			_ = enc.Encode(errorLine{Error: br.Err.Error()})
			continue
		}
		_ = enc.Encode(br.Result)
	}
	return failed
}

func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			out = append(out, s)
		}
	}
	return out, sc.Err()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
