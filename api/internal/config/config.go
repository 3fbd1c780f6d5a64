package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Port string `koanf:"port"`

	Telegram   TelegramConfig   `koanf:"telegram"`
	Model      ModelConfig      `koanf:"model"`
	Prediction PredictionConfig `koanf:"prediction"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	Gemini     GeminiConfig     `koanf:"gemini"`
	Log        LogConfig        `koanf:"log"`
}

type TelegramConfig struct {
	BotToken   string  `koanf:"bot_token"`
	WebhookURL string  `koanf:"webhook_url"`
	AdminIDs   []int64 `koanf:"admin_ids"`
}

type ModelConfig struct {
	Path          string `koanf:"path"`
	TokenizerPath string `koanf:"tokenizer_path"`
	LibraryPath   string `koanf:"library_path"`
	Sessions      int    `koanf:"sessions"`
	InputName     string `koanf:"input_name"`
	OutputName    string `koanf:"output_name"`
}

type PredictionConfig struct {
	Threshold     float64       `koanf:"threshold"`
	MinTextLength int           `koanf:"min_text_length"`
	MaxTextLength int           `koanf:"max_text_length"`
	Workers       int           `koanf:"workers"`
	Timeout       time.Duration `koanf:"timeout"`
}

type RateLimitConfig struct {
	Interval  time.Duration `koanf:"interval"`
	RedisAddr string        `koanf:"redis_addr"`
}

type GeminiConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Имена переменных окружения совпадают с .env бота.
var envKeys = map[string]string{
	"PORT":                            "port",
	"BOT_TOKEN":                       "telegram.bot_token",
	"TELEGRAM_BOT_TOKEN":              "telegram.bot_token",
	"WEBHOOK_URL":                     "telegram.webhook_url",
	"ADMIN_IDS":                       "telegram.admin_ids",
	"ML_MODEL_PATH":                   "model.path",
	"TOKENIZER_PATH":                  "model.tokenizer_path",
	"ONNXRUNTIME_SHARED_LIBRARY_PATH": "model.library_path",
	"ML_SESSIONS":                     "model.sessions",
	"ML_INPUT_NAME":                   "model.input_name",
	"ML_OUTPUT_NAME":                  "model.output_name",
	"VIRAL_THRESHOLD":                 "prediction.threshold",
	"MIN_TEXT_LENGTH":                 "prediction.min_text_length",
	"MAX_TEXT_LENGTH":                 "prediction.max_text_length",
	"PREDICT_WORKERS":                 "prediction.workers",
	"PREDICT_TIMEOUT":                 "prediction.timeout",
	"RATE_LIMIT":                      "rate_limit.interval",
	"REDIS_ADDR":                      "rate_limit.redis_addr",
	"GEMINI_API_KEY":                  "gemini.api_key",
	"GEMINI_MODEL":                    "gemini.model",
	"LOG_LEVEL":                       "log.level",
	"LOG_FORMAT":                      "log.format",
}

func Default() *Config {
	return &Config{
		Port: "8080",
		Model: ModelConfig{
			Path:          "models/complete_model.onnx",
			TokenizerPath: "tokenizers/tokenizer.json",
			Sessions:      1,
		},
		Prediction: PredictionConfig{
			Threshold:     0.5,
			MinTextLength: 10,
			MaxTextLength: 4000,
			Workers:       4,
			Timeout:       30 * time.Second,
		},
		RateLimit: RateLimitConfig{Interval: time.Second},
		Gemini:    GeminiConfig{Model: "gemini-2.5-flash"},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load: .env → значения по умолчанию → YAML (CONFIG_FILE или ./config.yaml) → окружение.
func Load() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	k := koanf.New(".")

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envValue возвращает "" для чужих и пустых переменных (koanf их пропустит).
// ADMIN_IDS принимается как "1,2" и как "[1, 2]".
func envValue(name, value string) (string, any) {
	key := envKeys[name]
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return "", nil
	}
	if name == "ADMIN_IDS" {
		value = strings.Trim(value, "[]")
		var ids []string
		for _, f := range strings.Split(value, ",") {
			if f = strings.TrimSpace(f); f != "" {
				ids = append(ids, f)
			}
		}
		return key, ids
	}
	return key, value
}

func (c *Config) Validate() error {
	var errs []error
	p := c.Prediction
	if p.Threshold < 0 || p.Threshold > 1 {
		errs = append(errs, fmt.Errorf("VIRAL_THRESHOLD must be in [0,1], got %v", p.Threshold))
	}
	if p.MinTextLength < 1 {
		errs = append(errs, fmt.Errorf("MIN_TEXT_LENGTH must be >= 1, got %d", p.MinTextLength))
	}
	if p.MaxTextLength < p.MinTextLength {
		errs = append(errs, fmt.Errorf("MAX_TEXT_LENGTH (%d) < MIN_TEXT_LENGTH (%d)", p.MaxTextLength, p.MinTextLength))
	}
	if p.Workers < 1 {
		errs = append(errs, fmt.Errorf("PREDICT_WORKERS must be >= 1, got %d", p.Workers))
	}
	if p.Timeout <= 0 {
		errs = append(errs, errors.New("PREDICT_TIMEOUT must be > 0"))
	}
	if c.RateLimit.Interval < 0 {
		errs = append(errs, errors.New("RATE_LIMIT must be >= 0"))
	}
	return errors.Join(errs...)
}

// HasBotToken отсекает пустой токен и заглушку из .env.example.
func (c *Config) HasBotToken() bool {
	t := strings.TrimSpace(c.Telegram.BotToken)
	return t != "" && t != "your_bot_token_here"
}

func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}
