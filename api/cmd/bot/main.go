package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"viral-bot/api/internal/advisor"
	"viral-bot/api/internal/config"
	"viral-bot/api/internal/httpserver"
	"viral-bot/api/internal/logger"
	"viral-bot/api/internal/predictor"
	"viral-bot/api/internal/service"
	"viral-bot/api/internal/telegram"
	"viral-bot/api/internal/throttle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	if !cfg.HasBotToken() {
		log.Fatal("BOT_TOKEN is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Model ---
	// без модели бот всё равно стартует и отвечает "модель не загружена"
	engine, err := predictor.Load(cfg.Model.Path, cfg.Model.TokenizerPath,
		predictor.WithMinChars(cfg.Prediction.MinTextLength),
		predictor.WithRuntime(predictor.RuntimeConfig{
			LibraryPath: cfg.Model.LibraryPath,
			Sessions:    cfg.Model.Sessions,
			InputName:   cfg.Model.InputName,
			OutputName:  cfg.Model.OutputName,
		}),
	)
	if err != nil {
		log.Error("model not loaded", zap.Error(err))
	} else {
		log.Info("model loaded",
			zap.String("model", cfg.Model.Path),
			zap.String("tokenizer", cfg.Model.TokenizerPath),
		)
	}
	defer func() { _ = engine.Close() }()

	svc := service.New(engine, service.Options{Workers: cfg.Prediction.Workers}, log, service.NewMetrics(reg))
	defer svc.Close()

	// --- Telegram bot ---
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}
	bot.Debug = false
	log.Info("authorized", zap.String("bot", bot.Self.UserName))

	r := &telegram.Router{
		Bot:       bot,
		Predictor: svc,
		Limiter:   newLimiter(ctx, cfg, log),
		Advisor:   newAdvisor(cfg, log),
		Cfg:       cfg,
		Log:       log,
	}

	// каждый апдейт в своей горутине; при остановке дожидаемся начатых
	var inflight sync.WaitGroup
	hctx := context.WithoutCancel(ctx)
	handle := func(upd tgbotapi.Update) {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			r.HandleUpdate(hctx, upd)
		}()
	}

	mux := http.NewServeMux()
	httpserver.Register(mux, svc.Loaded, reg)
	addr := "0.0.0.0:" + cfg.Port

	// --- Choose mode: Webhook vs Polling ---
	if webhookURL := strings.TrimSpace(cfg.Telegram.WebhookURL); webhookURL != "" {
		runWebhook(ctx, bot, mux, addr, webhookURL, handle, log)
	} else {
		runPollingMode(ctx, bot, mux, addr, handle, log)
	}

	inflight.Wait()
	log.Info("stopped")
}

func newLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) throttle.Limiter {
	if addr := strings.TrimSpace(cfg.RateLimit.RedisAddr); addr != "" {
		rdb, err := throttle.Dial(ctx, addr)
		if err == nil {
			log.Info("throttle: redis", zap.String("addr", addr))
			return throttle.NewRedis(rdb, cfg.RateLimit.Interval)
		}
		log.Warn("throttle: redis unavailable, using memory", zap.Error(err))
	}
	return throttle.NewMemory(cfg.RateLimit.Interval)
}

func newAdvisor(cfg *config.Config, log *zap.Logger) advisor.Advisor {
	rules := advisor.NewRules()
	if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
		return rules
	}
	return advisor.Fallback{
		Primary:   advisor.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.Model),
		Secondary: rules,
		Log:       log,
	}
}

// ---------------- Modes -----------------

func runWebhook(ctx context.Context, bot *tgbotapi.BotAPI, mux *http.ServeMux, addr, baseURL string, handle func(tgbotapi.Update), log *zap.Logger) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		log.Fatal("webhook", zap.Error(err))
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		log.Fatal("set webhook", zap.Error(err))
	}
	mux.Handle(path, httpserver.Webhook(bot.HandleUpdate, handle))

	log.Info("webhook mode", zap.String("addr", addr), zap.String("path", path))
	if err := httpserver.Serve(ctx, addr, mux, log); err != nil {
		log.Error("http", zap.Error(err))
	}
}

func runPollingMode(ctx context.Context, bot *tgbotapi.BotAPI, mux *http.ServeMux, addr string, handle func(tgbotapi.Update), log *zap.Logger) {
	// health/metrics, хотя для polling они не обязательны
	go func() {
		if err := httpserver.Serve(ctx, addr, mux, log); err != nil {
			log.Error("http", zap.Error(err))
		}
	}()

	// getUpdates не работает, пока установлен вебхук
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.Warn("delete webhook", zap.Error(err))
	}

	log.Info("polling mode")
	runPolling(ctx, bot, handle, log)
}

// ---------------- Polling loop -----------------

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return 2 * time.Second
		}
	}
	return 1 * time.Second
}

type updatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// runPolling — устойчивый long polling с backoff, без log.Fatal/os.Exit.
func runPolling(ctx context.Context, bot updatesGetter, handle func(tgbotapi.Update), log *zap.Logger) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		if ctx.Err() != nil {
			log.Info("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := retryDelayFromError(err)
			d = max(baseDelay, min(maxDelay, d))
			log.Warn("polling error", zap.Error(err), zap.Duration("retry_in", d))
			sleep(ctx, d)
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 {
			sleep(ctx, 200*time.Millisecond)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// лёгкий хэш для пути вебхука (не крипто, но стабильно для токена)
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	// 16-символный hex
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
