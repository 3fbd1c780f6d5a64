package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"viral-bot/api/internal/advisor"
	"viral-bot/api/internal/config"
	"viral-bot/api/internal/throttle"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	cases := []struct {
		err  error
		want time.Duration
	}{
		{nil, 0},
		{errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{errors.New("too many requests"), 3 * time.Second},
		{fmt.Errorf("get updates: %w", timeoutErr{}), 2 * time.Second},
		{errors.New("Bad Gateway"), time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, retryDelayFromError(tc.err), "%v", tc.err)
	}
}

func TestShortHash(t *testing.T) {
	h := shortHash("123:ABC")
	assert.Len(t, h, 16)
	assert.Regexp(t, `^[0-9a-f]{16}$`, h)
	assert.Equal(t, h, shortHash("123:ABC"))
	assert.NotEqual(t, h, shortHash("123:ABD"))
}

type fakePoller struct {
	mu      sync.Mutex
	offsets []int
	batches [][]tgbotapi.Update
	cancel  context.CancelFunc
}

func (f *fakePoller) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, cfg.Offset)
	if len(f.batches) == 0 {
		f.cancel()
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func TestRunPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakePoller{
		cancel: cancel,
		batches: [][]tgbotapi.Update{
			{{UpdateID: 5}, {UpdateID: 6}},
			{{UpdateID: 7}},
		},
	}
	var got []int

	done := make(chan struct{})
	go func() {
		runPolling(ctx, p, func(u tgbotapi.Update) { got = append(got, u.UpdateID) }, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.Equal(t, []int{5, 6, 7}, got)
	assert.Equal(t, []int{0, 7, 8}, p.offsets)
}

func TestNewLimiter(t *testing.T) {
	cfg := config.Default()
	_, ok := newLimiter(context.Background(), cfg, zap.NewNop()).(*throttle.Memory)
	assert.True(t, ok)

	// недоступный Redis → память
	cfg.RateLimit.RedisAddr = "127.0.0.1:1"
	_, ok = newLimiter(context.Background(), cfg, zap.NewNop()).(*throttle.Memory)
	assert.True(t, ok)
}

func TestNewAdvisor(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, advisor.Rules{}, newAdvisor(cfg, zap.NewNop()))

	cfg.Gemini.APIKey = "key"
	assert.IsType(t, advisor.Fallback{}, newAdvisor(cfg, zap.NewNop()))
}
