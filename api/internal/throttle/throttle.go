// Package throttle ограничивает частоту сообщений от одного пользователя.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Limiter interface {
	// Allow сообщает, можно ли обработать сообщение пользователя прямо сейчас.
	Allow(ctx context.Context, userID int64) (bool, error)
}

// pruneAbove — после стольких пользователей чистим тех, чьё окно уже истекло.
const pruneAbove = 1024

// Memory: одно сообщение за interval на пользователя. Отклонённые попытки окно не сдвигают.
type Memory struct {
	interval time.Duration
	now      func() time.Time

	mu    sync.Mutex
	users map[int64]*rate.Limiter
}

func NewMemory(interval time.Duration) *Memory {
	return &Memory{
		interval: interval,
		now:      time.Now,
		users:    make(map[int64]*rate.Limiter),
	}
}

func (m *Memory) Allow(_ context.Context, userID int64) (bool, error) {
	if m.interval <= 0 {
		return true, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	lim, ok := m.users[userID]
	if !ok {
		if len(m.users) >= pruneAbove {
			m.prune(now)
		}
		lim = rate.NewLimiter(rate.Every(m.interval), 1)
		m.users[userID] = lim
	}
	return lim.AllowN(now, 1), nil
}

// prune удаляет лимитеры с полным бакетом: для них новое окно эквивалентно старому.
func (m *Memory) prune(now time.Time) {
	for id, lim := range m.users {
		if lim.TokensAt(now) >= 1 {
			delete(m.users, id)
		}
	}
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// Redis — общий лимит для нескольких реплик бота: SET NX PX на пользователя.
type Redis struct {
	rdb      redis.Cmdable
	interval time.Duration
	prefix   string
}

func NewRedis(rdb redis.Cmdable, interval time.Duration) *Redis {
	return &Redis{rdb: rdb, interval: interval, prefix: "viralbot:throttle:"}
}

// Allow при ошибке Redis пропускает сообщение и возвращает ошибку для лога.
func (r *Redis) Allow(ctx context.Context, userID int64) (bool, error) {
	if r.interval <= 0 {
		return true, nil
	}
	ok, err := r.rdb.SetNX(ctx, fmt.Sprintf("%s%d", r.prefix, userID), 1, r.interval).Result()
	if err != nil {
		return true, fmt.Errorf("throttle redis: %w", err)
	}
	return ok, nil
}

// Dial подключается к Redis и проверяет соединение.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
