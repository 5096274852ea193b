package lock

import (
	"context"
	"sync"
	"time"
)

var (
	lockMap sync.Map
)

const pollInterval = 20 * time.Millisecond

// Key ключ блокировки, например Key("aggregation", submissionID)
func Key(scope, id string) string {
	return scope + ":" + id
}

// WithDelay выполняет safeCode под блокировкой key, ожидая освобождения не дольше wait.
// success = false, если блокировку не удалось получить за wait или контекст завершен
func WithDelay(ctx context.Context, key string, wait time.Duration, safeCode func() error) (success bool, err error) {
	isTimeout := time.After(wait)
	for {
		if _, loaded := lockMap.LoadOrStore(key, true); !loaded {
			break
		}
		select {
		case <-isTimeout:
			return false, nil
		case <-ctx.Done():
			return false, nil
		case <-time.After(pollInterval):
		}
	}
	defer lockMap.Delete(key)
	return true, safeCode()
}

// IsLocked занят ли ключ в данный момент
func IsLocked(key string) bool {
	_, ok := lockMap.Load(key)
	return ok
}
