package lock

import (
	"context"
	"sync"
	"sync/atomic"
)

// ResourceLock ограничивает число одновременных обращений к тяжелому ресурсу
// (процесс распознавания речи, сервис анализа видео).
/*
func Transcribe(ctx context.Context) {
	if !res.Acquire(ctx, "Transcribe") {
		return // Контекст завершен
	}
	defer res.Release("Transcribe")
	...
}
*/
type ResourceLock struct {
	mu        sync.Mutex
	cond      *sync.Cond
	capacity  int
	holders   map[string]int
	inUse     int
	waitCount int32
	stopped   bool
}

func NewResourceLock(ctx context.Context, capacity int) *ResourceLock {
	if capacity < 1 {
		capacity = 1
	}
	lock := &ResourceLock{
		capacity: capacity,
		holders:  map[string]int{},
	}
	lock.cond = sync.NewCond(&lock.mu)
	go func() {
		<-ctx.Done()
		lock.Stop()
	}()
	return lock
}

// Acquire занимает слот ресурса, false - контекст завершен или блокировка остановлена
func (c *ResourceLock) Acquire(ctx context.Context, functionName string) bool {
	atomic.AddInt32(&c.waitCount, 1)
	defer atomic.AddInt32(&c.waitCount, -1)

	// будим ожидающих при отмене контекста, иначе Wait не вернется
	stopWatch := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stopWatch()

	c.mu.Lock()
	defer c.mu.Unlock()

	for c.inUse >= c.capacity && !c.stopped {
		if ctx.Err() != nil {
			return false
		}
		c.cond.Wait()
	}
	if c.stopped || ctx.Err() != nil {
		return false
	}
	c.inUse++
	c.holders[functionName]++
	return true
}

// Release освобождает слот
func (c *ResourceLock) Release(functionName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.holders[functionName] == 0 {
		return
	}
	c.holders[functionName]--
	if c.holders[functionName] == 0 {
		delete(c.holders, functionName)
	}
	c.inUse--
	c.cond.Broadcast()
}

// Stop останавливает все ожидающие горутины
func (c *ResourceLock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.cond.Broadcast()
}

// WaitCount возвращает количество ожидающих горутин
func (c *ResourceLock) WaitCount() int {
	return int(atomic.LoadInt32(&c.waitCount))
}

// InUse количество занятых слотов
func (c *ResourceLock) InUse() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inUse
}
