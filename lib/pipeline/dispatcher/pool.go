package dispatcher

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

type pool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	done    bool
	logger  *log.Entry
}

// NewPool пул из workers исполнителей с буфером задач queueSize
func NewPool(workers, queueSize int) Provider {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &pool{
		workers: workers,
		tasks:   make(chan Task, queueSize),
		logger:  log.WithField("dispatcher", "pool"),
	}
}

func (p *pool) Start(ctx context.Context, handler Handler) error {
	for n := 0; n < p.workers; n++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-p.tasks:
					runTask(ctx, handler, task, p.logger)
				}
			}
		}()
	}
	go func() {
		<-ctx.Done()
		p.mu.Lock()
		p.done = true
		p.mu.Unlock()
	}()
	p.logger.WithField("workers", p.workers).Info("пул обработки запущен")
	return nil
}

func (p *pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.done {
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait ожидание завершения исполнителей после отмены контекста
func (p *pool) Wait() {
	p.wg.Wait()
}
