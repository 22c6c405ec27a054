package command

import (
	"context"
	"sync"
)

// task представляет собой атомарную задачу для асинхронного выполнения.
type task func()

// workerPool - это пул горутин для асинхронной отправки команд.
type workerPool struct {
	workers int
	tasks   chan task
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
	// closing закрывается в начале stop и будит ожидающих места в очереди.
	closing chan struct{}
}

// newWorkerPool создает новый пул воркеров.
func newWorkerPool(workers, queueSize int) *workerPool {
	if queueSize < 0 {
		queueSize = 0
	}
	return &workerPool{
		workers: workers,
		tasks:   make(chan task, queueSize),
		closing: make(chan struct{}),
	}
}

// run запускает воркеров пула.
func (p *workerPool) run() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// enqueue добавляет задачу в очередь на выполнение.
// Блокируется, пока в очереди нет места, ctx не отменен и пул не остановлен.
func (p *workerPool) enqueue(ctx context.Context, t task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrDispatcherClosed
	}

	select {
	case p.tasks <- t:
		return nil
	case <-p.closing:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop закрывает очередь и дожидается, пока воркеры выполнят принятые задачи.
// Вызывается не более одного раза.
func (p *workerPool) stop(ctx context.Context) error {
	// После закрытия closing ни один enqueue не удерживает RLock в ожидании места.
	close(p.closing)

	p.mu.Lock()
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker - это основная функция горутины-воркера.
func (p *workerPool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t()
	}
}
