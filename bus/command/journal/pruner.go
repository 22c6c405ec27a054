package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pruner - это фоновый процесс, который удаляет из хранилища записи старше срока хранения.
type Pruner struct {
	storage   Storage
	done      chan struct{}
	stopped   chan struct{}
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
	startOnce sync.Once
	stopOnce  sync.Once
	now       func() time.Time
}

// NewPruner создает новый экземпляр Pruner.
func NewPruner(storage Storage, opts ...PrunerOption) *Pruner {
	p := &Pruner{
		storage:   storage,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		interval:  time.Minute,        // Значение по умолчанию
		retention: 7 * 24 * time.Hour, // Значение по умолчанию
		logger:    slog.Default(),     // Логгер по умолчанию
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start запускает фоновый процесс. Процесс завершается по Stop или отмене ctx.
func (p *Pruner) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		go p.run(ctx)
	})
}

func (p *Pruner) run(ctx context.Context) {
	defer close(p.stopped)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "очистка журнала команд запущена", slog.Duration("retention", p.retention))
	for {
		select {
		case <-ticker.C:
			if _, err := p.PruneOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "ошибка очистки журнала команд", slog.Any("error", err))
			}
		case <-p.done:
			p.logger.InfoContext(ctx, "очистка журнала команд остановлена")
			return
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "очистка журнала команд остановлена", slog.Any("error", ctx.Err()))
			return
		}
	}
}

// PruneOnce выполняет один проход очистки.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	removed, err := p.storage.Prune(ctx, p.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		p.logger.InfoContext(ctx, "удалены устаревшие записи журнала", slog.Int64("count", removed))
	}
	return removed, nil
}

// Stop останавливает фоновый процесс и дожидается его завершения.
// После Stop повторный Start ничего не делает.
func (p *Pruner) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.startOnce.Do(func() {
		close(p.stopped)
	})
	<-p.stopped
}
