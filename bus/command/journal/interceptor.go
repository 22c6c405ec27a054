// Package journal записывает каждую выполненную команду в хранилище:
// тип, тело, статус, ошибку и длительность.
package journal

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/x-research-team/dtx-commander/bus/command"
)

var _ command.Interceptor = (*Interceptor)(nil)

// Interceptor реализует command.Interceptor и сохраняет запись о каждой команде.
// Ошибка сохранения записи логируется и не влияет на результат команды.
type Interceptor struct {
	storage Storage
	logger  *slog.Logger
	payload bool
	now     func() time.Time
}

// NewInterceptor создает новый экземпляр Interceptor.
func NewInterceptor(storage Storage, opts ...Option) *Interceptor {
	i := &Interceptor{
		storage: storage,
		logger:  slog.Default(),
		payload: true,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Intercept выполняет команду и сохраняет запись о результате.
func (i *Interceptor) Intercept(ctx context.Context, cmd any, next command.NextFunc) (any, error) {
	startedAt := i.now()
	result, err := next(ctx, cmd)
	duration := i.now().Sub(startedAt)

	cmdType, cmdID := command.DescribeCommand(cmd)
	record := &Record{
		ID:          uuid.New(),
		CommandType: cmdType,
		CommandID:   cmdID,
		Status:      status(ctx, err),
		StartedAt:   startedAt.UTC(),
		Duration:    duration,
	}
	if err != nil {
		record.Error = err.Error()
	}
	if md, ok := cmd.(command.Metadatable); ok && md.Metadata() != nil {
		record.Metadata = maps.Clone(md.Metadata())
	}
	if i.payload {
		payload, marshalErr := json.Marshal(cmd)
		if marshalErr != nil {
			i.logger.WarnContext(ctx, "не удалось сериализовать команду для журнала",
				slog.String("command_type", cmdType),
				slog.Any("error", marshalErr),
			)
		} else {
			record.Payload = payload
		}
	}

	// Отмененная команда тоже попадает в журнал.
	if saveErr := i.storage.Save(context.WithoutCancel(ctx), record); saveErr != nil {
		i.logger.ErrorContext(ctx, "не удалось сохранить запись журнала",
			slog.String("command_type", cmdType),
			slog.String("record_id", record.ID.String()),
			slog.Any("error", saveErr),
		)
	}

	return result, err
}

// status определяет итоговый статус команды так же, как его увидит вызывающая сторона.
func status(ctx context.Context, err error) string {
	switch {
	case command.IsCancelled(err), ctx.Err() != nil:
		return StatusCancelled
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusFailed
	}
}
