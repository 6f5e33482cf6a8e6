package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/hibiken/asynq"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) opt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.Addr, Password: c.Password, DB: c.DB}
}

type ClientConfig struct {
	Queue     string
	MaxRetry  int
	UniqueTTL time.Duration
	Timeout   time.Duration
}

// Projector enqueues mirror repair jobs.
type Projector struct {
	client *asynq.Client
	cfg    ClientConfig
}

func NewProjector(redis RedisConfig, cfg ClientConfig) *Projector {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 10
	}
	if cfg.UniqueTTL <= 0 {
		cfg.UniqueTTL = time.Minute
	}
	return &Projector{client: asynq.NewClient(redis.opt()), cfg: cfg}
}

func (p *Projector) options() []asynq.Option {
	opts := []asynq.Option{
		asynq.Queue(p.cfg.Queue),
		asynq.MaxRetry(p.cfg.MaxRetry),
		asynq.Unique(p.cfg.UniqueTTL),
	}
	if p.cfg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(p.cfg.Timeout))
	}
	return opts
}

func (p *Projector) enqueue(ctx context.Context, t *asynq.Task) error {
	info, err := p.client.EnqueueContext(ctx, t, p.options()...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		// same repair already pending
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", t.Type(), err)
	}
	slog.Debug("mirror repair enqueued", "type", t.Type(), "task_id", info.ID, "queue", info.Queue)
	return nil
}

func (p *Projector) EnqueueProjection(ctx context.Context, messageID int64) error {
	t, err := NewProjectMessageTask(messageID)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, t)
}

func (p *Projector) EnqueueStateRepair(ctx context.Context, ids []int64, state domain.DeliveryState) error {
	t, err := NewAdvanceStateTask(ids, state)
	if err != nil {
		return err
	}
	return p.enqueue(ctx, t)
}

func (p *Projector) Close() error { return p.client.Close() }
