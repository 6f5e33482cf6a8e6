package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/hibiken/asynq"
)

const DefaultQueue = "mirror"

// Repairer rebuilds mirror entries from the ledger.
type Repairer interface {
	Reproject(ctx context.Context, messageID int64) error
	ReapplyState(ctx context.Context, ids []int64, state domain.DeliveryState) error
}

type WorkerConfig struct {
	Concurrency int
	Queue       string
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(redis RedisConfig, cfg WorkerConfig, r Repairer) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}

	srv := asynq.NewServer(redis.opt(), asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      newAsynqLogger(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			slog.Warn("mirror repair failed", "type", task.Type(), "retry", retried, "max_retry", maxRetry, "err", err)
		}),
	})
	return &Worker{server: srv, mux: NewMux(r)}
}

// NewMux routes repair tasks to r.
func NewMux(r Repairer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeProjectMessage, func(ctx context.Context, t *asynq.Task) error {
		var p ProjectMessagePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return skipIfGone(r.Reproject(ctx, p.MessageID))
	})
	mux.HandleFunc(TypeAdvanceState, func(ctx context.Context, t *asynq.Task) error {
		var p AdvanceStatePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		return skipIfGone(r.ReapplyState(ctx, p.MessageIDs, p.State))
	})
	return mux
}

// A message missing from the ledger will never appear; retrying is pointless.
func skipIfGone(err error) error {
	if err != nil && (errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument)) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// Start processes tasks in the background until Shutdown.
func (w *Worker) Start() error { return w.server.Start(w.mux) }

func (w *Worker) Shutdown() { w.server.Shutdown() }

type asynqLogger struct {
	log *slog.Logger
}

func newAsynqLogger() *asynqLogger {
	return &asynqLogger{log: slog.Default().With("component", "asynq")}
}

func (l *asynqLogger) Debug(args ...any) { l.log.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.log.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.log.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.log.Error(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...any) { l.log.Error(fmt.Sprint(args...)) }
