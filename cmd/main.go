package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Tobby-pro/New-Rental-Stack/config"
	"github.com/Tobby-pro/New-Rental-Stack/internal/auth"
	"github.com/Tobby-pro/New-Rental-Stack/internal/metrics"
	"github.com/Tobby-pro/New-Rental-Stack/internal/mirror"
	"github.com/Tobby-pro/New-Rental-Stack/internal/postgres"
	"github.com/Tobby-pro/New-Rental-Stack/internal/queue"
	"github.com/Tobby-pro/New-Rental-Stack/internal/realtime"
	"github.com/Tobby-pro/New-Rental-Stack/internal/service"
	grpcx "github.com/Tobby-pro/New-Rental-Stack/internal/transport/grpc"
	httpx "github.com/Tobby-pro/New-Rental-Stack/internal/transport/http"
	httpmw "github.com/Tobby-pro/New-Rental-Stack/internal/transport/http/middleware"
	"github.com/Tobby-pro/New-Rental-Stack/internal/transport/ws"
	"github.com/Tobby-pro/New-Rental-Stack/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting rental-chat",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- auth ---
	authCfg := auth.Config{
		Secret:    cfg.Auth.Secret,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		ClockSkew: cfg.Auth.ClockSkew,
	}
	if authCfg.Secret == "" {
		if authCfg.PublicKey, err = auth.LoadRSAPublicKeyFromPEM(cfg.Auth.PublicKeyPath); err != nil {
			log.Fatalf("jwt public key: %v", err)
		}
	}
	verifier, err := auth.NewVerifier(authCfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	// --- postgres ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres.ToPGConfig())
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	convRepo := postgres.NewConversationRepository(pool)
	msgRepo := postgres.NewMessageRepository(pool)
	dirRepo := postgres.NewDirectoryRepository(pool)

	// --- redis mirror + repair queue ---
	rdb, err := mirror.NewClient(ctx, cfg.Redis.ToMirrorConfig())
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()
	mirrorStore := mirror.NewStore(rdb,
		mirror.WithMessageTTL(cfg.Mirror.MessageTTL),
		mirror.WithTxRetries(cfg.Mirror.TxRetries),
	)

	qRedis := queue.RedisConfig{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	projector := queue.NewProjector(qRedis, queue.ClientConfig{
		Queue:     cfg.Queue.Name,
		MaxRetry:  cfg.Queue.MaxRetry,
		UniqueTTL: cfg.Queue.UniqueTTL,
		Timeout:   cfg.Queue.TaskTimeout,
	})
	defer projector.Close()

	// --- realtime hub & services ---
	hub := realtime.NewHub(m)
	signaling := service.NewSignalingService(hub)
	hub.OnDisconnect(signaling.HostGone)

	convSvc := service.NewConversationService(convRepo, dirRepo, cfg.Store.Timeout, m)
	msgSvc := service.NewMessageService(service.MessageServiceDeps{
		Conversations: convRepo,
		Messages:      msgRepo,
		Directory:     dirRepo,
		Mirror:        mirrorStore,
		Projector:     projector,
		Hub:           hub,
		Metrics:       m,
		StoreTimeout:  cfg.Store.Timeout,
		MirrorTimeout: cfg.Store.MirrorTimeout,
	})

	worker := queue.NewWorker(qRedis, queue.WorkerConfig{
		Concurrency: cfg.Queue.Concurrency,
		Queue:       cfg.Queue.Name,
	}, msgSvc)
	if err := worker.Start(); err != nil {
		log.Fatalf("mirror worker: %v", err)
	}

	// --- WS ---
	wsServer := ws.NewServer(ws.Config{
		SendBuffer:      cfg.Realtime.SendBuffer,
		PingEvery:       cfg.Realtime.PingInterval,
		EventsPerSecond: cfg.Realtime.EventsPerSecond,
		EventBurst:      cfg.Realtime.EventBurst,
		HandlerTimeout:  cfg.Store.Timeout + cfg.Store.MirrorTimeout,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
	}, hub, verifier, convSvc, msgSvc, signaling, m)

	// --- HTTP ---
	limiter := httpmw.NewRateLimiter(rate.Limit(cfg.HTTP.RateLimit.RPS), cfg.HTTP.RateLimit.Burst, 2*cfg.HTTP.IdleTimeout)
	defer limiter.Stop()

	handler := httpx.NewHandler(convSvc, msgSvc, hub)
	router := httpx.NewRouter(httpx.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, handler, verifier, limiter, m, wsServer.HandleWS)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC health ---
	grpcSrv := grpcx.NewServer(grpcx.Config{
		ProbeInterval: cfg.GRPC.ProbeInterval,
		Reflection:    cfg.GRPC.Reflection,
	}, map[string]grpcx.Check{
		"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, pool) },
		"redis":    mirrorStore.Ping,
	})
	go grpcSrv.RunProbes(ctx)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	grpcSrv.GracefulStop()
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	worker.Shutdown()
	slog.Info("stopped")
}
