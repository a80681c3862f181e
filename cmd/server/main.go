package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ats-engine/internal/api/handler"
	"ats-engine/internal/api/router"
	"ats-engine/internal/batch"
	"ats-engine/internal/config"
	"ats-engine/internal/logger"
	"ats-engine/internal/outbox"
	"ats-engine/internal/processor"
	"ats-engine/internal/storage"
	"ats-engine/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	version     = "1.0.0"      //nolint:gochecknoglobals
	serviceName = "ats-engine" //nolint:gochecknoglobals
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	_ = godotenv.Load()

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ats-engine: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	log := logger.For("main")
	hlog.SetLogger(hertzzerolog.From(logger.For("hertz")))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serviceNameCfg := cfg.Tracing.ServiceName
	if serviceNameCfg == "" {
		serviceNameCfg = serviceName
	}
	shutdownTracing, err := tracing.InitProvider(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		ServiceName: serviceNameCfg,
		Version:     version,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error().Err(err).Msg("关闭链路追踪失败")
		}
	}()

	st, err := storage.NewStorage(ctx, cfg, logger.For("storage"))
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}
	defer st.Close(log)
	log.Info().
		Bool("redis", st.Redis != nil).
		Bool("rabbitmq", st.RabbitMQ != nil).
		Bool("minio", st.MinIO != nil).
		Msg("存储服务初始化完成")

	comps, err := processor.NewComponents(cfg, st, logger.For("processor"))
	if err != nil {
		return err
	}
	log.Info().Str("knowledge_version", comps.Knowledge.Version()).Bool("ai", cfg.UseAI()).Msg("评估流水线初始化完成")

	lockTTL := config.GetDuration(cfg.Batch.LockTTL, 30*time.Minute)
	progressTTL := config.GetDuration(cfg.Batch.ProgressTTL, 24*time.Hour)

	// Redis 不可用时批处理不加锁、不记录进度
	var (
		locker   batch.Locker
		progress batch.ProgressStore
		reader   handler.ProgressReader
	)
	if st.Redis != nil {
		locker, progress, reader = st.Redis, st.Redis, st.Redis
	}

	g, gctx := errgroup.WithContext(ctx)

	var dispatcher handler.Dispatcher
	if st.RabbitMQ != nil {
		runner := batch.NewRunner(comps.Orchestrator, locker, progress, lockTTL, progressTTL, logger.For("batch_runner"))
		consumer := batch.NewConsumer(st.RabbitMQ, runner, cfg.RabbitMQ.BatchRunQueue, cfg.RabbitMQ.PrefetchCount, logger.For("batch_consumer"))
		dispatcher = batch.NewDispatcher(st.Candidates, st.RabbitMQ, locker, progress, batch.DispatcherConfig{
			Exchange:      cfg.RabbitMQ.BatchExchange,
			RoutingKey:    cfg.RabbitMQ.BatchRunRoutingKey,
			ProgressTTL:   progressTTL,
			MaxCandidates: cfg.Batch.MaxCandidates,
		}, logger.For("batch_dispatcher"))

		relay := outbox.NewMessageRelay(st.MySQL.DB(), st.RabbitMQ, logger.For("outbox"),
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RetryInterval, 5*time.Second)))

		g.Go(func() error { return consumer.Start(gctx) })
		g.Go(func() error { return relay.Run(gctx) })
	} else {
		log.Warn().Msg("RabbitMQ 不可用，批量重评分接口和事件投递已停用")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithExitWaitTime(5*time.Second),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		hlog.CtxDebugf(c, "%s %s status=%d cost=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start))
	})

	eh := handler.NewEvaluationHandler(comps.Orchestrator, dispatcher, reader, comps.Knowledge.Version(), logger.For("api"))
	router.RegisterRoutes(h, eh, cfg.Auth.APIKeys)

	g.Go(func() error {
		log.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动")
		if err := h.Run(); err != nil && gctx.Err() == nil {
			return fmt.Errorf("HTTP服务器异常退出: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("接收到终止信号，正在优雅退出...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return h.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("优雅退出完成")
	return nil
}
