package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"interviewoj/internal/common/cache"
	"interviewoj/internal/common/db"
	commonmw "interviewoj/internal/common/http/middleware"
	"interviewoj/internal/common/mq"
	"interviewoj/internal/common/storage"
	"interviewoj/internal/judge/executor/judge0"
	"interviewoj/internal/judge/harness"
	judgeService "interviewoj/internal/judge/service"
	problemController "interviewoj/internal/problem/controller"
	problemRepo "interviewoj/internal/problem/repository"
	problemService "interviewoj/internal/problem/service"
	"interviewoj/internal/submit/controller"
	submitRepo "interviewoj/internal/submit/repository"
	"interviewoj/internal/submit/service"
	"interviewoj/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_api.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, err := db.Open(appCfg.Database.Driver, &appCfg.Database.PoolConfig)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = database.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	packs := problemRepo.NewCasePackStore(objStorage, appCfg.MinIO.Bucket, appCfg.Cache.PackTTL, appCfg.Cache.PackEntries)
	problems := problemRepo.NewProblemRepositoryWithTTL(database, redisCache, packs, appCfg.Cache.ProblemTTL, appCfg.Cache.ProblemEmptyTTL)
	submissions := submitRepo.NewSubmissionRepositoryWithTTL(database, redisCache, appCfg.Cache.SubmissionTTL, appCfg.Cache.SubmissionEmpty, appCfg.Cache.HistoryTTL)

	sandbox, err := judge0.New(appCfg.Judge0)
	if err != nil {
		logger.Error(context.Background(), "init judge0 client failed", zap.Error(err))
		return
	}
	judge, err := judgeService.NewJudgeService(judgeService.Config{
		Executor:                 sandbox,
		Builder:                  harness.NewBuilder(appCfg.Languages),
		WorkerPoolSize:           appCfg.Judge.WorkerPoolSize,
		BatchSize:                appCfg.Judge.BatchSize,
		MaxConcurrentSubmissions: appCfg.Judge.MaxConcurrentSubmissions,
		AcquireTimeout:           appCfg.Judge.AcquireTimeout,
		OrchestrationTimeout:     appCfg.Judge.OrchestrationTimeout,
		MaxCodeBytes:             appCfg.Judge.MaxCodeBytes,
		CompileShortCircuit:      *appCfg.Judge.CompileShortCircuit,
	})
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}

	tracker := service.NewSolvedTracker(redisCache, submissions)
	submitCfg := service.Config{
		Problems:       problems,
		Judge:          judge,
		SubmissionRepo: submissions,
		Cache:          redisCache,
		Tracker:        tracker,
		JudgedTopic:    appCfg.Kafka.JudgedTopic,
		ComputeBeats:   *appCfg.Judge.ComputeBeats,
		RateLimit:      appCfg.RateLimit,
		Timeouts:       appCfg.Timeouts,
	}

	var mqClient *mq.KafkaQueue
	if appCfg.Kafka.Enabled() {
		mqClient, err = startEventPipeline(appCfg.Kafka, tracker)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Close()
		}()
		submitCfg.Events = mqClient
	} else {
		logger.Info(context.Background(), "kafka disabled, recording solved problems inline")
	}

	submitService, err := service.NewSubmitService(submitCfg)
	if err != nil {
		logger.Error(context.Background(), "init submit service failed", zap.Error(err))
		return
	}

	problemSvc := problemService.NewProblemService(problems, judge.Languages())

	httpServer := buildHTTPServer(appCfg.Server, submitService, problemSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge api started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Any("languages", judge.Languages()),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	if mqClient != nil {
		_ = mqClient.Stop()
	}
}

func startEventPipeline(cfg KafkaSection, tracker *service.SolvedTracker) (*mq.KafkaQueue, error) {
	queue, err := mq.NewKafkaQueue(cfg.KafkaConfig)
	if err != nil {
		return nil, err
	}
	opts := mq.SubscribeOptions{
		ConsumerGroup: cfg.ConsumerGroup,
		Concurrency:   cfg.Concurrency,
	}
	opts.SetDefaults()
	if err := queue.Subscribe(context.Background(), cfg.JudgedTopic, tracker.HandleMessage, &opts); err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("subscribe %s failed: %w", cfg.JudgedTopic, err)
	}
	if err := queue.Start(); err != nil {
		_ = queue.Close()
		return nil, fmt.Errorf("start consumer failed: %w", err)
	}
	return queue, nil
}

func buildHTTPServer(cfg ServerConfig, submitService controller.SubmissionService, problems problemController.ProblemReader) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api/v1")
	controller.NewSubmitController(submitService).Register(api)
	problemController.NewProblemController(problems).Register(api)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
