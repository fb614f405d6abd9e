package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/z-wentao/ytscribe/pkg/config"
	"github.com/z-wentao/ytscribe/pkg/logging"
	"github.com/z-wentao/ytscribe/pkg/pipeline"
	"github.com/z-wentao/ytscribe/pkg/queue"
	"github.com/z-wentao/ytscribe/pkg/storage"
	"github.com/z-wentao/ytscribe/pkg/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. 加载配置
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logger.Info("✓ 配置加载成功")

	ctx := context.Background()

	// 2. 初始化存储和队列
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("初始化存储失败: %w", err)
	}
	defer store.Close()
	logger.Info("✓ 任务存储已就绪", slog.String("type", cfg.Storage.Type))

	q, err := queue.New(cfg.Queue, cfg.Server.WorkerPoolSize, logging.Component(logger, "queue"))
	if err != nil {
		return fmt.Errorf("初始化队列失败: %w", err)
	}
	defer q.Close()
	logger.Info("✓ 任务队列已就绪", slog.String("type", cfg.Queue.Type))

	// 3. 组装流水线并启动 Worker
	p, err := pipeline.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	pool := worker.NewPool(q, store, p, cfg.Server.WorkerPoolSize, cfg.Server.JobTimeout(), logging.Component(logger, "worker"))
	pool.Start()

	// 4. 启动 HTTP 服务器
	app := &App{store: store, queue: q, service: p, logger: logging.Component(logger, "api")}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.setupRouter(gin.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 ytscribe 服务器启动", slog.String("addr", srv.Addr), slog.Int("workers", cfg.Server.WorkerPoolSize))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 5. 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		pool.Stop()
		return fmt.Errorf("服务器启动失败: %w", err)
	}

	logger.Info("🛑 正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️ HTTP 服务器关闭超时", slog.Any("error", err))
	}
	pool.Stop()
	logger.Info("✓ 服务器已关闭")
	return nil
}
