package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RaduRoibu23/timetable-distributed-system/internal/api/handler"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/api/router"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/service"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/jwt"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务与生成任务 worker",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 配置、日志、数据库
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	logger.Info("应用启动中...",
		zap.Int("port", a.cfg.Server.Port),
		zap.String("log_level", a.cfg.Log.Level),
	)

	// 2. 数据库迁移
	if err := a.migrate(); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 3. 可选的 Redis 与 MQTT
	a.connectOptional()

	// 4. 指标
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewPromRecorder(reg)
	if err != nil {
		return fmt.Errorf("注册指标失败: %w", err)
	}

	// 5. 生成任务管理器：恢复遗留任务后启动 worker
	manager := a.newManager().WithMetrics(rec)
	if err := manager.Recover(ctx); err != nil {
		return fmt.Errorf("恢复生成任务失败: %w", err)
	}
	manager.Start()
	defer manager.Stop()

	// 6. 依赖注入: Repository → Service → Handler
	if err := handler.RegisterValidators(); err != nil {
		return fmt.Errorf("注册校验规则失败: %w", err)
	}
	jwtMgr := jwt.NewManager(&a.cfg.Auth)
	svc := service.NewService(a.cfg, a.repo, a.loader, manager, rec, logger)
	h := handler.NewHandler(svc)

	// 7. 路由
	engine := router.Setup(a.cfg, h, jwtMgr, a.rdb, reg, logger)

	// 8. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("收到关闭信号，开始优雅关闭...")
	case err := <-errCh:
		return fmt.Errorf("HTTP 服务器异常: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已关闭")
	return nil
}
