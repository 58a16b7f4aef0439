package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/RaduRoibu23/timetable-distributed-system/config"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/jobs"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/repository"
	"github.com/RaduRoibu23/timetable-distributed-system/internal/snapshot"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/database"
	applogger "github.com/RaduRoibu23/timetable-distributed-system/pkg/logger"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/mqtt"
	"github.com/RaduRoibu23/timetable-distributed-system/pkg/redis"
)

// app 各子命令共享的基础依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	repo   *repository.Repository
	loader *snapshot.Loader
	rdb    *redis.Client
	events mqtt.Publisher
}

// bootstrap 加载配置、初始化日志并连接数据库
func bootstrap() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	logger.Info("数据库连接成功")

	repo := repository.NewRepository(db)
	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repo:   repo,
		loader: snapshot.NewLoader(repo, snapshot.NewGrid(&cfg.Scheduler)),
		events: mqtt.NopPublisher{Prefix: cfg.MQTT.TopicPrefix},
	}, nil
}

// migrate 执行数据库迁移
func (a *app) migrate() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return database.RunMigrations(sqlDB, a.logger)
}

// connectOptional 连接可选的 Redis 与 MQTT，失败时降级运行
func (a *app) connectOptional() {
	if a.cfg.Redis.Enabled {
		rdb, err := redis.NewClient(&a.cfg.Redis, a.logger)
		if err != nil {
			a.logger.Warn("Redis 连接失败，生成锁退化为进程内锁，限流关闭", zap.Error(err))
		} else {
			a.rdb = rdb
		}
	}

	if a.cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&a.cfg.MQTT, a.logger)
		if err != nil {
			a.logger.Warn("MQTT 连接失败，不发布任务事件", zap.Error(err))
		} else {
			a.events = client
		}
	}
}

// newManager 按配置创建任务管理器，Redis 可用时启用跨实例锁
func (a *app) newManager() *jobs.Manager {
	m := jobs.NewManager(a.repo, a.loader, jobs.NewOptions(a.cfg), a.logger).WithEvents(a.events)
	if a.rdb != nil {
		m.WithLocker(a.rdb)
	}
	return m
}

// close 释放连接
func (a *app) close() {
	a.events.Close()
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Warn("关闭 Redis 连接失败", zap.Error(err))
		}
	}
	if sqlDB, _ := a.db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
	_ = a.logger.Sync()
}
