package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	BasePath  string          `mapstructure:"base_path"`
	BodyLimit int64           `mapstructure:"body_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RateLimitConfig 写接口限流配置（依赖 Redis）
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 分钟
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
// Enabled=false 时生成锁退化为进程内锁，限流关闭
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// AuthConfig Bearer Token 校验配置
// 身份由外部 IdP 签发，本服务只校验签名并信任角色声明
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"` // 仅用于开发环境签发 Token
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SchedulerConfig 排课算法配置
type SchedulerConfig struct {
	DaysPerWeek          int  `mapstructure:"days_per_week"`
	SlotsPerDay          int  `mapstructure:"slots_per_day"`
	MaxBacktracks        int  `mapstructure:"max_backtracks"`
	CapacityTracking     bool `mapstructure:"capacity_tracking"`
	CapacityBlocking     bool `mapstructure:"capacity_blocking"`
	MaxSameSubjectPerDay int  `mapstructure:"max_same_subject_per_day"`
	PreferredMaxIndex    int  `mapstructure:"preferred_max_index"`
	CommitPartial        bool `mapstructure:"commit_partial"`
}

// JobsConfig 生成任务执行配置
type JobsConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CommitAttempts int           `mapstructure:"commit_attempts"`
}

// 被课表引用的基础数据删除策略
const (
	DeletePolicyReject           = "reject"
	DeletePolicyCascadeOnRequest = "cascade_on_request"
)

// CatalogConfig 基础数据配置
type CatalogConfig struct {
	DeletePolicy string `mapstructure:"delete_policy"`
}

// MQTTConfig 任务事件发布配置
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         byte   `mapstructure:"qos"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("TIMETABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit.limit", 60)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "timetable")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "5m")

	// 无默认值的键也要登记，否则 Unmarshal 读不到对应环境变量
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.access_token_ttl", "1h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("scheduler.days_per_week", 5)
	v.SetDefault("scheduler.slots_per_day", 7)
	v.SetDefault("scheduler.max_backtracks", 20000)
	v.SetDefault("scheduler.capacity_tracking", true)
	v.SetDefault("scheduler.capacity_blocking", false)
	v.SetDefault("scheduler.max_same_subject_per_day", 2)
	v.SetDefault("scheduler.preferred_max_index", 5)
	v.SetDefault("scheduler.commit_partial", true)

	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 64)
	v.SetDefault("jobs.timeout", "2m")
	v.SetDefault("jobs.commit_attempts", 3)

	v.SetDefault("catalog.delete_policy", DeletePolicyReject)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "timetable-engine")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "timetable")
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Server.BodyLimit <= 0 {
		return fmt.Errorf("配置校验失败: server.body_limit 必须大于 0")
	}
	if c.Scheduler.DaysPerWeek < 1 || c.Scheduler.DaysPerWeek > 7 {
		return fmt.Errorf("配置校验失败: scheduler.days_per_week 必须在 1-7 之间")
	}
	if c.Scheduler.SlotsPerDay < 1 {
		return fmt.Errorf("配置校验失败: scheduler.slots_per_day 必须大于 0")
	}
	if c.Scheduler.MaxBacktracks < 1 {
		return fmt.Errorf("配置校验失败: scheduler.max_backtracks 必须大于 0")
	}
	if c.Scheduler.MaxSameSubjectPerDay < 0 {
		return fmt.Errorf("配置校验失败: scheduler.max_same_subject_per_day 不能为负数")
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("配置校验失败: jobs.workers 必须大于 0")
	}
	if c.Jobs.QueueSize < 1 {
		return fmt.Errorf("配置校验失败: jobs.queue_size 必须大于 0")
	}
	if c.Jobs.CommitAttempts < 1 {
		return fmt.Errorf("配置校验失败: jobs.commit_attempts 必须大于 0")
	}
	switch c.Catalog.DeletePolicy {
	case DeletePolicyReject, DeletePolicyCascadeOnRequest:
	default:
		return fmt.Errorf("配置校验失败: catalog.delete_policy 只能是 %s 或 %s", DeletePolicyReject, DeletePolicyCascadeOnRequest)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("配置校验失败: 启用 MQTT 时 mqtt.broker 不能为空")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("配置校验失败: mqtt.qos 只能是 0、1、2")
	}
	return nil
}
