package config

import (
	"fmt"
	"strings"

	"github.com/panierscan/authcore/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Store       StoreConfig       `mapstructure:"store"`
	CORS        CORSConfig        `mapstructure:"cors"`
	OTP         OTPConfig         `mapstructure:"otp"`
	SMS         SMSConfig         `mapstructure:"sms"`
	VerifyToken VerifyTokenConfig `mapstructure:"verify_token"`
	Security    SecurityConfig    `mapstructure:"security"`
	Captcha     CaptchaConfig     `mapstructure:"captcha"`
	AuthBackend AuthBackendConfig `mapstructure:"auth_backend"`
	Operators   []OperatorConfig  `mapstructure:"operators"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Worker      WorkerConfig      `mapstructure:"worker"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// StoreConfig 持久化键值存储配置
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // memory / database / redis
	Prefix string `mapstructure:"prefix"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// OTPConfig 短信验证码流程配置
type OTPConfig struct {
	LifetimeSeconds       int                 `mapstructure:"lifetime_seconds"`
	MaxAttempts           int                 `mapstructure:"max_attempts"`
	ResendCooldownSeconds int                 `mapstructure:"resend_cooldown_seconds"`
	DailyLimit            int                 `mapstructure:"daily_limit"`
	CodeLength            int                 `mapstructure:"code_length"`
	SendTimeoutSeconds    int                 `mapstructure:"send_timeout_seconds"`
	VerifyTimeoutSeconds  int                 `mapstructure:"verify_timeout_seconds"`
	PrimaryRegion         string              `mapstructure:"primary_region"`
	SkipForeignNumbers    bool                `mapstructure:"skip_foreign_numbers"`
	SessionRetentionHours int                 `mapstructure:"session_retention_hours"`
	SealKey               string              `mapstructure:"seal_key"` // 凭据加密口令，至少 16 位
	TestNumbers           OTPTestNumberConfig `mapstructure:"test_numbers"`
}

// OTPTestNumberConfig 测试号码配置（整串正则匹配，空表示关闭）
type OTPTestNumberConfig struct {
	Pattern string `mapstructure:"pattern"`
	Code    string `mapstructure:"code"`
}

// SMSConfig 短信网关与发送通道配置
type SMSConfig struct {
	Gateway       SMSGatewayConfig  `mapstructure:"gateway"`
	Sender        SMSSenderConfig   `mapstructure:"sender"`
	AsyncDelivery bool              `mapstructure:"async_delivery"`
	Templates     map[string]string `mapstructure:"templates"` // locale -> 文案，%s 为验证码
}

// SMSGatewayConfig 验证码网关配置
type SMSGatewayConfig struct {
	Driver         string `mapstructure:"driver"` // local / http
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SMSSenderConfig 短信发送通道配置
type SMSSenderConfig struct {
	Driver         string `mapstructure:"driver"` // log / http
	URL            string `mapstructure:"url"`
	Token          string `mapstructure:"token"`
	From           string `mapstructure:"from"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// VerifyTokenConfig 验证令牌配置
type VerifyTokenConfig struct {
	Secret        string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
	ExpireMinutes int    `mapstructure:"expire_minutes"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	LoginGuard    LoginGuardConfig    `mapstructure:"login_guard"`
	SendRateLimit SendRateLimitConfig `mapstructure:"send_rate_limit"`
}

// LoginGuardConfig 登录防爆破配置
type LoginGuardConfig struct {
	FailureThreshold         int     `mapstructure:"failure_threshold"`
	LockoutSeconds           int     `mapstructure:"lockout_seconds"`
	EscalationFactor         float64 `mapstructure:"escalation_factor"`
	MaxLockoutSeconds        int     `mapstructure:"max_lockout_seconds"`
	MinAttemptSpacingSeconds int     `mapstructure:"min_attempt_spacing_seconds"`
	RecordTTLHours           int     `mapstructure:"record_ttl_hours"`
}

// SendRateLimitConfig 短信发送 IP 限流配置
type SendRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// CaptchaConfig 验证码配置
type CaptchaConfig struct {
	Provider  string                 `mapstructure:"provider"`
	Scenes    CaptchaSceneConfig     `mapstructure:"scenes"`
	Image     CaptchaImageConfig     `mapstructure:"image"`
	Turnstile CaptchaTurnstileConfig `mapstructure:"turnstile"`
}

// CaptchaSceneConfig 验证码场景开关
type CaptchaSceneConfig struct {
	OTPRequest bool `mapstructure:"otp_request"`
	Login      bool `mapstructure:"login"`
}

// CaptchaImageConfig 图片验证码配置
type CaptchaImageConfig struct {
	Length        int `mapstructure:"length"`
	Width         int `mapstructure:"width"`
	Height        int `mapstructure:"height"`
	NoiseCount    int `mapstructure:"noise_count"`
	ShowLine      int `mapstructure:"show_line"`
	ExpireSeconds int `mapstructure:"expire_seconds"`
	MaxStore      int `mapstructure:"max_store"`
}

// CaptchaTurnstileConfig Cloudflare Turnstile 配置
type CaptchaTurnstileConfig struct {
	SiteKey   string `mapstructure:"site_key"`
	SecretKey string `mapstructure:"secret_key"`
	VerifyURL string `mapstructure:"verify_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// AuthBackendConfig 账号认证后端配置
type AuthBackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OperatorConfig 运营后台操作员
type OperatorConfig struct {
	Name  string   `mapstructure:"name"`
	Key   string   `mapstructure:"key"`
	Roles []string `mapstructure:"roles"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// WorkerConfig 后台任务配置
type WorkerConfig struct {
	PurgeIntervalSeconds int `mapstructure:"purge_interval_seconds"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("./")    // 备用路径
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	setDefaults()

	// 环境变量支持
	viper.AutomaticEnv()                                   // 自动读取环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 将 . 替换为 _ (例如 server.port -> SERVER_PORT)

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/authcore.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "authcore")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default":  10,
		"critical": 5,
	})
	viper.SetDefault("store.driver", "database")
	viper.SetDefault("store.prefix", "")
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
		"X-Installation-ID",
		"X-Operator-Key",
		"Accept-Language",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("otp.lifetime_seconds", 600)
	viper.SetDefault("otp.max_attempts", 5)
	viper.SetDefault("otp.resend_cooldown_seconds", 60)
	viper.SetDefault("otp.daily_limit", 3)
	viper.SetDefault("otp.code_length", 6)
	viper.SetDefault("otp.send_timeout_seconds", 8)
	viper.SetDefault("otp.verify_timeout_seconds", 30)
	viper.SetDefault("otp.primary_region", "CD")
	viper.SetDefault("otp.skip_foreign_numbers", true)
	viper.SetDefault("otp.session_retention_hours", 48)
	viper.SetDefault("otp.seal_key", "")
	viper.SetDefault("otp.test_numbers.pattern", "")
	viper.SetDefault("otp.test_numbers.code", "")
	viper.SetDefault("sms.gateway.driver", "local")
	viper.SetDefault("sms.gateway.base_url", "")
	viper.SetDefault("sms.gateway.api_key", "")
	viper.SetDefault("sms.gateway.timeout_seconds", 30)
	viper.SetDefault("sms.sender.driver", "log")
	viper.SetDefault("sms.sender.url", "")
	viper.SetDefault("sms.sender.token", "")
	viper.SetDefault("sms.sender.from", "")
	viper.SetDefault("sms.sender.timeout_seconds", 10)
	viper.SetDefault("sms.async_delivery", false)
	viper.SetDefault("sms.templates", map[string]string{
		"fr": "Votre code de vérification est %s. Il expire dans 10 minutes.",
		"en": "Your verification code is %s. It expires in 10 minutes.",
	})
	viper.SetDefault("verify_token.secret", "change-me-in-production")
	viper.SetDefault("verify_token.issuer", "authcore")
	viper.SetDefault("verify_token.expire_minutes", 15)
	viper.SetDefault("security.login_guard.failure_threshold", 5)
	viper.SetDefault("security.login_guard.lockout_seconds", 900)
	viper.SetDefault("security.login_guard.escalation_factor", 2)
	viper.SetDefault("security.login_guard.max_lockout_seconds", 86400)
	viper.SetDefault("security.login_guard.min_attempt_spacing_seconds", 3)
	viper.SetDefault("security.login_guard.record_ttl_hours", 24)
	viper.SetDefault("security.send_rate_limit.window_seconds", 3600)
	viper.SetDefault("security.send_rate_limit.max_requests", 10)
	viper.SetDefault("security.send_rate_limit.block_seconds", 3600)
	viper.SetDefault("captcha.provider", "none")
	viper.SetDefault("captcha.scenes.otp_request", false)
	viper.SetDefault("captcha.scenes.login", false)
	viper.SetDefault("captcha.image.length", 5)
	viper.SetDefault("captcha.image.width", 240)
	viper.SetDefault("captcha.image.height", 80)
	viper.SetDefault("captcha.image.noise_count", 2)
	viper.SetDefault("captcha.image.show_line", 2)
	viper.SetDefault("captcha.image.expire_seconds", 300)
	viper.SetDefault("captcha.image.max_store", 10240)
	viper.SetDefault("captcha.turnstile.site_key", "")
	viper.SetDefault("captcha.turnstile.secret_key", "")
	viper.SetDefault("captcha.turnstile.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	viper.SetDefault("captcha.turnstile.timeout_ms", 2000)
	viper.SetDefault("auth_backend.base_url", "")
	viper.SetDefault("auth_backend.api_key", "")
	viper.SetDefault("auth_backend.timeout_seconds", 10)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("worker.purge_interval_seconds", 300)
}
