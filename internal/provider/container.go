package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/panierscan/authcore/internal/authz"
	"github.com/panierscan/authcore/internal/cache"
	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/kvstore"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/models"
	"github.com/panierscan/authcore/internal/queue"
	"github.com/panierscan/authcore/internal/repository"
	"github.com/panierscan/authcore/internal/service"
	"github.com/panierscan/authcore/internal/sms"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	DB          *gorm.DB

	// Stores
	KVStore     kvstore.Store
	GormKVStore *repository.GormKVStore

	// Repositories
	VerificationSessionRepo repository.VerificationSessionRepository
	PhoneLoginLogRepo       repository.PhoneLoginLogRepository
	OperatorRepo            repository.OperatorRepository
	OperatorAuditLogRepo    repository.OperatorAuditLogRepository

	// SMS
	TokenIssuer  *sms.TokenIssuer
	SMSSender    sms.Sender
	LocalGateway *sms.LocalGateway
	Gateway      sms.Gateway

	// Services
	AuthzService         *authz.Service
	Sealer               *service.Sealer
	OTPCoordinator       *service.OTPSessionCoordinator
	LoginGuard           *service.LoginAttemptGuard
	FlowRouter           *service.FlowRouter
	CredentialChecker    service.CredentialChecker
	LoginOrchestrator    *service.LoginOrchestrator
	CaptchaService       *service.CaptchaService
	PhoneLoginLogService *service.PhoneLoginLogService
	OperatorService      *service.OperatorService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		DB:          models.DB,
	}

	// 1. 初始化 Repositories 与键值存储
	c.initRepositories()
	c.initStore()

	// 2. 初始化短信网关
	c.initSMS()

	// 3. 初始化 Services
	c.initServices()

	// 4. 同步操作员与角色
	c.initOperators()

	return c
}

func (c *Container) initRepositories() {
	db := c.DB
	c.VerificationSessionRepo = repository.NewVerificationSessionRepository(db)
	c.PhoneLoginLogRepo = repository.NewPhoneLoginLogRepository(db)
	c.OperatorRepo = repository.NewOperatorRepository(db)
	c.OperatorAuditLogRepo = repository.NewOperatorAuditLogRepository(db)
	c.GormKVStore = repository.NewGormKVStore(db)
}

func (c *Container) initStore() {
	prefix := strings.TrimSpace(c.Config.Store.Prefix)
	driver := strings.ToLower(strings.TrimSpace(c.Config.Store.Driver))
	switch driver {
	case constants.StoreDriverRedis:
		if cache.Enabled() {
			c.KVStore = cache.NewRedisKVStore(cache.Client(), prefix)
			return
		}
		logger.Warnw("provider_store_redis_unavailable", "fallback", constants.StoreDriverDatabase)
		c.KVStore = kvstore.Namespace(c.GormKVStore, prefix)
	case constants.StoreDriverMemory:
		logger.Warnw("provider_store_memory_not_durable")
		c.KVStore = kvstore.Namespace(kvstore.NewMemoryStore(), prefix)
	default:
		c.KVStore = kvstore.Namespace(c.GormKVStore, prefix)
	}
}

func (c *Container) initSMS() {
	cfg := c.Config.SMS
	c.TokenIssuer = sms.NewTokenIssuer(
		c.Config.VerifyToken.Secret,
		c.Config.VerifyToken.Issuer,
		time.Duration(c.Config.VerifyToken.ExpireMinutes)*time.Minute,
	)

	switch strings.ToLower(strings.TrimSpace(cfg.Sender.Driver)) {
	case constants.SMSSenderDriverHTTP:
		c.SMSSender = sms.NewHTTPSender(cfg.Sender.URL, cfg.Sender.Token, cfg.Sender.From, time.Duration(cfg.Sender.TimeoutSeconds)*time.Second)
	default:
		c.SMSSender = sms.LogSender{}
	}

	otp := c.Config.OTP
	c.LocalGateway = sms.NewLocalGateway(c.VerificationSessionRepo, c.TokenIssuer, c.SMSSender, sms.LocalGatewayOptions{
		Lifetime:           time.Duration(otp.LifetimeSeconds) * time.Second,
		MaxAttempts:        otp.MaxAttempts,
		Cooldown:           time.Duration(otp.ResendCooldownSeconds) * time.Second,
		DailyLimit:         otp.DailyLimit,
		CodeLength:         otp.CodeLength,
		PrimaryRegion:      otp.PrimaryRegion,
		SkipForeignNumbers: otp.SkipForeignNumbers,
		Templates:          cfg.Templates,
	})
	if cfg.AsyncDelivery {
		if c.QueueClient != nil && c.QueueClient.Enabled() {
			c.LocalGateway.SetDispatcher(c.QueueClient)
		} else {
			logger.Warnw("provider_sms_async_delivery_without_queue", "fallback", "sync")
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Gateway.Driver)) {
	case constants.SMSGatewayDriverHTTP:
		c.Gateway = sms.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second)
	default:
		c.Gateway = c.LocalGateway
	}
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	sealer, err := service.NewSealer(c.Config.OTP.SealKey)
	if err != nil {
		logger.Errorw("provider_init_sealer_failed", "error", err)
		panic(err)
	}
	c.Sealer = sealer

	coordinator, err := service.NewOTPSessionCoordinator(c.Gateway, c.KVStore, c.Sealer, service.OTPCoordinatorOptionsFromConfig(c.Config.OTP))
	if err != nil {
		logger.Errorw("provider_init_otp_coordinator_failed", "error", err)
		panic(err)
	}
	coordinator.SetTokenIssuer(c.TokenIssuer)
	c.OTPCoordinator = coordinator

	c.LoginGuard = service.NewLoginAttemptGuard(c.KVStore, service.LoginGuardOptionsFromConfig(c.Config.Security.LoginGuard, c.Config.OTP.PrimaryRegion))
	c.FlowRouter = service.NewFlowRouter()
	c.CredentialChecker = service.NewHTTPCredentialChecker(
		c.Config.AuthBackend.BaseURL,
		c.Config.AuthBackend.APIKey,
		time.Duration(c.Config.AuthBackend.TimeoutSeconds)*time.Second,
	)
	c.PhoneLoginLogService = service.NewPhoneLoginLogService(c.PhoneLoginLogRepo)
	c.LoginOrchestrator = service.NewLoginOrchestrator(c.LoginGuard, c.OTPCoordinator, c.CredentialChecker, c.PhoneLoginLogService)
	c.CaptchaService = service.NewCaptchaService(c.Config.Captcha)
	c.OperatorService = service.NewOperatorService(c.OperatorRepo, c.OperatorAuditLogRepo, c.VerificationSessionRepo, c.LoginGuard)
}

func (c *Container) initOperators() {
	seeds := make([]models.OperatorSeed, 0, len(c.Config.Operators))
	for _, item := range c.Config.Operators {
		seeds = append(seeds, models.OperatorSeed{Name: item.Name, Key: item.Key, Roles: item.Roles})
	}
	operators, err := models.InitOperators(c.DB, seeds)
	if err != nil {
		logger.Errorw("provider_init_operators_failed", "error", err)
		panic(err)
	}
	for _, operator := range operators {
		if err := c.AuthzService.SetOperatorRoles(operator.ID, []string(operator.Roles)); err != nil {
			logger.Warnw("provider_sync_operator_roles_failed", "operator_id", operator.ID, "error", err)
		}
	}
	InvalidateOperatorSnapshots(context.Background(), operators)
}

// InvalidateOperatorSnapshots 角色或 Key 同步后删除 Redis 中的操作员鉴权快照
func InvalidateOperatorSnapshots(ctx context.Context, operators []models.Operator) {
	for _, operator := range operators {
		if err := cache.DelOperatorAuthState(ctx, operator.KeyHash); err != nil {
			logger.Warnw("provider_invalidate_operator_snapshot_failed", "operator_id", operator.ID, "error", err)
		}
	}
}

// Close 释放队列与 Redis 连接
func (c *Container) Close() error {
	var errs []error
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := cache.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
