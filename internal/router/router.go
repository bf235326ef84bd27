package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panierscan/authcore/internal/authz"
	"github.com/panierscan/authcore/internal/cache"
	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/constants"
	adminhandlers "github.com/panierscan/authcore/internal/http/handlers/admin"
	publichandlers "github.com/panierscan/authcore/internal/http/handlers/public"
	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "authcore"
	}
	redisClient := cache.Client()
	sendRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:otp_send", redisPrefix),
		WindowSeconds: cfg.Security.SendRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.SendRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.SendRateLimit.BlockSeconds,
		MessageKey:    "error.rate_limited",
	}
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.SendRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.SendRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.SendRateLimit.BlockSeconds,
		MessageKey:    "error.rate_limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(cfg.CORS))

	// 健康检查
	r.GET("/healthz", HealthHandler(cache.Ping))
	if cfg.Metrics.Enabled {
		metricsPath := strings.TrimSpace(cfg.Metrics.Path)
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
	}

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/captcha/image", publicHandler.GetImageCaptcha)
			public.GET("/captcha/config", publicHandler.GetCaptchaConfig)
		}

		// 验证码流程（按安装实例隔离）
		otp := apiV1.Group("/otp")
		otp.Use(InstallationMiddleware())
		{
			otp.POST("/request", RateLimitMiddleware(redisClient, sendRule, KeyByIPAndJSONField("phone_number")), publicHandler.RequestOTP)
			otp.POST("/verify", publicHandler.VerifyOTP)
			otp.POST("/resend", RateLimitMiddleware(redisClient, sendRule, KeyByIPAndJSONField("phone_number")), publicHandler.ResendOTP)
			otp.GET("/pending", publicHandler.GetPendingOTP)
			otp.DELETE("/pending", publicHandler.AbandonPendingOTP)
		}

		// 手机号密码登录
		auth := apiV1.Group("/auth")
		auth.Use(InstallationMiddleware())
		{
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("phone_number")), publicHandler.Login)
			auth.GET("/login-guard", publicHandler.GetLoginGuardStatus)
		}

		// 本地网关（供外部服务以 HTTP 网关方式接入）
		if strings.EqualFold(strings.TrimSpace(cfg.SMS.Gateway.Driver), constants.SMSGatewayDriverLocal) {
			gateway := apiV1.Group("/gateway")
			gateway.Use(GatewayKeyMiddleware(cfg.SMS.Gateway.APIKey))
			{
				gateway.POST("/send", publicHandler.GatewaySend)
				gateway.POST("/verify", publicHandler.GatewayVerify)
			}
		}

		// 运营后台接口
		admin := apiV1.Group("/admin")
		admin.Use(OperatorAuthMiddleware(c.OperatorService), OperatorRBACMiddleware(c.AuthzService))
		{
			admin.GET("/me", adminHandler.GetCurrentOperator)
			admin.GET("/operators", adminHandler.GetOperators)
			admin.GET("/audit-logs", adminHandler.GetOperatorAuditLogs)
			admin.GET("/authz/roles", adminHandler.GetAuthzRoles)
			admin.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildOperatorPermissionCatalog(r))
			})

			admin.GET("/login-guard/:phone", adminHandler.GetLoginGuard)
			admin.POST("/login-guard/:phone/unlock", adminHandler.UnlockLoginGuard)
			admin.GET("/login-logs", adminHandler.GetPhoneLoginLogs)
			admin.GET("/otp/sessions", adminHandler.GetVerificationSessions)
		}
	}

	return r
}

type operatorPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildOperatorPermissionCatalog(engine *gin.Engine) []operatorPermissionCatalogItem {
	if engine == nil {
		return []operatorPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]operatorPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, operatorPermissionCatalogItem{
			Module:     deriveOperatorPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveOperatorPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
