package router

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/panierscan/authcore/internal/authz"
	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/constants"
	"github.com/panierscan/authcore/internal/http/response"
	"github.com/panierscan/authcore/internal/i18n"
	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/metrics"
	"github.com/panierscan/authcore/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = constants.ContextKeyRequestID
const requestIDHeader = "X-Request-ID"
const maxInstallationIDLength = 128

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Language",
			constants.HeaderInstallationID,
			constants.HeaderOperatorKey,
			requestIDHeader,
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if installationID := c.GetString(constants.ContextKeyInstallationID); installationID != "" {
			log = log.With("installation_id", installationID)
		}
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

// MetricsMiddleware 记录请求耗时，route 使用路由模板避免高基数
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// InstallationMiddleware 要求 X-Installation-ID 请求头，待续验证上下文按该标识隔离
func InstallationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		installationID := strings.TrimSpace(c.GetHeader(constants.HeaderInstallationID))
		if !isValidInstallationID(installationID) {
			msg := i18n.T(i18n.ResolveLocale(c), "error.installation_required")
			response.BadRequest(c, msg)
			c.Abort()
			return
		}
		c.Set(constants.ContextKeyInstallationID, installationID)
		c.Next()
	}
}

func isValidInstallationID(value string) bool {
	if value == "" || len(value) > maxInstallationIDLength {
		return false
	}
	for _, r := range value {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			return false
		}
	}
	return true
}

// GatewayKeyMiddleware 本地网关接口的共享密钥校验，未配置密钥时接口关闭
func GatewayKeyMiddleware(apiKey string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(apiKey))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			msg := i18n.T(i18n.ResolveLocale(c), "error.not_found")
			response.NotFound(c, msg)
			c.Abort()
			return
		}
		provided := []byte(strings.TrimSpace(c.GetHeader(constants.HeaderGatewayKey)))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			msg := i18n.T(i18n.ResolveLocale(c), "error.gateway_key_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}

// OperatorAuthMiddleware 操作员 API Key 鉴权中间件
func OperatorAuthMiddleware(operators *service.OperatorService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if operators == nil {
			logger.Errorw("operator_auth_service_unavailable")
			msg := i18n.T(i18n.ResolveLocale(c), "error.unauthorized")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		key := strings.TrimSpace(c.GetHeader(constants.HeaderOperatorKey))
		if key == "" {
			msg := i18n.T(i18n.ResolveLocale(c), "error.operator_key_missing")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		operator, err := operators.Authenticate(c.Request.Context(), key)
		if err != nil || operator == nil {
			if err != nil && !errors.Is(err, service.ErrOperatorKeyInvalid) {
				logger.Errorw("operator_auth_failed", "path", c.Request.URL.Path, "error", err)
			}
			msg := i18n.T(i18n.ResolveLocale(c), "error.operator_key_invalid")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		c.Set(constants.ContextKeyOperator, operator)
		c.Next()
	}
}

// OperatorRBACMiddleware 操作员 RBAC 鉴权中间件
func OperatorRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("operator_rbac_service_unavailable")
			msg := i18n.T(i18n.ResolveLocale(c), "error.unauthorized")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		value, exists := c.Get(constants.ContextKeyOperator)
		operator, ok := value.(*service.OperatorIdentity)
		if !exists || !ok || operator == nil || operator.ID == 0 {
			msg := i18n.T(i18n.ResolveLocale(c), "error.unauthorized")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceOperator(operator.ID, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("operator_rbac_enforce_failed",
				"operator_id", operator.ID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			msg := i18n.T(i18n.ResolveLocale(c), "error.unauthorized")
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}
		if !allowed {
			logger.Warnw("operator_rbac_permission_denied",
				"operator_id", operator.ID,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			msg := i18n.T(i18n.ResolveLocale(c), "error.forbidden")
			response.Forbidden(c, msg)
			c.Abort()
			return
		}

		c.Next()
	}
}
