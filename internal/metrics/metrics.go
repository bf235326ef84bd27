package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPOperationsTotal 验证码流程操作结果计数
	OTPOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_otp_operations_total",
		Help: "OTP coordinator operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// GatewayCallDuration 网关调用耗时
	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authcore_sms_gateway_call_duration_seconds",
		Help:    "SMS gateway call latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"call", "result"})

	// LateGatewayResponsesTotal 调用方已离开后到达的网关响应
	LateGatewayResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_sms_gateway_late_responses_total",
		Help: "Gateway responses dropped because the caller had already left",
	}, []string{"call"})

	// LoginAttemptsTotal 登录尝试计数
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_login_attempts_total",
		Help: "Password login attempts by outcome",
	}, []string{"outcome"})

	// LoginLockoutsTotal 账号锁定次数
	LoginLockoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_login_lockouts_total",
		Help: "Number of lockouts applied by the login guard",
	})

	// LoginGuardStoreFailuresTotal 登录保护存储读写失败计数
	LoginGuardStoreFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_login_guard_store_failures_total",
		Help: "Login guard store failures by operation",
	}, []string{"operation"})

	// SMSDeliveriesTotal 短信投递结果计数
	SMSDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_sms_deliveries_total",
		Help: "SMS deliveries by sender and result",
	}, []string{"sender", "result"})

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authcore_http_request_duration_seconds",
		Help:    "HTTP request duration by method, route and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// PurgedRecordsTotal 后台清理记录数
	PurgedRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authcore_purged_records_total",
		Help: "Records removed by the background purge loop",
	}, []string{"table"})
)
