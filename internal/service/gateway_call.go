package service

import (
	"context"
	"time"

	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/metrics"
)

type gatewayReply[T any] struct {
	value T
	err   error
}

// callGateway 在脱离调用方取消信号的上下文中执行远程调用，并施加独立超时
// 调用方先离开时返回 left=true 与调用方的 ctx 错误；之后到达的响应被丢弃
func callGateway[T any](ctx context.Context, call string, timeout time.Duration, fn func(context.Context) (T, error)) (T, bool, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	replies := make(chan gatewayReply[T], 1)
	started := time.Now()
	go func() {
		defer cancel()
		value, err := fn(callCtx)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.GatewayCallDuration.WithLabelValues(call, result).Observe(time.Since(started).Seconds())
		replies <- gatewayReply[T]{value: value, err: err}
	}()

	select {
	case reply := <-replies:
		return reply.value, false, reply.err
	case <-ctx.Done():
		go func() {
			reply := <-replies
			metrics.LateGatewayResponsesTotal.WithLabelValues(call).Inc()
			logger.Debugw("otp_gateway_late_response_dropped", "call", call, "error", reply.err)
		}()
		var zero T
		return zero, true, ctx.Err()
	}
}
