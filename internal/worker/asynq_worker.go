package worker

import (
	"context"
	"fmt"

	"github.com/panierscan/authcore/internal/logger"
	"github.com/panierscan/authcore/internal/metrics"
	"github.com/panierscan/authcore/internal/phone"
	"github.com/panierscan/authcore/internal/provider"
	"github.com/panierscan/authcore/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSMSDeliver, c.handleSMSDeliver)
}

func (c *Consumer) handleSMSDeliver(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.Container == nil || task == nil {
		logger.Debugw("worker_sms_deliver_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseSMSDeliverPayload(task)
	if err != nil {
		logger.Warnw("worker_sms_deliver_unmarshal_failed", "error", err)
		// 载荷损坏时重试没有意义
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.To == "" || payload.Body == "" {
		logger.Debugw("worker_sms_deliver_skip_invalid_payload", "phone", phone.Mask(payload.To))
		return nil
	}
	if c.SMSSender == nil {
		logger.Warnw("worker_sms_deliver_sender_missing", "phone", phone.Mask(payload.To))
		return fmt.Errorf("%w: sms sender not configured", asynq.SkipRetry)
	}
	sender := c.SMSSender.Name()
	if err := c.SMSSender.Deliver(ctx, payload.Message()); err != nil {
		metrics.SMSDeliveriesTotal.WithLabelValues(sender, "failed").Inc()
		logger.Warnw("worker_sms_deliver_failed", "phone", phone.Mask(payload.To), "sender", sender, "error", err)
		return err
	}
	metrics.SMSDeliveriesTotal.WithLabelValues(sender, "delivered").Inc()
	logger.Infow("worker_sms_delivered", "phone", phone.Mask(payload.To), "sender", sender)
	return nil
}
