package queue

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/panierscan/authcore/internal/sms"

	"github.com/hibiken/asynq"
)

const (
	// TaskSMSDeliver 短信验证码投递任务
	TaskSMSDeliver = "sms:deliver"
)

// SMSDeliverPayload 短信投递任务载荷
type SMSDeliverPayload struct {
	To     string `json:"to"`
	Body   string `json:"body"`
	Locale string `json:"locale"`
}

// NewSMSDeliverTask 创建短信投递任务
func NewSMSDeliverTask(payload SMSDeliverPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.To) == "" || payload.Body == "" {
		return nil, errors.New("sms deliver payload incomplete")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSMSDeliver, body), nil
}

// ParseSMSDeliverPayload 解析短信投递任务载荷
func ParseSMSDeliverPayload(task *asynq.Task) (SMSDeliverPayload, error) {
	var payload SMSDeliverPayload
	if task == nil {
		return payload, errors.New("task is nil")
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// Message 转换为短信消息
func (p SMSDeliverPayload) Message() sms.Message {
	return sms.Message{To: p.To, Body: p.Body, Locale: p.Locale}
}
