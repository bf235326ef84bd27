package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/panierscan/authcore/internal/config"
	"github.com/panierscan/authcore/internal/sms"
)

func TestSMSDeliverTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewSMSDeliverTask(SMSDeliverPayload{To: "+243812345678", Body: "Code: 123456", Locale: "fr"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if task.Type() != TaskSMSDeliver {
		t.Fatalf("task type want %s got %s", TaskSMSDeliver, task.Type())
	}
	payload, err := ParseSMSDeliverPayload(task)
	if err != nil {
		t.Fatalf("parse payload failed: %v", err)
	}
	msg := payload.Message()
	if msg.To != "+243812345678" || msg.Body != "Code: 123456" || msg.Locale != "fr" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestNewSMSDeliverTaskRejectsIncompletePayload(t *testing.T) {
	if _, err := NewSMSDeliverTask(SMSDeliverPayload{Body: "x"}); err == nil {
		t.Fatalf("expected error for missing recipient")
	}
	if _, err := NewSMSDeliverTask(SMSDeliverPayload{To: "+243812345678"}); err == nil {
		t.Fatalf("expected error for missing body")
	}
}

func TestDisabledClientRefusesDispatch(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("client should be disabled")
	}
	err = client.DispatchSMS(context.Background(), sms.Message{To: "+243812345678", Body: "x"})
	if !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("want ErrQueueDisabled got %v", err)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(&config.QueueConfig{})
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("addr want 127.0.0.1:6379 got %s", opt.Addr)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("concurrency want 10 got %d", cfg.Concurrency)
	}
	if cfg.Queues[DefaultQueue] != 1 {
		t.Fatalf("default queue weight want 1 got %v", cfg.Queues)
	}
}
