package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/panierscan/authcore/internal/provider"
	"github.com/panierscan/authcore/internal/queue"
	"github.com/panierscan/authcore/internal/sms"

	"github.com/hibiken/asynq"
)

type recordingSender struct {
	messages []sms.Message
	err      error
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Deliver(_ context.Context, msg sms.Message) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, msg)
	return nil
}

func TestHandleSMSDeliverUsesSender(t *testing.T) {
	sender := &recordingSender{}
	consumer := NewConsumer(&provider.Container{SMSSender: sender})
	task, err := queue.NewSMSDeliverTask(queue.SMSDeliverPayload{To: "+243812345678", Body: "Code: 123456", Locale: "fr"})
	if err != nil {
		t.Fatalf("new task failed: %v", err)
	}
	if err := consumer.handleSMSDeliver(context.Background(), task); err != nil {
		t.Fatalf("handle task failed: %v", err)
	}
	if len(sender.messages) != 1 || sender.messages[0].Body != "Code: 123456" {
		t.Fatalf("unexpected delivered messages: %+v", sender.messages)
	}
}

func TestHandleSMSDeliverReturnsSenderErrorForRetry(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	consumer := NewConsumer(&provider.Container{SMSSender: sender})
	task, _ := queue.NewSMSDeliverTask(queue.SMSDeliverPayload{To: "+243812345678", Body: "x"})
	err := consumer.handleSMSDeliver(context.Background(), task)
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("sender failure should be retried")
	}
}

func TestHandleSMSDeliverSkipsRetryOnCorruptPayload(t *testing.T) {
	consumer := NewConsumer(&provider.Container{SMSSender: &recordingSender{}})
	task := asynq.NewTask(queue.TaskSMSDeliver, []byte("{not json"))
	err := consumer.handleSMSDeliver(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("want SkipRetry got %v", err)
	}
}
