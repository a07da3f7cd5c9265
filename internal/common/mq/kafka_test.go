package mq

import (
	"testing"
	"time"
)

func TestKafkaMessageHeaders(t *testing.T) {
	t.Parallel()
	msg := NewMessage("sub-1", "user-9", []byte(`{"status":"Accepted"}`))
	msg.SetHeader("status", "Accepted")
	msg.RetryCount = 2
	msg.MaxRetries = 5

	km := toKafkaMessage("submission.judged", msg)
	if km.Topic != "submission.judged" || string(km.Key) != "user-9" {
		t.Fatalf("unexpected topic/key %q/%q", km.Topic, km.Key)
	}

	back := fromKafkaMessage(km)
	if back.ID != "sub-1" || back.Key != "user-9" || string(back.Body) != string(msg.Body) {
		t.Fatalf("unexpected message %+v", back)
	}
	if back.Headers["status"] != "Accepted" {
		t.Fatalf("custom header lost: %v", back.Headers)
	}
	if back.RetryCount != 2 || back.MaxRetries != 5 {
		t.Fatalf("retry bookkeeping lost: %+v", back)
	}
	if !back.Timestamp.Equal(msg.Timestamp) {
		t.Fatalf("timestamp %v != %v", back.Timestamp, msg.Timestamp)
	}
}

func TestKafkaMessageKeyFallsBackToID(t *testing.T) {
	t.Parallel()
	km := toKafkaMessage("t", &Message{ID: "only-id"})
	if string(km.Key) != "only-id" {
		t.Fatalf("expected id as key, got %q", km.Key)
	}
	if km.Time.IsZero() {
		t.Fatalf("timestamp should be filled")
	}
}

func TestSubscribeOptionsDefaults(t *testing.T) {
	t.Parallel()
	var opts SubscribeOptions
	opts.SetDefaults()
	if opts.Concurrency != 1 || opts.MaxRetries != 3 || opts.RetryDelay != time.Second {
		t.Fatalf("unexpected defaults %+v", opts)
	}
}

func TestNewKafkaQueueRequiresBrokers(t *testing.T) {
	t.Parallel()
	if _, err := NewKafkaQueue(KafkaConfig{}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if q.config.BatchSize != 100 || q.config.MaxWait != time.Second {
		t.Fatalf("defaults not applied: %+v", q.config)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
