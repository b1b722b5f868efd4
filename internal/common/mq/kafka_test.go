package mq

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestKafkaMessageRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	in := &Message{
		ID:         "exec-1",
		Body:       []byte(`{"resource":"docker://hello-world"}`),
		Headers:    map[string]string{"x-trace-id": "trace-1"},
		Timestamp:  ts,
		RetryCount: 2,
		MaxRetries: 5,
		Expiration: 90 * time.Second,
	}

	km := toKafkaMessage("statebox.tasks", in)
	if km.Topic != "statebox.tasks" || string(km.Key) != "exec-1" {
		t.Fatalf("unexpected kafka message %+v", km)
	}

	out := fromKafkaMessage(km)
	if out.ID != in.ID || string(out.Body) != string(in.Body) {
		t.Fatalf("identity lost: %+v", out)
	}
	if !out.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %s", out.Timestamp)
	}
	if out.RetryCount != 2 || out.MaxRetries != 5 || out.Expiration != 90*time.Second {
		t.Fatalf("retry metadata lost: %+v", out)
	}
	if out.Headers["x-trace-id"] != "trace-1" {
		t.Fatalf("headers = %v", out.Headers)
	}
	if _, ok := out.Headers[headerID]; ok {
		t.Fatal("reserved headers must not leak into Headers")
	}
}

func TestFromKafkaMessageFallsBackToKey(t *testing.T) {
	m := fromKafkaMessage(kafka.Message{Key: []byte("k1"), Value: []byte("{}")})
	if m.ID != "k1" {
		t.Fatalf("id = %q", m.ID)
	}
}

func TestMessageExpired(t *testing.T) {
	now := time.Now()
	m := &Message{Timestamp: now.Add(-time.Minute), Expiration: 30 * time.Second}
	if !m.Expired(now) {
		t.Fatal("expected expired")
	}
	m.Expiration = 0
	if m.Expired(now) {
		t.Fatal("zero expiration never expires")
	}
}

func TestRetryBackoff(t *testing.T) {
	base, max := 100*time.Millisecond, time.Second
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := RetryBackoff(i, base, max); got != w {
			t.Fatalf("retry %d: got %s, want %s", i, got, w)
		}
	}
}

func TestSubscribeOptionsDefaults(t *testing.T) {
	var o SubscribeOptions
	o.SetDefaults()
	if o.Concurrency != 1 || o.MaxRetries != 3 || o.RetryDelay != time.Second || o.MaxRetryDelay != 8*time.Second {
		t.Fatalf("unexpected defaults %+v", o)
	}
}

func TestKafkaQueueValidation(t *testing.T) {
	if _, err := NewKafkaQueue(KafkaConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	q, err := NewKafkaQueue(KafkaConfig{Brokers: []string{"127.0.0.1:9"}})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	ctx := context.Background()
	if err := q.Publish(ctx, "", NewMessage("a", nil)); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if err := q.Publish(ctx, "t", nil); err == nil {
		t.Fatal("expected error for nil message")
	}
	if err := q.SubscribeWithOptions(ctx, "t", nil, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.SubscribeWithOptions(ctx, "t", func(context.Context, *Message) error { return nil }, nil); err == nil {
		t.Fatal("expected error after close")
	}
}
