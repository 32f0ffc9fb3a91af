package events

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &captureWriter{}
	p := NewPublisherWithWriter(w, "chat.events")

	if err := p.Publish(context.Background(), "room-1", []byte(`{"type":"message_inserted"}`)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "room-1" {
		t.Fatalf("expected key room-1, got %s", w.msgs[0].Key)
	}
	if w.msgs[0].Time.IsZero() {
		t.Fatal("expected message time to be set")
	}

	if err := p.Publish(context.Background(), "", nil); err == nil {
		t.Fatal("expected empty key to be rejected")
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatal("expected writer to be closed")
	}
}

func TestKafkaPublisher_DisabledWithoutBrokers(t *testing.T) {
	p := NewKafkaPublisher(nil, "chat.events")
	if p != nil {
		t.Fatal("expected nil publisher without brokers")
	}
	if err := p.Publish(context.Background(), "room-1", []byte("{}")); err != nil {
		t.Fatalf("expected nil publisher to drop silently, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
