package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"coolcar/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(2, testLogger())
	b.Publish(domain.InboundMessage{Channel: "web", ChatID: "c1", Content: "hi"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "hi" || msg.ChatID != "c1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New(1, testLogger())
	b.publishWait = 10 * time.Millisecond

	b.Publish(domain.InboundMessage{Content: "first"})
	b.Publish(domain.InboundMessage{Content: "second"})

	if got := len(b.inbound); got != 1 {
		t.Fatalf("expected 1 buffered message, got %d", got)
	}
	if msg := <-b.Subscribe(); msg.Content != "first" {
		t.Fatalf("expected first message kept, got %q", msg.Content)
	}
}

func TestSendOutboundRoutesByChannel(t *testing.T) {
	b := New(1, testLogger())
	var got []string
	b.OnOutbound("cli", func(m domain.OutboundMessage) { got = append(got, "cli:"+m.Content) })
	b.OnOutbound("web", func(m domain.OutboundMessage) { got = append(got, "web:"+m.Content) })

	b.SendOutbound(domain.OutboundMessage{Channel: "web", Content: "a"})
	b.SendOutbound(domain.OutboundMessage{Channel: "telegram", Content: "b"})

	if len(got) != 1 || got[0] != "web:a" {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestCloseIgnoresLaterPublish(t *testing.T) {
	b := New(1, testLogger())
	b.Close()
	b.Close()
	b.Publish(domain.InboundMessage{Content: "late"})

	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("expected closed channel")
	}
}
