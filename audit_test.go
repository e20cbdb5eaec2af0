package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d.Emit(ctx, AuditEvent{EventType: "login"})
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("delivered = %d, want 10", got)
	}
	if got := d.Dropped(); got != 0 {
		t.Fatalf("dropped = %d, want 0", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	ctx := context.Background()
	// One event blocks inside the sink, one fills the buffer; the rest must
	// be counted as dropped rather than blocking the caller.
	for i := 0; i < 10; i++ {
		d.Emit(ctx, AuditEvent{EventType: "login"})
	}

	deadline := time.After(2 * time.Second)
	for d.Dropped() < 8 {
		select {
		case <-deadline:
			t.Fatalf("dropped = %d, want >= 8", d.Dropped())
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(sink.gate)
	d.Close()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("disabled config produced a dispatcher")
	}

	// Nil receivers are inert.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestChannelSinkReceivesEngineEvents(t *testing.T) {
	cfg := newTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	sink := NewChannelSink(64)
	engine, err := NewBuilder().
		WithConfig(cfg).
		WithUserProvider(newMockUsers()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	registerTestUser(t, engine, "alice@example.com", "Sup3rSecret")
	_, _ = engine.Login(context.Background(), "alice@example.com", "wrong")
	engine.Close()

	var types []string
	for len(sink.Events()) > 0 {
		types = append(types, (<-sink.Events()).EventType)
	}

	if len(types) < 2 {
		t.Fatalf("events = %v, want register and login", types)
	}
	if types[0] != "register" {
		t.Fatalf("first event = %q, want register", types[0])
	}
}

func TestJSONWriterSinkEmitsOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: "login", UserID: "u1", Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: "logout", UserID: "u1", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if event.EventType != "login" || event.UserID != "u1" || !event.Success {
		t.Fatalf("event = %+v", event)
	}
}
