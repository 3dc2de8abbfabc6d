package supervisor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cc-bridge/internal/bot"
	"cc-bridge/internal/config"
	"cc-bridge/internal/dockerengine"
	"cc-bridge/internal/executor"
	"cc-bridge/internal/router"
	"cc-bridge/internal/sandbox"
	"cc-bridge/internal/store"
)

// fakeFrontend is an in-memory bot.Frontend for tests: it lets the
// test inject inbound messages and records every outbound Send.
type fakeFrontend struct {
	mu      sync.Mutex
	sent    []string
	in      chan<- bot.InboundMessage
	stopped bool
}

func (f *fakeFrontend) Start(ctx context.Context, in chan<- bot.InboundMessage) error {
	f.in = in
	return nil
}

func (f *fakeFrontend) Send(ctx context.Context, wxid, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeFrontend) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeFrontend) deliver(msg bot.InboundMessage) {
	f.in <- msg
}

func (f *fakeFrontend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testSupervisor(t *testing.T) (*Supervisor, *fakeFrontend, *dockerengine.MockEngine) {
	t.Helper()
	cfg := config.Default()
	cfg.Docker.DataDir = t.TempDir()
	cfg.Docker.Image = "prebuilt:latest"

	engine := dockerengine.NewMockEngine()

	st, err := store.Open(filepath.Join(t.TempDir(), "meta.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sb := sandbox.New(engine, cfg)
	ex := executor.New(st, sb, cfg)
	rt := router.New(st, ex, sb, cfg)

	front := &fakeFrontend{}

	sup := New(Config{
		Cfg:             cfg,
		Store:           st,
		Sandbox:         sb,
		Router:          rt,
		Frontends:       []bot.Frontend{front},
		CleanupInterval: 50 * time.Millisecond,
	})
	return sup, front, engine
}

func TestRunDeliversReplyThroughOriginatingFrontend(t *testing.T) {
	sup, front, engine := testSupervisor(t)
	engine.ExecFn = func(ctx context.Context, id string, cmd []string, user string) (dockerengine.ExecResult, error) {
		return dockerengine.ExecResult{ExitCode: 0, Stdout: "reply text"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitForFrontendReady(t, front)
	front.deliver(bot.InboundMessage{Wxid: "u1", Nickname: "Alice", Text: "hi"})

	deadline := time.After(2 * time.Second)
	for front.sentCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a reply to be sent")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned an error: %v", err)
	}
	if !front.stopped {
		t.Fatal("expected the frontend to be stopped on shutdown")
	}
}

func TestRunFailsWhenEngineUnreachable(t *testing.T) {
	sup, _, engine := testSupervisor(t)
	engine.PingErr = context.DeadlineExceeded

	if err := sup.Run(context.Background()); err == nil {
		t.Fatal("expected Run to fail when the engine health check fails")
	}
}

func waitForFrontendReady(t *testing.T, f *fakeFrontend) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		f.mu.Lock()
		ready := f.in != nil
		f.mu.Unlock()
		if ready {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frontend to start")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
