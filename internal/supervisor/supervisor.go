// Package supervisor implements the Startup/Supervisor component: the
// ordered bring-up sequence, the periodic cleanup ticker, the
// frontend message pump, and graceful shutdown. Grounded on the
// teacher's internal/daemon/daemon.go shape — a Config struct of
// optional hook funcs/intervals with sane zero-value defaults, a
// sync.WaitGroup-tracked set of background goroutines each
// select-looping on ctx.Done() vs a time.Ticker, and a single blocking
// Run(ctx) that returns once ctx is cancelled — generalized from the
// teacher's "reconcile + pairing-health" two tickers to this system's
// "session-expiry + rate-counter" cleanup tick.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"cc-bridge/internal/bot"
	"cc-bridge/internal/config"
	"cc-bridge/internal/router"
	"cc-bridge/internal/sandbox"
	"cc-bridge/internal/store"
)

// defaultCleanupInterval matches the spec's "every hour" cadence for
// session.clean_expired + rate.cleanup.
const defaultCleanupInterval = time.Hour

// imageBuildTimeout bounds the one-time build_image step at startup.
const imageBuildTimeout = 5 * time.Minute

// Config wires the already-constructed components the supervisor
// coordinates. Steps 1 (load configuration) and 5 (open the metadata
// store) happen in the caller before a Supervisor is built, since the
// Router and Executor both need the store and sandbox manager at
// construction time; Supervisor.Run performs the remaining ordered
// steps (engine health, image, networks, cleanup scheduling, frontend
// pump, shutdown).
type Config struct {
	Cfg       *config.Config
	Store     *store.Store
	Sandbox   *sandbox.Manager
	Router    *router.Router
	Frontends []bot.Frontend

	// BuildContextDir/Dockerfile are only consulted if the configured
	// sandbox image does not already exist.
	BuildContextDir string
	Dockerfile      string

	CleanupInterval time.Duration // default 1h
}

// Supervisor runs the ordered startup sequence and owns the process's
// background goroutines until shutdown.
type Supervisor struct {
	cfg Config
	wg  sync.WaitGroup
}

// New builds a Supervisor from cfg.
func New(cfg Config) *Supervisor {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultCleanupInterval
	}
	return &Supervisor{cfg: cfg}
}

// Run executes steps 2-7 of the ordered bring-up and blocks until ctx
// is cancelled, at which point it gracefully shuts down: frontends are
// stopped, containers are left running (they carry "unless-stopped"
// and survive independently), and the metadata store is closed by the
// caller after Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.cfg.Sandbox.HealthCheck(ctx); err != nil {
		return fmt.Errorf("supervisor: engine health check failed: %w", err)
	}

	exists, err := s.cfg.Sandbox.ImageExists(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: checking sandbox image: %w", err)
	}
	if !exists {
		buildCtx, cancel := context.WithTimeout(ctx, imageBuildTimeout)
		defer cancel()
		err := s.cfg.Sandbox.BuildImage(buildCtx, s.cfg.BuildContextDir, s.cfg.Dockerfile, func(line string) {
			log.Printf("[supervisor] build: %s", line)
		})
		if err != nil {
			return fmt.Errorf("supervisor: building sandbox image: %w", err)
		}
	}

	if err := s.cfg.Sandbox.InitNetworks(ctx); err != nil {
		return fmt.Errorf("supervisor: initializing networks: %w", err)
	}

	// runCtx governs intake only: the frontend receive loops and the
	// pump's dequeue select. It is cancelled on shutdown so no new
	// message is accepted, but it is never handed to handleOne/Execute
	// for in-flight work — see pumpMessages.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.startCleanupLoop(runCtx)

	inbound := make(chan routedMessage, 64)
	if err := s.startFrontends(runCtx, inbound); err != nil {
		return fmt.Errorf("supervisor: starting frontends: %w", err)
	}

	s.pumpMessages(runCtx, inbound)

	<-ctx.Done()
	s.shutdown()
	s.wg.Wait()
	return nil
}

// startCleanupLoop schedules the periodic session-expiry and
// rate-counter sweep, matching step 6 of the ordered bring-up.
func (s *Supervisor) startCleanupLoop(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCleanup()
			}
		}
	}()
}

func (s *Supervisor) runCleanup() {
	windowMinutes := s.cfg.Cfg.Session.ExpireMinutes
	if windowMinutes <= 0 {
		windowMinutes = 60
	}
	if n, err := s.cfg.Store.CleanExpired(windowMinutes); err != nil {
		log.Printf("[supervisor] clean_expired: %v", err)
	} else if n > 0 {
		log.Printf("[supervisor] clean_expired: removed %d session(s)", n)
	}
	if n, err := s.cfg.Store.CleanupRateCounters(); err != nil {
		log.Printf("[supervisor] rate.cleanup: %v", err)
	} else if n > 0 {
		log.Printf("[supervisor] rate.cleanup: removed %d counter(s)", n)
	}
}

// routedMessage pairs an inbound message with the frontend it arrived
// on, so the reply is sent back through the same surface rather than
// guessed at from wxid alone.
type routedMessage struct {
	bot.InboundMessage
	from bot.Frontend
}

// startFrontends launches every configured frontend's receive loop,
// each into its own channel, and fans those into the shared routed
// channel so pumpMessages can dispatch replies to the right frontend.
func (s *Supervisor) startFrontends(ctx context.Context, routed chan<- routedMessage) error {
	for _, f := range s.cfg.Frontends {
		raw := make(chan bot.InboundMessage, 16)
		if err := f.Start(ctx, raw); err != nil {
			return err
		}
		s.wg.Add(1)
		go func(f bot.Frontend, raw <-chan bot.InboundMessage) {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-raw:
					if !ok {
						return
					}
					routed <- routedMessage{InboundMessage: msg, from: f}
				}
			}
		}(f, raw)
	}
	return nil
}

// pumpMessages spawns one goroutine per inbound message so distinct
// users are processed concurrently; per-user serialization is the
// Executor's in-flight guard, not anything here. ctx (runCtx) only
// gates intake of new messages off the routed channel: once a message
// is handed off, handleOne runs on its own context so that a shutdown
// signal does not cut an in-flight execution short before the Claude
// CLI's own claude.timeout deadline, per the cancellation contract.
func (s *Supervisor) pumpMessages(ctx context.Context, routed <-chan routedMessage) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-routed:
				if !ok {
					return
				}
				s.wg.Add(1)
				go func(msg routedMessage) {
					defer s.wg.Done()
					s.handleOne(context.Background(), msg)
				}(msg)
			}
		}
	}()
}

func (s *Supervisor) handleOne(ctx context.Context, msg routedMessage) {
	reply, sent := s.cfg.Router.Handle(ctx, router.Inbound{
		Wxid:       msg.Wxid,
		Nickname:   msg.Nickname,
		RemarkName: msg.RemarkName,
		Text:       msg.Text,
	})
	if !sent {
		return
	}
	for _, chunk := range router.Chunks(reply) {
		if err := msg.from.Send(ctx, msg.Wxid, chunk); err != nil {
			log.Printf("[supervisor] send(%s): %v", msg.Wxid, err)
		}
		time.Sleep(router.ChunkDelay)
	}
}

// shutdown stops every frontend; it does not touch containers, which
// carry "unless-stopped" and survive the bridge process exiting.
func (s *Supervisor) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, f := range s.cfg.Frontends {
		if err := f.Stop(ctx); err != nil {
			log.Printf("[supervisor] stopping frontend: %v", err)
		}
	}
}
