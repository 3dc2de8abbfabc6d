// Package executor is the Claude Executor: session lookup/expiry,
// system-prompt composition, one-at-a-time dispatch into a user's
// sandbox container, output capture, truncation, and session-id
// extraction. It knows nothing about container internals beyond the
// exec_claude/lifecycle methods the Docker Manager exposes, and
// nothing about admission control — that is the Router's job.
package executor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"cc-bridge/internal/config"
	"cc-bridge/internal/sandbox"
	"cc-bridge/internal/store"
	"cc-bridge/internal/truncate"
)

// defaultMaxOutputChars is the output budget, in runes, that every
// reply is truncated to; it is a fixed constant, not read from Config.
const defaultMaxOutputChars = 4000

// killGrace is how long a SIGTERM is given to work before SIGKILL, per
// the spec's timeout handling.
const killGrace = 5 * time.Second

// FriendInfo is the subset of a Friend row the Executor needs; the
// Router resolves it from the Metadata Store before calling Execute so
// the Executor never has to know how permissions are stored.
type FriendInfo struct {
	Wxid        string
	DisplayName string
	Permission  string // admin | trusted | normal
}

// Result is exec_claude's/execute's user-facing outcome: a sum type
// rather than an error the caller must unwrap, per the spec's explicit
// "exception-for-control-flow becomes a result record" design note.
type Result struct {
	Busy  bool
	Reply string
}

// Executor runs one message at a time per wxid.
type Executor struct {
	store   *store.Store
	sandbox *sandbox.Manager
	cfg     *config.Config

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New builds an Executor over the given store, sandbox manager, and
// configuration.
func New(st *store.Store, sb *sandbox.Manager, cfg *config.Config) *Executor {
	return &Executor{
		store:    st,
		sandbox:  sb,
		cfg:      cfg,
		inFlight: make(map[string]struct{}),
	}
}

// acquire attempts to mark wxid as in-flight. Returns false if already
// in flight (the caller should return the busy reply without invoking
// any external system).
func (e *Executor) acquire(wxid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[wxid]; busy {
		return false
	}
	e.inFlight[wxid] = struct{}{}
	return true
}

func (e *Executor) release(wxid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, wxid)
}

// ReleaseGuard clears wxid's in-flight entry from outside the normal
// Execute/defer path, for callers (the admin /kill command) that force-
// terminate a running Claude process and must not leave the user stuck
// behind the in-flight guard until Execute's own defer would have run.
func (e *Executor) ReleaseGuard(wxid string) {
	e.release(wxid)
}

// Execute runs the nine-step pipeline for one inbound message. The
// in-flight guard is released on every exit path, including panics,
// via defer.
func (e *Executor) Execute(ctx context.Context, friend FriendInfo, message string) Result {
	if !e.acquire(friend.Wxid) {
		return Result{Busy: true, Reply: "I'm still working on your previous message — one at a time, please."}
	}
	defer e.release(friend.Wxid)

	tier := sandbox.Tier(friend.Permission)
	if _, err := e.sandbox.EnsureContainer(ctx, friend.Wxid, tier); err != nil {
		logf("ensure_container(%s): %v", friend.Wxid, err)
		return Result{Reply: genericFailureMessage}
	}

	sess, err := e.resolveSession(friend.Wxid)
	if err != nil {
		logf("resolve_session(%s): %v", friend.Wxid, err)
		return Result{Reply: genericFailureMessage}
	}

	systemPrompt := composeSystemPrompt(friend)

	timeoutS := e.cfg.Claude.Timeout
	if timeoutS <= 0 {
		timeoutS = 120
	}
	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutS)*time.Second)
	defer cancel()

	claudeSession := ""
	if sess.ClaudeSession.Valid {
		claudeSession = sess.ClaudeSession.String
	}

	args := buildClaudeArgs(e.cfg.Claude.CLIPath, systemPrompt, message, claudeSession, friend.Permission)
	res, err := e.sandbox.ExecClaude(execCtx, friend.Wxid, args)

	if execCtx.Err() != nil {
		e.onTimeout(ctx, friend.Wxid)
		return Result{Reply: "Request timed out. Please try again."}
	}
	if err != nil {
		logf("exec_claude(%s): %v", friend.Wxid, err)
		return Result{Reply: genericFailureMessage}
	}

	if claudeSessionID, found := extractSessionID(res.Stderr); found {
		if err := e.store.SetClaudeSession(sess.ID, claudeSessionID); err != nil {
			logf("set_claude_session(%s): %v", sess.ID, err)
		}
	}

	if err := e.store.Touch(sess.ID); err != nil {
		logf("touch session(%s): %v", sess.ID, err)
	}

	reply := res.Output
	if reply == "" {
		reply = "(no content)"
	}
	maxChars := defaultMaxOutputChars
	return Result{Reply: truncate.Truncate(reply, maxChars)}
}

// onTimeout force-terminates the Claude process after a SIGTERM grace
// period, per the spec's cancellation contract: SIGTERM, a killGrace
// window for the process to exit on its own, then SIGKILL for anything
// still running. ctx (not execCtx, which has already expired) bounds
// the termination attempts.
func (e *Executor) onTimeout(ctx context.Context, wxid string) {
	_ = e.sandbox.KillClaude(ctx, wxid)
	time.Sleep(killGrace)
	_ = e.sandbox.KillClaudeForce(ctx, wxid)
}

const genericFailureMessage = "Sorry, something went wrong processing your request. Please try again."

// newSessionID generates a fresh session UUID.
func newSessionID() string {
	return uuid.NewString()
}

func logf(format string, args ...any) {
	log.Printf("[executor] "+format, args...)
}
