// Package router is the Message Router: the admission pipeline that
// sits between a Bot frontend and the Claude Executor. It resolves
// display names, registers first-seen friends, enforces permission and
// rate limits, dispatches slash commands, applies the security filter,
// and otherwise hands the message to the Executor — emitting audit
// rows at both ingress and egress.
package router

import (
	"context"
	"log"
	"regexp"
	"time"

	"cc-bridge/internal/config"
	"cc-bridge/internal/executor"
	"cc-bridge/internal/sandbox"
	"cc-bridge/internal/store"
	"cc-bridge/internal/truncate"
)

// auditSnippetChars bounds how much of an outbound reply is recorded
// in the egress audit row; the full reply already went to the user.
const auditSnippetChars = 200

// OutboundChunkChars is the frontend-imposed soft cap a reply is split
// against before sending; ChunkDelay is the pause between chunks.
const (
	OutboundChunkChars = 2000
	ChunkDelay         = 300 * time.Millisecond
)

// Chunks splits a reply into pieces no caller should send as a single
// frontend message, honoring the character-boundary guarantee.
func Chunks(reply string) []string {
	return truncate.Chunk(reply, OutboundChunkChars)
}

// Router owns the admission pipeline and the command registry.
type Router struct {
	store    *store.Store
	executor *executor.Executor
	sandbox  *sandbox.Manager
	cfg      *config.Config

	commands map[string]command
	blocked  []*regexp.Regexp
}

// Inbound is one message as received from a frontend.
type Inbound struct {
	Wxid       string
	Nickname   string
	RemarkName string
	Text       string
}

// New builds a Router, compiling the security filter's patterns once
// and registering the built-in command catalog.
func New(st *store.Store, ex *executor.Executor, sb *sandbox.Manager, cfg *config.Config) *Router {
	r := &Router{store: st, executor: ex, sandbox: sb, cfg: cfg}
	r.blocked = compilePatterns(cfg.Security.BlockedPatterns)
	r.commands = builtinCommands()
	return r
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			log.Printf("[router] skipping invalid blocked_patterns entry %q: %v", p, err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// displayName is the first non-empty of remark_name, nickname, wxid.
func displayName(in Inbound) string {
	if in.RemarkName != "" {
		return in.RemarkName
	}
	if in.Nickname != "" {
		return in.Nickname
	}
	return in.Wxid
}

// Handle runs the nine-step admission/dispatch pipeline for one
// inbound message and returns the reply text, or ("", false) if no
// reply should be sent at all.
func (r *Router) Handle(ctx context.Context, in Inbound) (string, bool) {
	// An empty wxid is rejected at admission: there is no one to reply
	// to and no identity to register.
	if in.Wxid == "" {
		return "", false
	}

	name := displayName(in)

	if r.cfg.Logging.LogMessageContent {
		_ = r.store.Log(in.Wxid, name, store.DirectionIn, in.Text, "")
	} else {
		_ = r.store.Log(in.Wxid, name, store.DirectionIn, "", "")
	}

	if err := r.ensureFriendRegistered(in); err != nil {
		log.Printf("[router] ensure_friend_registered(%s): %v", in.Wxid, err)
	}

	tier := r.effectivePermission(in.Wxid)
	if tier == store.PermissionBlocked {
		return "", false
	}
	if tier == "" {
		if r.cfg.Permissions.NotifyUnauthorized {
			return r.cfg.Permissions.UnauthorizedMessage, true
		}
		return "", false
	}

	rl, err := r.store.CheckAndIncrement(in.Wxid, r.cfg.RateLimit.MaxPerMinute, r.cfg.RateLimit.MaxPerDay)
	if err != nil {
		log.Printf("[router] rate limit check(%s): %v", in.Wxid, err)
		return "Sorry, something went wrong. Please try again.", true
	}
	if !rl.Allowed {
		return rl.Reason, true
	}

	if cmdName, args, isCmd := parseCommand(in.Text); isCmd {
		if cmd, ok := r.commands[cmdName]; ok {
			if tierRank(tier) < tierRank(cmd.tier) {
				return "Insufficient permission for " + cmdName + ".", true
			}
			reply, sent := cmd.handler(ctx, r, in.Wxid, tier, args)
			if sent {
				r.auditOut(in.Wxid, name, reply, "")
			}
			return reply, sent
		}
		// Unknown slash-word: not a command, falls through to Claude.
	}

	if tier != store.PermissionAdmin {
		for _, re := range r.blocked {
			if re.MatchString(in.Text) {
				return "That message was blocked by the security filter.", true
			}
		}
	}

	friendInfo := executor.FriendInfo{Wxid: in.Wxid, DisplayName: name, Permission: tier}
	result := r.executor.Execute(ctx, friendInfo, in.Text)
	if result.Busy {
		return result.Reply, true
	}

	r.auditOut(in.Wxid, name, result.Reply, "")
	return result.Reply, true
}

func (r *Router) auditOut(wxid, nickname, reply, claudeSession string) {
	snippet := truncate.TrimForAudit(reply, auditSnippetChars)
	if err := r.store.Log(wxid, nickname, store.DirectionOut, snippet, claudeSession); err != nil {
		log.Printf("[router] egress audit(%s): %v", wxid, err)
	}
}

// ensureFriendRegistered creates a Friend row on first contact
// (permission admin iff wxid matches config.admin_wxid, else
// default_level) or refreshes nickname/remark_name on an existing row.
func (r *Router) ensureFriendRegistered(in Inbound) error {
	existing, err := r.store.Get(in.Wxid)
	if err != nil {
		return err
	}

	nickname := in.Nickname
	remark := in.RemarkName

	if existing == nil {
		perm := r.cfg.Permissions.DefaultLevel
		if in.Wxid == r.cfg.AdminWxid && r.cfg.AdminWxid != "" {
			perm = store.PermissionAdmin
		}
		return r.store.Upsert(in.Wxid, store.FriendUpsert{
			Nickname:   &nickname,
			RemarkName: optionalStr(remark),
			Permission: &perm,
		})
	}

	if nickname == existing.Nickname && (remark == "" || (existing.RemarkName.Valid && remark == existing.RemarkName.String)) {
		return nil
	}
	return r.store.Upsert(in.Wxid, store.FriendUpsert{
		Nickname:   &nickname,
		RemarkName: optionalStr(remark),
	})
}

func optionalStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// effectivePermission resolves the caller's tier: forced admin,
// stored permission, or default_level if no Friend row exists.
func (r *Router) effectivePermission(wxid string) string {
	if wxid == r.cfg.AdminWxid && r.cfg.AdminWxid != "" {
		return store.PermissionAdmin
	}
	tier, found, err := r.store.GetPermission(wxid)
	if err != nil {
		log.Printf("[router] get_permission(%s): %v", wxid, err)
		return r.cfg.Permissions.DefaultLevel
	}
	if !found {
		return r.cfg.Permissions.DefaultLevel
	}
	return tier
}

// tierRank orders permission tiers for comparison, admin highest.
func tierRank(tier string) int {
	switch tier {
	case store.PermissionAdmin:
		return 3
	case store.PermissionTrusted:
		return 2
	case store.PermissionNormal:
		return 1
	default:
		return 0
	}
}
