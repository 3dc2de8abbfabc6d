package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cc-bridge/internal/sandbox"
	"cc-bridge/internal/store"
)

// command is one entry of the dispatch table: the minimum tier
// required to invoke it, a one-line description for /help, and the
// handler itself. This is the table-driven generalization of the
// teacher's fixed switch-based action dispatch, since the router's
// command set is caller-extensible and user-facing rather than a small
// fixed internal action set.
type command struct {
	tier        string
	description string
	handler     func(ctx context.Context, r *Router, wxid, tier, args string) (string, bool)
}

// parseCommand splits a leading "/word" off text. Returns isCmd=false
// for anything not starting with "/" so it falls through to Claude
// dispatch; an unrecognized slash-word is still "not a command" at the
// call site (the registry lookup, not this function, decides that).
func parseCommand(text string) (name, args string, isCmd bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", "", false
	}
	name = fields[0]
	args = strings.TrimSpace(strings.TrimPrefix(text, name))
	return name, args, true
}

func builtinCommands() map[string]command {
	return map[string]command{
		"/help":       {tier: store.PermissionNormal, description: "List commands visible to your tier.", handler: handleHelp},
		"/status":     {tier: store.PermissionNormal, description: "Friend summary, session state, container stats.", handler: handleStatus},
		"/clear":      {tier: store.PermissionNormal, description: "Clear your session; next message starts fresh.", handler: handleClear},
		"/allow":      {tier: store.PermissionAdmin, description: "/allow <name> [tier] — grant a friend access.", handler: handleAllow},
		"/block":      {tier: store.PermissionAdmin, description: "/block <name> — revoke access and destroy their container.", handler: handleBlock},
		"/list":       {tier: store.PermissionAdmin, description: "List all friends grouped by tier.", handler: handleList},
		"/logs":       {tier: store.PermissionAdmin, description: "/logs [name] — recent audit entries.", handler: handleLogs},
		"/kill":       {tier: store.PermissionAdmin, description: "/kill <name> — kill Claude inside a friend's container.", handler: handleKill},
		"/containers": {tier: store.PermissionAdmin, description: "List app-labeled containers.", handler: handleContainers},
		"/restart":    {tier: store.PermissionAdmin, description: "/restart <name> — stop container and clear session.", handler: handleRestart},
		"/destroy":    {tier: store.PermissionAdmin, description: "/destroy <name> — remove a friend's container.", handler: handleDestroy},
		"/rebuild":    {tier: store.PermissionAdmin, description: "/rebuild <name> — recreate a friend's container.", handler: handleRebuild},
		"/stopall":    {tier: store.PermissionAdmin, description: "Stop every app-labeled container.", handler: handleStopAll},
	}
}

func handleHelp(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range names {
		cmd := r.commands[name]
		if tierRank(tier) < tierRank(cmd.tier) {
			continue
		}
		fmt.Fprintf(&b, "%s — %s\n", name, cmd.description)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

func handleStatus(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	friend, err := r.store.Get(wxid)
	if err != nil || friend == nil {
		return "No friend record found.", true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "wxid: %s\nnickname: %s\npermission: %s\n", friend.Wxid, friend.Nickname, friend.Permission)

	sess, err := r.store.GetActive(wxid)
	if err == nil && sess != nil {
		fmt.Fprintf(&b, "session: active (messages: %d, last active: %s)\n", sess.MessageCount, sess.LastActive)
	} else {
		b.WriteString("session: none\n")
	}

	stats, err := r.sandbox.Stats(ctx, wxid)
	if err == nil && stats != nil {
		fmt.Fprintf(&b, "container: cpu %.1f%%, mem %s / %s\n", stats.CPUPercent, sandbox.FormatBytes(stats.MemUsage), sandbox.FormatBytes(stats.MemLimit))
	}
	if disk, err := r.sandbox.DiskUsage(ctx, wxid); err == nil {
		fmt.Fprintf(&b, "disk: %s\n", disk)
	}

	return strings.TrimRight(b.String(), "\n"), true
}

func handleClear(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	if err := r.store.ClearUser(wxid); err != nil {
		return "Failed to clear session.", true
	}
	return "Session cleared. Your next message starts a new conversation.", true
}

// resolveFriendByName implements the nickname-search resolution shared
// by /allow, /block, /kill, /restart, /destroy, /rebuild: 0 matches is
// "not found", >1 is an ambiguity error, exactly 1 resolves.
func resolveFriendByName(r *Router, name string) (*store.Friend, string, bool) {
	matches, err := r.store.FindByNickname(name)
	if err != nil {
		return nil, "Lookup failed.", false
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Sprintf("No friend matching %q found.", name), false
	case 1:
		return &matches[0], "", true
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, fmt.Sprintf("%s (%s)", m.Nickname, m.Wxid))
		}
		return nil, fmt.Sprintf("Multiple friends match %q: %s", name, strings.Join(names, ", ")), false
	}
}

func handleAllow(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "Usage: /allow <name> [tier]", true
	}
	name := fields[0]
	target := store.PermissionTrusted
	if len(fields) > 1 {
		switch fields[1] {
		case store.PermissionTrusted, store.PermissionNormal, store.PermissionAdmin:
			target = fields[1]
		default:
			return fmt.Sprintf("Invalid tier %q; use trusted, normal, or admin.", fields[1]), true
		}
	}

	friend, msg, ok := resolveFriendByName(r, name)
	if !ok {
		return msg, true
	}
	if err := r.store.SetPermission(friend.Wxid, target); err != nil {
		return "Failed to update permission.", true
	}
	return fmt.Sprintf("%s is now %s.", friend.Nickname, target), true
}

func handleBlock(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	name := strings.TrimSpace(args)
	if name == "" {
		return "Usage: /block <name>", true
	}
	friend, msg, ok := resolveFriendByName(r, name)
	if !ok {
		return msg, true
	}
	if err := r.store.SetPermission(friend.Wxid, store.PermissionBlocked); err != nil {
		return "Failed to block friend.", true
	}
	if err := r.sandbox.Destroy(ctx, friend.Wxid); err != nil {
		return fmt.Sprintf("%s blocked, but failed to destroy their container: %v", friend.Nickname, err), true
	}
	return fmt.Sprintf("%s has been blocked.", friend.Nickname), true
}

func handleList(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	var b strings.Builder
	for _, t := range []string{store.PermissionAdmin, store.PermissionTrusted, store.PermissionNormal, store.PermissionBlocked} {
		friends, err := r.store.ListByPermission(t)
		if err != nil || len(friends) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", t)
		for _, f := range friends {
			fmt.Fprintf(&b, "  %s (%s)\n", f.Nickname, f.Wxid)
		}
	}
	if b.Len() == 0 {
		return "No friends registered.", true
	}
	return strings.TrimRight(b.String(), "\n"), true
}

func handleLogs(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	const limit = 20
	name := strings.TrimSpace(args)

	var entries []store.AuditEntry
	var err error
	if name == "" {
		entries, err = r.store.GetRecent(limit)
	} else {
		friend, msg, ok := resolveFriendByName(r, name)
		if !ok {
			return msg, true
		}
		entries, err = r.store.GetByUser(friend.Wxid, limit)
	}
	if err != nil {
		return "Failed to fetch logs.", true
	}
	if len(entries) == 0 {
		return "No audit entries found.", true
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s %s: %s\n", e.Timestamp, e.Nickname, e.Direction, e.Message.String)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

func handleKill(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	name := strings.TrimSpace(args)
	if name == "" {
		return "Usage: /kill <name>", true
	}
	friend, msg, ok := resolveFriendByName(r, name)
	if !ok {
		return msg, true
	}
	if err := r.sandbox.KillClaude(ctx, friend.Wxid); err != nil {
		return fmt.Sprintf("Failed to kill processes for %s: %v", friend.Nickname, err), true
	}
	r.executor.ReleaseGuard(friend.Wxid)
	return fmt.Sprintf("Killed Claude processes for %s.", friend.Nickname), true
}

func handleContainers(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	list, err := r.sandbox.ListContainers(ctx)
	if err != nil {
		return "Failed to list containers.", true
	}
	if len(list) == 0 {
		return "No containers.", true
	}
	var b strings.Builder
	for _, c := range list {
		fmt.Fprintf(&b, "%s [%s] wxid=%s tier=%s\n", c.Name, c.Status, c.Wxid, c.Permission)
	}
	return strings.TrimRight(b.String(), "\n"), true
}

func handleRestart(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	name := strings.TrimSpace(args)
	if name == "" {
		return "Usage: /restart <name>", true
	}
	friend, msg, ok := resolveFriendByName(r, name)
	if !ok {
		return msg, true
	}
	if err := r.sandbox.Stop(ctx, friend.Wxid); err != nil {
		return fmt.Sprintf("Failed to stop container for %s: %v", friend.Nickname, err), true
	}
	if err := r.store.ClearUser(friend.Wxid); err != nil {
		return fmt.Sprintf("%s's container stopped, but clearing session failed: %v", friend.Nickname, err), true
	}
	return fmt.Sprintf("%s's container stopped and session cleared.", friend.Nickname), true
}

func handleDestroy(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	name := strings.TrimSpace(args)
	if name == "" {
		return "Usage: /destroy <name>", true
	}
	friend, msg, ok := resolveFriendByName(r, name)
	if !ok {
		return msg, true
	}
	if err := r.sandbox.Destroy(ctx, friend.Wxid); err != nil {
		return fmt.Sprintf("Failed to destroy container for %s: %v", friend.Nickname, err), true
	}
	return fmt.Sprintf("%s's container destroyed (data preserved).", friend.Nickname), true
}

func handleRebuild(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	name := strings.TrimSpace(args)
	if name == "" {
		return "Usage: /rebuild <name>", true
	}
	friend, msg, ok := resolveFriendByName(r, name)
	if !ok {
		return msg, true
	}
	if _, err := r.sandbox.Rebuild(ctx, friend.Wxid, sandbox.Tier(friend.Permission)); err != nil {
		return fmt.Sprintf("Failed to rebuild container for %s: %v", friend.Nickname, err), true
	}
	return fmt.Sprintf("%s's container rebuilt.", friend.Nickname), true
}

func handleStopAll(ctx context.Context, r *Router, wxid, tier, args string) (string, bool) {
	n, err := r.sandbox.StopAll(ctx)
	if err != nil {
		return "Failed to stop containers.", true
	}
	return fmt.Sprintf("Stopped %d container(s).", n), true
}
