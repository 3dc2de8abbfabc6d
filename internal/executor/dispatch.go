package executor

import "regexp"

// sessionIDPattern scans stderr for a UUID-like token preceded by the
// word "session" (case-insensitive), e.g. "Resuming session
// 3fa85f64-5717-4562-b3fc-2c963f66afa6". Compiled once at package init,
// matching the rest of the pack's "compile regex out of hot paths"
// idiom.
var sessionIDPattern = regexp.MustCompile(`(?i)session[^0-9a-f]{0,10}([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`)

// buildClaudeArgs constructs the in-container Claude CLI invocation per
// §4.D step 5: non-interactive print mode, text output, the composed
// system prompt, an optional --resume, and an empty allowed-tools list
// for normal-tier users.
func buildClaudeArgs(cliPath, systemPrompt, message, claudeSession, permission string) []string {
	args := []string{
		cliPath,
		"-p", message,
		"--output-format", "text",
		"--system-prompt", systemPrompt,
	}
	if claudeSession != "" {
		args = append(args, "--resume", claudeSession)
	}
	if permission == "normal" {
		args = append(args, "--tools", "")
	}
	return args
}

// extractSessionID scans CLI stderr for a session identifier.
func extractSessionID(stderr string) (string, bool) {
	m := sessionIDPattern.FindStringSubmatch(stderr)
	if m == nil {
		return "", false
	}
	return m[1], true
}
