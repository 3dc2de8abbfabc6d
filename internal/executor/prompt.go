package executor

import "fmt"

// composeSystemPrompt builds the short identity block every dispatch
// carries, per step 4 of the pipeline. Normal-tier users get an
// explicit instruction not to execute code or shell commands, since
// their container has no network and a minimal capability set but the
// Claude CLI itself does not otherwise know to hold back.
func composeSystemPrompt(friend FriendInfo) string {
	prompt := fmt.Sprintf(
		"You are assisting user %q (wxid: %s) with permission tier %q.",
		friend.DisplayName, friend.Wxid, friend.Permission,
	)
	if friend.Permission == "normal" {
		prompt += " Do not execute code or shell commands; only provide textual assistance."
	}
	return prompt
}
